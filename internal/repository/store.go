package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// ReservationStore persists reservations.  Every backend enforces a unique
// index on the reference and treats each reservation as one document:
// writes are single atomic operations and never span several records.
type ReservationStore interface {
	// Create assigns ID, CreatedAt, UpdatedAt and Version=1 then inserts
	// the reservation.  It returns ErrDuplicateReference when the reference
	// is already taken.
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByReference(ctx context.Context, reference string) (*model.Reservation, error)
	// ReferenceTaken is the existence check used by the reference generator.
	ReferenceTaken(ctx context.Context, reference string) (bool, error)
	// Update replaces the stored reservation when its version still equals
	// r.Version, then bumps r.Version and r.UpdatedAt.  The reference and
	// the id are never rewritten.
	Update(ctx context.Context, r *model.Reservation) error
	// Delete removes the reservation permanently.
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error)
	ListPaged(ctx context.Context, q ListQuery) (Page, error)
}

// DestinationLookup resolves a destination id to the snapshot embedded in
// new reservations.  It returns ErrNotFound for unknown ids.
type DestinationLookup interface {
	Lookup(ctx context.Context, destinationID string) (*model.DestinationSnapshot, error)
}

// FlightStore persists the flight inventory.
type FlightStore interface {
	Create(ctx context.Context, f *model.ScheduledFlight) error
	List(ctx context.Context, q FlightQuery) ([]model.ScheduledFlight, int64, error)
}

// FlightQuery filters and pages the flight inventory.
type FlightQuery struct {
	DestinationID string
	ActiveOnly    bool
	Page          int
	PageSize      int
}

// Sort keys accepted by ListPaged.
const (
	SortCreatedAt   = "createdAt"
	SortUpdatedAt   = "updatedAt"
	SortTotalPrice  = "totalPrice"
	SortDepartureAt = "departureAt"
	SortReference   = "reference"
	SortStatus      = "status"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortOrder is a validated sort key and direction.
type SortOrder struct {
	Field string
	Desc  bool
}

// ParseSort reads "-createdAt" style sort expressions.  An empty
// expression yields the default order, newest first.
func ParseSort(raw string) (SortOrder, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SortOrder{Field: SortCreatedAt, Desc: true}, true
	}
	desc := false
	switch raw[0] {
	case '-':
		desc = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}
	switch raw {
	case SortCreatedAt, SortUpdatedAt, SortTotalPrice, SortDepartureAt, SortReference, SortStatus:
		return SortOrder{Field: raw, Desc: desc}, true
	}
	return SortOrder{}, false
}

// String renders the order back into its "-field" form.
func (o SortOrder) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// ListQuery selects one page of reservations.
type ListQuery struct {
	Page     int
	PageSize int
	Sort     SortOrder
}

// Normalize clamps page and page size and fills a missing sort order.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Sort.Field == "" {
		q.Sort = SortOrder{Field: SortCreatedAt, Desc: true}
	}
	return q
}

// Offset is the number of records skipped before the page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one page of reservations together with the total count.
type Page struct {
	Items    []model.Reservation `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	Pages    int                 `json:"pages"`
}

func newPage(items []model.Reservation, total int64, q ListQuery) Page {
	if items == nil {
		items = []model.Reservation{}
	}
	pages := 0
	if q.PageSize > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	return Page{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize, Pages: pages}
}

// sortReservations orders an in-memory slice the way the SQL and Mongo
// backends order their results.  Ties are broken by id for stable paging.
func sortReservations(items []model.Reservation, o SortOrder) {
	compare := func(a, b *model.Reservation) int {
		switch o.Field {
		case SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortTotalPrice:
			switch {
			case a.TotalPrice < b.TotalPrice:
				return -1
			case a.TotalPrice > b.TotalPrice:
				return 1
			}
			return 0
		case SortDepartureAt:
			return a.Flight.DepartureAt.Compare(b.Flight.DepartureAt)
		case SortReference:
			return strings.Compare(a.Reference, b.Reference)
		case SortStatus:
			return strings.Compare(string(a.Status), string(b.Status))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := compare(&items[i], &items[j])
		if c == 0 {
			c = strings.Compare(items[i].ID, items[j].ID)
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	})
}
