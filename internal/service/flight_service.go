package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
)

// CreateFlightRequest is the admin request adding a flight to the inventory.
type CreateFlightRequest struct {
	FlightNumber   string             `json:"flightNumber"`
	Airline        string             `json:"airline"`
	OriginID       string             `json:"originId"`
	DestinationID  string             `json:"destinationId"`
	DepartureAt    string             `json:"departureAt"`
	ArrivalAt      string             `json:"arrivalAt"`
	SeatsAvailable int                `json:"seatsAvailable"`
	Prices         model.FlightPrices `json:"prices"`
	Active         *bool              `json:"active,omitempty"`
	CabinBaggage   string             `json:"cabinBaggage,omitempty"`
	HoldBaggage    string             `json:"holdBaggage,omitempty"`
	MealIncluded   bool               `json:"mealIncluded"`
	WiFi           bool               `json:"wifi"`
}

// FlightListing is a flight as returned by the list endpoints.
type FlightListing struct {
	model.ScheduledFlight
	Full bool `json:"full"`
}

// FlightPage is one page of the flight inventory.
type FlightPage struct {
	Items    []FlightListing `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Pages    int             `json:"pages"`
}

// FlightService manages the flight inventory.
type FlightService struct {
	flights      repository.FlightStore
	destinations repository.DestinationLookup
	log          logger.Logger
	now          func() time.Time
}

// NewFlightService returns a FlightService.
func NewFlightService(flights repository.FlightStore, destinations repository.DestinationLookup, log logger.Logger) *FlightService {
	return &FlightService{
		flights:      flights,
		destinations: destinations,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used to reject past departures.
func (s *FlightService) WithClock(now func() time.Time) *FlightService {
	s.now = now
	return s
}

// List returns flights ordered by departure.
func (s *FlightService) List(ctx context.Context, q repository.FlightQuery) (*FlightPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = repository.DefaultPageSize
	}
	if q.PageSize > repository.MaxPageSize {
		q.PageSize = repository.MaxPageSize
	}
	q.DestinationID = strings.TrimSpace(q.DestinationID)

	flights, total, err := s.flights.List(ctx, q)
	if err != nil {
		return nil, internal("could not list flights", err)
	}
	items := make([]FlightListing, 0, len(flights))
	for _, f := range flights {
		items = append(items, FlightListing{ScheduledFlight: f, Full: f.IsFull()})
	}
	return &FlightPage{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    int((total + int64(q.PageSize) - 1) / int64(q.PageSize)),
	}, nil
}

// Create validates and stores a new flight.
func (s *FlightService) Create(ctx context.Context, req CreateFlightRequest) (*model.ScheduledFlight, error) {
	var errs fieldErrors
	f := &model.ScheduledFlight{
		FlightNumber:   strings.ToUpper(strings.TrimSpace(req.FlightNumber)),
		Airline:        strings.TrimSpace(req.Airline),
		OriginID:       strings.TrimSpace(req.OriginID),
		DestinationID:  strings.TrimSpace(req.DestinationID),
		SeatsAvailable: req.SeatsAvailable,
		Prices:         req.Prices,
		Active:         true,
		CabinBaggage:   strings.TrimSpace(req.CabinBaggage),
		HoldBaggage:    strings.TrimSpace(req.HoldBaggage),
		MealIncluded:   req.MealIncluded,
		WiFi:           req.WiFi,
	}
	if req.Active != nil {
		f.Active = *req.Active
	}

	if f.FlightNumber == "" {
		errs.add("flightNumber", "is required")
	}
	if f.Airline == "" {
		errs.add("airline", "is required")
	}
	if f.OriginID == "" {
		errs.add("originId", "is required")
	}
	if f.DestinationID == "" {
		errs.add("destinationId", "is required")
	}
	if f.OriginID != "" && f.OriginID == f.DestinationID {
		errs.add("destinationId", "must differ from originId")
	}

	now := s.now()
	dep, depErr := ParseTime(req.DepartureAt)
	switch {
	case strings.TrimSpace(req.DepartureAt) == "":
		errs.add("departureAt", "is required")
	case depErr != nil:
		errs.add("departureAt", "is not a valid date")
	case !dep.After(now):
		errs.add("departureAt", "must be in the future")
	}
	arr, arrErr := ParseTime(req.ArrivalAt)
	switch {
	case strings.TrimSpace(req.ArrivalAt) == "":
		errs.add("arrivalAt", "is required")
	case arrErr != nil:
		errs.add("arrivalAt", "is not a valid date")
	case depErr == nil && !arr.After(dep):
		errs.add("arrivalAt", "must be after departureAt")
	}

	if f.SeatsAvailable < 0 {
		errs.add("seatsAvailable", "must not be negative")
	}
	validatePrice("prices.economy", f.Prices.Economy, &errs)
	validatePrice("prices.business", f.Prices.Business, &errs)
	validatePrice("prices.first", f.Prices.First, &errs)

	if len(errs) > 0 {
		return nil, &Error{Kind: KindValidation, Message: "flight request is invalid", Fields: errs}
	}

	for _, id := range []string{f.OriginID, f.DestinationID} {
		if _, err := s.destinations.Lookup(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("destination", id)
			}
			return nil, internal("destination lookup failed", err)
		}
	}

	f.DepartureAt = dep
	f.ArrivalAt = arr
	f.Duration = FormatDuration(arr.Sub(dep))

	if err := s.flights.Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict(fmt.Sprintf("flight %s already exists", f.FlightNumber), err)
		}
		return nil, internal("could not store the flight", err)
	}
	s.log.Info("flight created", "flight_number", f.FlightNumber, "departure", f.DepartureAt)
	return f, nil
}

// FormatDuration renders d as "<h>h <m>m".
func FormatDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute).Minutes())
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
