package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

const (
	boltReservationsBucket = "reservations"
	boltReferencesBucket   = "reservation_references"
)

// BoltReservationStore keeps reservations in an embedded BoltDB file.
// Reservations are stored as JSON under their id; a second bucket maps
// each reference ever issued to its id and acts as the unique reference
// index.
// Bolt serializes write transactions, so the check-and-insert in Create
// is atomic.
type BoltReservationStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltReservationStore wraps an open bolt database and ensures the
// buckets exist.
func NewBoltReservationStore(db *bolt.DB) (*BoltReservationStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltReservationsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(boltReferencesBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}
	return &BoltReservationStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Create inserts a new reservation.
func (s *BoltReservationStore) Create(ctx context.Context, r *model.Reservation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		refs := tx.Bucket([]byte(boltReferencesBucket))
		if refs.Get([]byte(r.Reference)) != nil {
			return ErrDuplicateReference
		}
		now := s.now().Truncate(time.Millisecond)
		rec := r.Clone()
		rec.ID = uuid.NewString()
		rec.Version = 1
		rec.CreatedAt = now
		rec.UpdatedAt = now
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(boltReservationsBucket)).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		if err := refs.Put([]byte(rec.Reference), []byte(rec.ID)); err != nil {
			return err
		}
		r.ID, r.Version, r.CreatedAt, r.UpdatedAt = rec.ID, rec.Version, rec.CreatedAt, rec.UpdatedAt
		return nil
	})
}

// GetByID retrieves a single reservation by id.
func (s *BoltReservationStore) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltReservationsBucket)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByReference follows the reference index to the reservation.
func (s *BoltReservationStore) GetByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(boltReferencesBucket)).Get([]byte(reference))
		if id == nil {
			return ErrNotFound
		}
		v := tx.Bucket([]byte(boltReservationsBucket)).Get(id)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReferenceTaken reports whether the reference index holds the reference.
func (s *BoltReservationStore) ReferenceTaken(ctx context.Context, reference string) (bool, error) {
	taken := false
	err := s.db.View(func(tx *bolt.Tx) error {
		taken = tx.Bucket([]byte(boltReferencesBucket)).Get([]byte(reference)) != nil
		return nil
	})
	return taken, err
}

// Update rewrites the reservation if the stored version matches r.Version.
func (s *BoltReservationStore) Update(ctx context.Context, r *model.Reservation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltReservationsBucket))
		v := b.Get([]byte(r.ID))
		if v == nil {
			return ErrNotFound
		}
		var current model.Reservation
		if err := json.Unmarshal(v, &current); err != nil {
			return err
		}
		if current.Version != r.Version {
			return ErrVersionConflict
		}
		rec := r.Clone()
		rec.Reference = current.Reference
		rec.CreatedAt = current.CreatedAt
		rec.Version = current.Version + 1
		rec.UpdatedAt = s.now().Truncate(time.Millisecond)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(rec.ID), data); err != nil {
			return err
		}
		r.Reference, r.CreatedAt, r.Version, r.UpdatedAt = rec.Reference, rec.CreatedAt, rec.Version, rec.UpdatedAt
		return nil
	})
}

// Delete removes the reservation.  Its reference index entry stays behind
// as a tombstone so the reference is never issued again.
func (s *BoltReservationStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltReservationsBucket))
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// ListByStatus returns every reservation in the given status, newest first.
func (s *BoltReservationStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	items, err := s.scan(func(r *model.Reservation) bool { return r.Status == status })
	if err != nil {
		return nil, err
	}
	sortReservations(items, SortOrder{Field: SortCreatedAt, Desc: true})
	return items, nil
}

// ListPaged sorts every reservation in memory and returns one page.
func (s *BoltReservationStore) ListPaged(ctx context.Context, q ListQuery) (Page, error) {
	q = q.Normalize()
	items, err := s.scan(nil)
	if err != nil {
		return Page{}, err
	}
	sortReservations(items, q.Sort)
	total := int64(len(items))
	start := q.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + q.PageSize
	if end > len(items) {
		end = len(items)
	}
	return newPage(items[start:end], total, q), nil
}

func (s *BoltReservationStore) scan(keep func(*model.Reservation) bool) ([]model.Reservation, error) {
	items := []model.Reservation{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltReservationsBucket)).ForEach(func(k, v []byte) error {
			var r model.Reservation
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if keep == nil || keep(&r) {
				items = append(items, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
