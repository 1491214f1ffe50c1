package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// MongoReservationStore keeps each reservation as one document of the
// "reservations" collection.  Every issued reference is also recorded in
// "reservation_references" under its own _id; those documents are never
// deleted.
type MongoReservationStore struct {
	collection *mongo.Collection
	references *mongo.Collection
	now        func() time.Time
}

// referenceDoc registers one issued reference.
type referenceDoc struct {
	Reference     string    `bson:"_id"`
	ReservationID string    `bson:"reservationId"`
	IssuedAt      time.Time `bson:"issuedAt"`
}

// NewMongoReservationStore creates the unique index on reference and the
// status listing index, then returns the store.
func NewMongoReservationStore(ctx context.Context, db *mongo.Database) (*MongoReservationStore, error) {
	collection := db.Collection("reservations")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_reference"),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create reservation indexes: %w", err)
	}

	return &MongoReservationStore{
		collection: collection,
		references: db.Collection("reservation_references"),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create registers the reference, then inserts the document.  A reference
// already registered, even by a deleted reservation, yields
// ErrDuplicateReference.
func (s *MongoReservationStore) Create(ctx context.Context, r *model.Reservation) error {
	now := s.now().Truncate(time.Millisecond)
	doc := r.Clone()
	doc.ID = primitive.NewObjectID().Hex()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	ref := referenceDoc{Reference: doc.Reference, ReservationID: doc.ID, IssuedAt: now}
	if _, err := s.references.InsertOne(ctx, ref); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("register reference: %w", err)
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		// The reservation never existed, so its reference may be released.
		_, _ = s.references.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": doc.Reference, "reservationId": doc.ID})
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID, r.Version, r.CreatedAt, r.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	return nil
}

func (s *MongoReservationStore) findOne(ctx context.Context, filter bson.M) (*model.Reservation, error) {
	var r model.Reservation
	err := s.collection.FindOne(ctx, filter).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID finds a reservation by id.
func (s *MongoReservationStore) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByReference finds a reservation by its booking reference.
func (s *MongoReservationStore) GetByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	return s.findOne(ctx, bson.M{"reference": reference})
}

// ReferenceTaken reports whether the reference was ever issued.
func (s *MongoReservationStore) ReferenceTaken(ctx context.Context, reference string) (bool, error) {
	n, err := s.references.CountDocuments(ctx, bson.M{"_id": reference}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update replaces the mutable fields of the document matching id and version.
func (s *MongoReservationStore) Update(ctx context.Context, r *model.Reservation) error {
	now := s.now().Truncate(time.Millisecond)
	set := bson.M{
		"departureLocation":   r.DepartureLocation,
		"destinationId":       r.DestinationID,
		"flight":              r.Flight,
		"passengers":          r.Passengers,
		"totalPrice":          r.TotalPrice,
		"destinationSnapshot": r.DestinationSnapshot,
		"payment":             r.Payment,
		"status":              r.Status,
		"userId":              r.UserID,
		"updatedAt":           now,
	}
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": r.ID, "version": r.Version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := s.collection.CountDocuments(ctx, bson.M{"_id": r.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	r.Version++
	r.UpdatedAt = now
	return nil
}

// Delete removes the document permanently.  Its reference stays
// registered.
func (s *MongoReservationStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns every reservation in the given status, newest first.
func (s *MongoReservationStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	items := []model.Reservation{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

var mongoSortFields = map[string]string{
	SortCreatedAt:   "createdAt",
	SortUpdatedAt:   "updatedAt",
	SortTotalPrice:  "totalPrice",
	SortDepartureAt: "flight.departureAt",
	SortReference:   "reference",
	SortStatus:      "status",
}

// ListPaged returns one page ordered by q.Sort.
func (s *MongoReservationStore) ListPaged(ctx context.Context, q ListQuery) (Page, error) {
	q = q.Normalize()
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Page{}, err
	}
	field, ok := mongoSortFields[q.Sort.Field]
	if !ok {
		field = "createdAt"
	}
	dir := 1
	if q.Sort.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.PageSize))
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return Page{}, err
	}
	items := []model.Reservation{}
	if err := cursor.All(ctx, &items); err != nil {
		return Page{}, err
	}
	return newPage(items, total, q), nil
}
