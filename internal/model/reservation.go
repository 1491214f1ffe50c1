package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// IsValid reports whether s is one of the known reservation statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid reservation status: %q", raw)
	}
	return s, nil
}

// TravelClass is the fare tier booked for every passenger of a reservation.
type TravelClass string

const (
	ClassEconomy  TravelClass = "economy"
	ClassBusiness TravelClass = "business"
	ClassFirst    TravelClass = "first"
)

// IsValid reports whether c is a known travel class.
func (c TravelClass) IsValid() bool {
	switch c {
	case ClassEconomy, ClassBusiness, ClassFirst:
		return true
	}
	return false
}

// PaymentStatus tracks the recorded outcome of a payment intent.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentComplete PaymentStatus = "complete"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentComplete, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod is the means of payment the customer chose.
type PaymentMethod string

const (
	PaymentMethodUndefined    PaymentMethod = "undefined"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodUndefined, PaymentMethodCard, PaymentMethodMobileMoney,
		PaymentMethodBankTransfer, PaymentMethodCash:
		return true
	}
	return false
}

// Reservation is the aggregate root of a booking.  A reservation is
// created once, then mutated through status transitions and
// administrative field edits.  It is stored as a single self-contained
// document by every store backend.
//
// Fields:
//
//	ID                  – opaque identity assigned by the store.
//	Reference           – human readable unique booking reference (RES-...).
//	DepartureLocation   – free text place of departure.
//	DestinationID       – catalog id of the destination.
//	Flight              – embedded flight details.
//	Passengers          – ordered passengers, never empty.
//	TotalPrice          – price stored for audit, see service.Price.
//	DestinationSnapshot – destination display fields as of booking time.
//	Payment             – recorded payment intent and status.
//	Status              – lifecycle state.
//	UserID              – principal who created the reservation, if any.
//	Version             – optimistic concurrency token, bumped on every write.
//	CreatedAt/UpdatedAt – maintained by the store.
type Reservation struct {
	ID                  string               `json:"id" bson:"_id"`
	Reference           string               `json:"reference" bson:"reference"`
	DepartureLocation   string               `json:"departureLocation" bson:"departureLocation"`
	DestinationID       string               `json:"destinationId" bson:"destinationId"`
	Flight              Flight               `json:"flight" bson:"flight"`
	Passengers          []Passenger          `json:"passengers" bson:"passengers"`
	TotalPrice          float64              `json:"totalPrice" bson:"totalPrice"`
	DestinationSnapshot *DestinationSnapshot `json:"destinationSnapshot,omitempty" bson:"destinationSnapshot,omitempty"`
	Payment             Payment              `json:"payment" bson:"payment"`
	Status              Status               `json:"status" bson:"status"`
	UserID              string               `json:"userId,omitempty" bson:"userId,omitempty"`
	Version             int64                `json:"version" bson:"version"`
	CreatedAt           time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Flight holds the flight chosen for a reservation.
type Flight struct {
	FlightNumber string      `json:"flightNumber,omitempty" bson:"flightNumber,omitempty"`
	DepartureAt  time.Time   `json:"departureAt" bson:"departureAt"`
	ReturnAt     *time.Time  `json:"returnAt,omitempty" bson:"returnAt,omitempty"`
	TravelClass  TravelClass `json:"travelClass" bson:"travelClass"`
}

// Passenger is a traveller listed on a reservation.
type Passenger struct {
	FirstName      string    `json:"firstName" bson:"firstName"`
	LastName       string    `json:"lastName" bson:"lastName"`
	BirthDate      time.Time `json:"birthDate" bson:"birthDate"`
	PassportNumber string    `json:"passportNumber" bson:"passportNumber"`
	Nationality    string    `json:"nationality,omitempty" bson:"nationality,omitempty"`
	Phone          string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty"`
}

// Payment records the payment intent for a reservation.  No transaction
// is ever processed here; only the method and the reported status are kept.
type Payment struct {
	Method               PaymentMethod `json:"method" bson:"method"`
	Status               PaymentStatus `json:"status" bson:"status"`
	Amount               float64       `json:"amount" bson:"amount"`
	TransactionReference string        `json:"transactionReference,omitempty" bson:"transactionReference,omitempty"`
	PaidAt               *time.Time    `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

// Clone returns a deep copy so callers can mutate a reservation without
// aliasing slices or pointers held by another copy.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Passengers != nil {
		cp.Passengers = make([]Passenger, len(r.Passengers))
		copy(cp.Passengers, r.Passengers)
	}
	if r.Flight.ReturnAt != nil {
		t := *r.Flight.ReturnAt
		cp.Flight.ReturnAt = &t
	}
	if r.DestinationSnapshot != nil {
		snap := *r.DestinationSnapshot
		cp.DestinationSnapshot = &snap
	}
	if r.Payment.PaidAt != nil {
		t := *r.Payment.PaidAt
		cp.Payment.PaidAt = &t
	}
	return &cp
}
