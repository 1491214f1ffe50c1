// Package queue carries reservation events over RabbitMQ: the payload
// type, the publisher used by the API and the consumer run by the notifier.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// QueueName is the durable queue every reservation event is routed to.
const QueueName = "reservation.events"

// Event types.
const (
	EventCreated         = "reservation.created"
	EventStatusChanged   = "reservation.status_changed"
	EventPaymentRecorded = "reservation.payment_recorded"
	EventDeleted         = "reservation.deleted"
)

// ReservationEvent is published after a reservation changes.  It holds
// enough to notify the customer without reading the reservation store.
type ReservationEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	Reference      string    `json:"reference"`
	UserID         string    `json:"user_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	PaymentStatus  string    `json:"payment_status,omitempty"`
	Destination    string    `json:"destination,omitempty"`
	DepartureAt    time.Time `json:"departure_at"`
	Passengers     int       `json:"passengers"`
	TotalPrice     float64   `json:"total_price"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh event id and the current UTC time.
func NewEvent(eventType string) ReservationEvent {
	return ReservationEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}
