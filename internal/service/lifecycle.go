package service

import (
	"fmt"
	"time"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// DefaultCancellationWindow is how long before departure a confirmed
// reservation stops being cancellable.
const DefaultCancellationWindow = 24 * time.Hour

// transitions defines the reservation state machine.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted: {},
	model.StatusCancelled: {},
}

// CanTransition reports whether the state machine allows from -> to.
// Self transitions are never allowed.
func CanTransition(from, to model.Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition moves r to the requested status and applies its side
// effects.  On an illegal transition r is left untouched.
func Transition(r *model.Reservation, to model.Status) error {
	if !to.IsValid() {
		return &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("unknown status %q", to),
			Fields:  []FieldError{{Field: "status", Message: "must be one of pending, confirmed, cancelled, completed"}},
		}
	}
	if !CanTransition(r.Status, to) {
		return &Error{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot move reservation from %s to %s", r.Status, to),
		}
	}
	r.Status = to
	if to == model.StatusCancelled && r.Payment.Status == model.PaymentComplete {
		r.Payment.Status = model.PaymentRefunded
	}
	return nil
}

// IsCancellable reports whether r is confirmed and departs more than
// window after now.
func IsCancellable(r *model.Reservation, now time.Time, window time.Duration) bool {
	if r.Status != model.StatusConfirmed {
		return false
	}
	return r.Flight.DepartureAt.Sub(now) > window
}

// paymentTransitions is the small machine followed by the payment status.
var paymentTransitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending:  {model.PaymentComplete, model.PaymentFailed},
	model.PaymentFailed:   {model.PaymentPending, model.PaymentComplete},
	model.PaymentComplete: {model.PaymentRefunded},
	model.PaymentRefunded: {},
}

// CanTransitionPayment reports whether the payment status may move from -> to.
func CanTransitionPayment(from, to model.PaymentStatus) bool {
	for _, t := range paymentTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
