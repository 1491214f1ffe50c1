package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/metrics"
	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/queue"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
)

const (
	// createAttempts bounds the allocate-then-insert rounds of Create.
	createAttempts = 5
	// updateAttempts bounds read-modify-write retries on version conflicts.
	updateAttempts = 3
	// priceTolerance is the largest accepted gap between a client supplied
	// total and the computed one.
	priceTolerance = 0.01
	publishTimeout = 5 * time.Second
)

// Roles carried in access tokens.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Actor is the principal performing an operation.  The zero value is an
// anonymous caller.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CancellationPolicy selects whether customers may cancel confirmed
// reservations close to departure.
type CancellationPolicy string

const (
	PolicyEnforce CancellationPolicy = "enforce"
	PolicyLenient CancellationPolicy = "lenient"
)

// ReservationConfig tunes the lifecycle rules.
type ReservationConfig struct {
	Policy CancellationPolicy
	Window time.Duration
}

// EventPublisher delivers reservation events.  Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// ReservationService is the reservation lifecycle engine: it validates,
// prices and stores new reservations and drives every later change
// through the state machine.
type ReservationService struct {
	store        repository.ReservationStore
	destinations repository.DestinationLookup
	refs         *ReferenceGenerator
	validator    Validator
	publisher    EventPublisher
	metrics      *metrics.Metrics
	log          logger.Logger
	cfg          ReservationConfig
	now          func() time.Time

	pending sync.WaitGroup
}

// NewReservationService wires the engine.  publisher may be nil.
func NewReservationService(
	store repository.ReservationStore,
	destinations repository.DestinationLookup,
	publisher EventPublisher,
	m *metrics.Metrics,
	log logger.Logger,
	cfg ReservationConfig,
) *ReservationService {
	if cfg.Window <= 0 {
		cfg.Window = DefaultCancellationWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyEnforce
	}
	return &ReservationService{
		store:        store,
		destinations: destinations,
		refs:         NewReferenceGenerator(store),
		publisher:    publisher,
		metrics:      m,
		log:          log,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for validation and the cancellation window.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// WithReferenceGenerator replaces the reference generator.
func (s *ReservationService) WithReferenceGenerator(g *ReferenceGenerator) *ReservationService {
	s.refs = g
	return s
}

// Wait blocks until every in-flight event publication has finished.
func (s *ReservationService) Wait() {
	s.pending.Wait()
}

// Create validates req, snapshots the destination, prices the booking and
// inserts it under a freshly allocated reference.  The owner is the
// authenticated customer; only admins may book on behalf of the userId
// named in the body, and anonymous bookings have no owner.
func (s *ReservationService) Create(ctx context.Context, req CreateReservationRequest, actor Actor) (*model.Reservation, error) {
	start := time.Now()
	defer s.metrics.ObserveCreate(start)

	switch {
	case actor.IsAdmin():
		if strings.TrimSpace(req.UserID) == "" {
			req.UserID = actor.UserID
		}
	case actor.UserID != "":
		req.UserID = actor.UserID
	default:
		req.UserID = ""
	}
	v, err := s.validator.Validate(req, s.now())
	if err != nil {
		return nil, err
	}

	snap, err := s.lookupDestination(ctx, v.DestinationID)
	if err != nil {
		return nil, err
	}

	computed := Price(snap.Price, len(v.Passengers), v.Flight.TravelClass)
	total := computed
	if v.TotalPrice != nil {
		switch {
		case actor.IsAdmin():
			total = *v.TotalPrice
		case math.Abs(*v.TotalPrice-computed) > priceTolerance:
			return nil, validationError([]FieldError{{
				Field:   "totalPrice",
				Message: fmt.Sprintf("does not match the computed price %.2f", computed),
			}})
		}
	}

	r := &model.Reservation{
		DepartureLocation:   v.DepartureLocation,
		DestinationID:       v.DestinationID,
		Flight:              v.Flight,
		Passengers:          v.Passengers,
		TotalPrice:          total,
		DestinationSnapshot: snap,
		Payment: model.Payment{
			Method: v.PaymentMethod,
			Status: model.PaymentPending,
			Amount: total,
		},
		Status: model.StatusPending,
		UserID: v.UserID,
	}

	if err := s.insert(ctx, r); err != nil {
		s.metrics.ErrorsCount.WithLabelValues("create").Inc()
		return nil, err
	}

	s.metrics.ReservationsCreated.Inc()
	s.log.Info("reservation created", "reference", r.Reference, "id", r.ID, "destination", r.DestinationID, "total", r.TotalPrice)
	s.publish(ctx, queue.EventCreated, r, "")
	return r, nil
}

// insert runs the bounded allocate-then-insert loop.  A reference lost to
// a concurrent insert restarts from candidate generation.
func (s *ReservationService) insert(ctx context.Context, r *model.Reservation) error {
	for attempt := 1; attempt <= createAttempts; attempt++ {
		ref, err := s.refs.Next(ctx)
		if err != nil {
			return internal("could not allocate a reservation reference", err)
		}
		r.Reference = ref
		err = s.store.Create(ctx, r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return internal("could not store the reservation", err)
		}
		s.metrics.ReferenceCollisions.Inc()
		s.log.Warn("reference collision", "reference", ref, "attempt", attempt)
	}
	return internal("could not allocate a unique reservation reference", repository.ErrDuplicateReference)
}

func (s *ReservationService) lookupDestination(ctx context.Context, id string) (*model.DestinationSnapshot, error) {
	snap, err := s.destinations.Lookup(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("destination", id)
	}
	if err != nil {
		return nil, internal("destination lookup failed", err)
	}
	return snap, nil
}

// Get returns the reservation with the given id if the actor may see it.
func (s *ReservationService) Get(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(r, actor); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByReference returns the reservation holding the booking reference.
// The reference is the customer's proof of booking, so no ownership check
// applies.
func (s *ReservationService) GetByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	r, err := s.store.GetByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("reservation", reference)
	}
	if err != nil {
		return nil, internal("could not load the reservation", err)
	}
	return r, nil
}

func (s *ReservationService) load(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("reservation", id)
	}
	if err != nil {
		return nil, internal("could not load the reservation", err)
	}
	return r, nil
}

// authorizeRead lets admins, the owner and, for reservations booked
// without an account, any authenticated caller read the reservation.
func authorizeRead(r *model.Reservation, actor Actor) error {
	if actor.IsAdmin() || r.UserID == "" || r.UserID == actor.UserID {
		return nil
	}
	return forbidden()
}

// authorizeWrite lets only admins and the owner change the reservation.
// Reservations without an owner are changed by admins only.
func authorizeWrite(r *model.Reservation, actor Actor) error {
	if actor.IsAdmin() || (r.UserID != "" && r.UserID == actor.UserID) {
		return nil
	}
	return forbidden()
}

// mutate loads the reservation, applies fn and writes it back, retrying
// when another writer got there first.  fn must only depend on the
// reservation it is given.
func (s *ReservationService) mutate(ctx context.Context, id, op string, fn func(r *model.Reservation) error) (*model.Reservation, error) {
	for attempt := 1; attempt <= updateAttempts; attempt++ {
		r, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			return nil, err
		}
		err = s.store.Update(ctx, r)
		switch {
		case err == nil:
			return r, nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.log.Debug("version conflict, retrying", "id", id, "op", op, "attempt", attempt)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound("reservation", id)
		default:
			s.metrics.ErrorsCount.WithLabelValues(op).Inc()
			return nil, internal("could not save the reservation", err)
		}
	}
	s.metrics.ErrorsCount.WithLabelValues(op).Inc()
	return nil, conflict("reservation was modified concurrently, please retry", repository.ErrVersionConflict)
}

// Update applies an administrative edit.  Status is never changed here.
// A changed destination is snapshotted again and the price is recomputed
// when passengers, class or destination change, unless the patch sets
// totalPrice explicitly.
func (s *ReservationService) Update(ctx context.Context, id string, patch ReservationPatch, actor Actor) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden()
	}
	p, err := s.validator.ValidatePatch(patch, s.now())
	if err != nil {
		return nil, err
	}

	var snap *model.DestinationSnapshot
	if p.DestinationID != nil {
		if snap, err = s.lookupDestination(ctx, *p.DestinationID); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, id, "update", func(r *model.Reservation) error {
		if r.Status.IsTerminal() {
			return conflict(fmt.Sprintf("reservation is %s and can no longer be edited", r.Status), nil)
		}
		reprice := false
		if p.DepartureLocation != nil {
			r.DepartureLocation = *p.DepartureLocation
		}
		if p.DestinationID != nil && *p.DestinationID != r.DestinationID {
			r.DestinationID = *p.DestinationID
			r.DestinationSnapshot = snap
			reprice = true
		}
		if p.Flight != nil {
			if p.Flight.TravelClass != r.Flight.TravelClass {
				reprice = true
			}
			r.Flight = *p.Flight
		}
		if p.Passengers != nil {
			if len(p.Passengers) != len(r.Passengers) {
				reprice = true
			}
			r.Passengers = p.Passengers
		}
		if p.PaymentMethod != nil {
			r.Payment.Method = *p.PaymentMethod
		}
		switch {
		case p.TotalPrice != nil:
			r.TotalPrice = *p.TotalPrice
		case reprice && r.DestinationSnapshot != nil:
			r.TotalPrice = Price(r.DestinationSnapshot.Price, len(r.Passengers), r.Flight.TravelClass)
		}
		if r.Payment.Status == model.PaymentPending || r.Payment.Status == model.PaymentFailed {
			r.Payment.Amount = r.TotalPrice
		}
		return nil
	})
}

// ChangeStatus moves the reservation through the state machine.  Customers
// may only cancel, and only within the cancellation policy; administrators
// may request any legal transition.
func (s *ReservationService) ChangeStatus(ctx context.Context, id string, to model.Status, actor Actor) (*model.Reservation, error) {
	if !actor.IsAdmin() && to != model.StatusCancelled {
		return nil, forbidden()
	}
	var from model.Status
	r, err := s.mutate(ctx, id, "change_status", func(r *model.Reservation) error {
		if err := authorizeWrite(r, actor); err != nil {
			return err
		}
		from = r.Status
		if to == model.StatusCancelled && r.Status == model.StatusConfirmed && !actor.IsAdmin() &&
			s.cfg.Policy == PolicyEnforce && !IsCancellable(r, s.now(), s.cfg.Window) {
			return &Error{
				Kind:    KindNotCancellable,
				Message: fmt.Sprintf("reservation departs in less than %s and can no longer be cancelled", s.cfg.Window),
			}
		}
		return Transition(r, to)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.log.Info("reservation status changed", "reference", r.Reference, "from", from, "to", to)
	s.publish(ctx, queue.EventStatusChanged, r, from)
	return r, nil
}

// Cancel moves the reservation to cancelled.
func (s *ReservationService) Cancel(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	return s.ChangeStatus(ctx, id, model.StatusCancelled, actor)
}

// Cancellability is the answer to the "is cancellable" query.
type Cancellability struct {
	ReservationID string       `json:"reservationId"`
	Reference     string       `json:"reference"`
	Status        model.Status `json:"status"`
	Cancellable   bool         `json:"cancellable"`
	Deadline      time.Time    `json:"deadline"`
}

// Cancellability reports whether the reservation is confirmed and departs
// further away than the cancellation window.
func (s *ReservationService) Cancellability(ctx context.Context, id string, actor Actor) (*Cancellability, error) {
	r, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &Cancellability{
		ReservationID: r.ID,
		Reference:     r.Reference,
		Status:        r.Status,
		Cancellable:   IsCancellable(r, s.now(), s.cfg.Window),
		Deadline:      r.Flight.DepartureAt.Add(-s.cfg.Window),
	}, nil
}

// PaymentUpdate reports the outcome of a payment attempt.
type PaymentUpdate struct {
	Status               string  `json:"status"`
	Method               *string `json:"method,omitempty"`
	TransactionReference string  `json:"transactionReference,omitempty"`
}

// RecordPayment stores the reported payment status.  Completing a payment
// stamps paidAt; refunds are reserved to administrators.
func (s *ReservationService) RecordPayment(ctx context.Context, id string, u PaymentUpdate, actor Actor) (*model.Reservation, error) {
	var errs fieldErrors
	to := model.PaymentStatus(strings.ToLower(strings.TrimSpace(u.Status)))
	if !to.IsValid() {
		errs.add("status", "must be one of pending, complete, failed, refunded")
	}
	var method *model.PaymentMethod
	if u.Method != nil {
		m := model.PaymentMethod(strings.ToLower(strings.TrimSpace(*u.Method)))
		if !m.IsValid() {
			errs.add("method", "must be one of undefined, card, mobile_money, bank_transfer, cash")
		}
		method = &m
	}
	if len(errs) > 0 {
		return nil, &Error{Kind: KindValidation, Message: "payment update is invalid", Fields: errs}
	}
	if to == model.PaymentRefunded && !actor.IsAdmin() {
		return nil, forbidden()
	}

	r, err := s.mutate(ctx, id, "record_payment", func(r *model.Reservation) error {
		if err := authorizeWrite(r, actor); err != nil {
			return err
		}
		if r.Status.IsTerminal() && to != model.PaymentRefunded {
			return conflict(fmt.Sprintf("reservation is %s, payment can no longer change", r.Status), nil)
		}
		if !CanTransitionPayment(r.Payment.Status, to) {
			return &Error{
				Kind:    KindInvalidTransition,
				Message: fmt.Sprintf("cannot move payment from %s to %s", r.Payment.Status, to),
			}
		}
		r.Payment.Status = to
		if method != nil {
			r.Payment.Method = *method
		}
		if ref := strings.TrimSpace(u.TransactionReference); ref != "" {
			r.Payment.TransactionReference = ref
		}
		if to == model.PaymentComplete {
			paid := s.now().Truncate(time.Millisecond)
			r.Payment.PaidAt = &paid
			r.Payment.Amount = r.TotalPrice
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded", "reference", r.Reference, "payment_status", to)
	s.publish(ctx, queue.EventPaymentRecorded, r, "")
	return r, nil
}

// Delete removes the reservation permanently.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("reservation", id)
		}
		s.metrics.ErrorsCount.WithLabelValues("delete").Inc()
		return internal("could not delete the reservation", err)
	}
	s.log.Info("reservation deleted", "reference", r.Reference, "id", id)
	s.publish(ctx, queue.EventDeleted, r, "")
	return nil
}

// ListByStatus returns every reservation in status, newest first.
func (s *ReservationService) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	if !status.IsValid() {
		return nil, &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("unknown status %q", status),
			Fields:  []FieldError{{Field: "status", Message: "must be one of pending, confirmed, cancelled, completed"}},
		}
	}
	items, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, internal("could not list reservations", err)
	}
	return items, nil
}

// List returns one page of reservations.
func (s *ReservationService) List(ctx context.Context, q repository.ListQuery) (repository.Page, error) {
	page, err := s.store.ListPaged(ctx, q.Normalize())
	if err != nil {
		return repository.Page{}, internal("could not list reservations", err)
	}
	return page, nil
}

// publish sends the event in the background; the request never waits for
// the broker.
func (s *ReservationService) publish(ctx context.Context, eventType string, r *model.Reservation, previous model.Status) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewEvent(eventType)
	ev.ReservationID = r.ID
	ev.Reference = r.Reference
	ev.UserID = r.UserID
	ev.Status = string(r.Status)
	ev.PreviousStatus = string(previous)
	ev.PaymentStatus = string(r.Payment.Status)
	ev.DepartureAt = r.Flight.DepartureAt
	ev.Passengers = len(r.Passengers)
	ev.TotalPrice = r.TotalPrice
	if r.DestinationSnapshot != nil {
		ev.Destination = r.DestinationSnapshot.DisplayName()
	}
	if len(r.Passengers) > 0 {
		ev.ContactEmail = r.Passengers[0].Email
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("event publish failed", "event", eventType, "reference", ev.Reference, "error", err)
		}
	}()
}
