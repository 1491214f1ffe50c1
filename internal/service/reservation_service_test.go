package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/queue"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

func TestCreateThenGetByReference(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !referencePattern.MatchString(r.Reference) {
		t.Fatalf("unexpected reference %q", r.Reference)
	}
	if r.Status != model.StatusPending || r.Payment.Status != model.PaymentPending {
		t.Fatalf("unexpected initial state: %s / %s", r.Status, r.Payment.Status)
	}
	if r.TotalPrice != 900 || r.Payment.Amount != 900 {
		t.Fatalf("expected 300 * 2 * 1.5 = 900, got %v", r.TotalPrice)
	}
	if r.UserID != customer.UserID {
		t.Fatalf("expected principal as owner, got %q", r.UserID)
	}
	if r.DestinationSnapshot == nil || r.DestinationSnapshot.Code != "PAR" {
		t.Fatalf("destination snapshot missing: %+v", r.DestinationSnapshot)
	}

	got, err := env.svc.GetByReference(ctx, strings.ToLower(r.Reference))
	if err != nil {
		t.Fatalf("get by reference: %v", err)
	}
	if got.ID != r.ID || got.TotalPrice != r.TotalPrice || len(got.Passengers) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Flight.DepartureAt.Equal(r.Flight.DepartureAt) {
		t.Fatalf("departure did not round trip")
	}

	env.svc.Wait()
	if types := env.pub.types(); len(types) != 1 || types[0] != queue.EventCreated {
		t.Fatalf("expected one created event, got %v", types)
	}
	if n := testutil.ToFloat64(env.metrics.ReservationsCreated); n != 1 {
		t.Fatalf("expected created counter 1, got %v", n)
	}
}

func TestCreateInactiveDestinationAccepted(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	req := validRequest()
	req.DestinationID = "dest-dakar"
	req.Flight.TravelClass = "economy"
	r, err := env.svc.Create(context.Background(), req, service.Actor{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.TotalPrice != 501 {
		t.Fatalf("expected 250.5 * 2 = 501, got %v", r.TotalPrice)
	}
}

func TestCreateUnknownDestination(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	req := validRequest()
	req.DestinationID = "dest-atlantis"
	_, err := env.svc.Create(ctx, req, customer)
	if kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	page, err := env.svc.List(ctx, repository.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("nothing should be persisted, found %d", page.Total)
	}
}

func TestCreateFutureBirthDate(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	req := validRequest()
	req.Passengers[0].BirthDate = "2031-02-03"
	_, err := env.svc.Create(context.Background(), req, customer)
	fields := fieldsOf(t, err)
	if _, ok := fields["passengers[0].birthDate"]; !ok {
		t.Fatalf("expected passengers[0].birthDate error, got %v", fields)
	}
}

func TestCreateTotalPrice(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	matching := 900.0
	req := validRequest()
	req.TotalPrice = &matching
	if _, err := env.svc.Create(ctx, req, customer); err != nil {
		t.Fatalf("matching total should be accepted: %v", err)
	}

	wrong := 10.0
	req = validRequest()
	req.TotalPrice = &wrong
	_, err := env.svc.Create(ctx, req, customer)
	if _, ok := fieldsOf(t, err)["totalPrice"]; !ok {
		t.Fatalf("expected totalPrice error, got %v", err)
	}

	r, err := env.svc.Create(ctx, req, admin)
	if err != nil {
		t.Fatalf("admin override: %v", err)
	}
	if r.TotalPrice != 10 {
		t.Fatalf("expected overridden price 10, got %v", r.TotalPrice)
	}
}

func TestCreateRetriesThenGivesUp(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()
	at := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	g := service.NewReferenceGenerator(env.store).
		WithClock(func() time.Time { return at }).
		WithRandom(func(n int) string { return strings.Repeat("Q", n) })
	env.svc.WithReferenceGenerator(g)

	first, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("second create should use the fallback: %v", err)
	}
	if first.Reference == second.Reference {
		t.Fatalf("references collide: %s", first.Reference)
	}
	if !strings.HasSuffix(second.Reference, "-QQQQQQQQQ") {
		t.Fatalf("expected fallback reference, got %s", second.Reference)
	}

	_, err = env.svc.Create(ctx, validRequest(), customer)
	if kindOf(t, err) != service.KindInternal {
		t.Fatalf("expected internal error after exhausting retries, got %v", err)
	}
	if n := testutil.ToFloat64(env.metrics.ReferenceCollisions); n != 5 {
		t.Fatalf("expected 5 collisions, got %v", n)
	}
}

func TestConcurrentCreatesGetDistinctReferences(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	const n = 100
	refs := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := env.svc.Create(ctx, validRequest(), service.Actor{})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			refs[i] = r.Reference
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, ref := range refs {
		if seen[ref] {
			t.Fatalf("duplicate reference %s", ref)
		}
		seen[ref] = true
	}
}

func TestOwnership(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.Get(ctx, r.ID, customer); err != nil {
		t.Fatalf("owner should read: %v", err)
	}
	if _, err := env.svc.Get(ctx, r.ID, admin); err != nil {
		t.Fatalf("admin should read: %v", err)
	}
	if _, err := env.svc.Get(ctx, r.ID, stranger); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.svc.Cancel(ctx, r.ID, stranger); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, "missing", admin); kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnonymousReservationWrites(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), service.Actor{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.UserID != "" {
		t.Fatalf("anonymous booking must have no owner, got %q", r.UserID)
	}
	if _, err := env.svc.Get(ctx, r.ID, stranger); err != nil {
		t.Fatalf("any signed-in caller may read an anonymous booking: %v", err)
	}
	if _, err := env.svc.RecordPayment(ctx, r.ID, service.PaymentUpdate{Status: "complete"}, stranger); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("expected forbidden payment, got %v", err)
	}
	if _, err := env.svc.Cancel(ctx, r.ID, stranger); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("expected forbidden cancel, got %v", err)
	}

	got, err := env.svc.Get(ctx, r.ID, admin)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusPending || got.Payment.Status != model.PaymentPending {
		t.Fatalf("anonymous booking changed: %s / %s", got.Status, got.Payment.Status)
	}
	if _, err := env.svc.Cancel(ctx, r.ID, admin); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestCreateOwnerFromBody(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	req := validRequest()
	req.UserID = "user-1"
	r, err := env.svc.Create(ctx, req, service.Actor{})
	if err != nil {
		t.Fatalf("anonymous create: %v", err)
	}
	if r.UserID != "" {
		t.Fatalf("anonymous caller assigned owner %q", r.UserID)
	}

	r, err = env.svc.Create(ctx, req, stranger)
	if err != nil {
		t.Fatalf("customer create: %v", err)
	}
	if r.UserID != stranger.UserID {
		t.Fatalf("expected the principal as owner, got %q", r.UserID)
	}

	r, err = env.svc.Create(ctx, req, admin)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if r.UserID != "user-1" {
		t.Fatalf("admin books on behalf of the named user, got %q", r.UserID)
	}
}

func TestCreateSeesCatalogDelete(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	if _, err := env.svc.Create(ctx, validRequest(), customer); err != nil {
		t.Fatalf("create: %v", err)
	}
	delete(env.catalog, "dest-paris")

	if _, err := env.svc.Create(ctx, validRequest(), customer); kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found after catalog delete, got %v", err)
	}
	page, err := env.svc.List(ctx, repository.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one stored reservation, got %d", page.Total)
	}
}

func TestChangeStatusFlow(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.ChangeStatus(ctx, r.ID, model.StatusConfirmed, customer); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("customers may not confirm, got %v", err)
	}

	r, err = env.svc.ChangeStatus(ctx, r.ID, model.StatusConfirmed, admin)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	r, err = env.svc.ChangeStatus(ctx, r.ID, model.StatusCompleted, admin)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if r.Version != 3 {
		t.Fatalf("expected version 3, got %d", r.Version)
	}
	_, err = env.svc.ChangeStatus(ctx, r.ID, model.StatusConfirmed, admin)
	if kindOf(t, err) != service.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if !strings.Contains(err.Error(), "completed") || !strings.Contains(err.Error(), "confirmed") {
		t.Fatalf("error should name both states: %v", err)
	}

	env.svc.Wait()
	got := env.pub.types()
	if len(got) != 3 || got[1] != queue.EventStatusChanged || got[2] != queue.EventStatusChanged {
		t.Fatalf("unexpected events %v", got)
	}
	if n := testutil.ToFloat64(env.metrics.StatusTransitions.WithLabelValues("pending", "confirmed")); n != 1 {
		t.Fatalf("expected one pending->confirmed transition, got %v", n)
	}
}

func confirmedReservation(t *testing.T, env *testEnv, departure string) *model.Reservation {
	t.Helper()
	ctx := context.Background()
	req := validRequest()
	req.Flight.DepartureAt = departure
	req.Flight.ReturnAt = ""
	r, err := env.svc.Create(ctx, req, customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err = env.svc.ChangeStatus(ctx, r.ID, model.StatusConfirmed, admin)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return r
}

func TestCancellationWindow(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	// fixedNow is 2030-06-01T12:00:00Z.
	far := confirmedReservation(t, env, "2030-06-03T12:00:00Z")
	near := confirmedReservation(t, env, "2030-06-01T22:00:00Z")

	c, err := env.svc.Cancellability(ctx, far.ID, customer)
	if err != nil || !c.Cancellable {
		t.Fatalf("48h ahead should be cancellable: %+v %v", c, err)
	}
	c, err = env.svc.Cancellability(ctx, near.ID, customer)
	if err != nil || c.Cancellable {
		t.Fatalf("10h ahead should not be cancellable: %+v %v", c, err)
	}
	if !c.Deadline.Equal(time.Date(2030, 5, 31, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected deadline %v", c.Deadline)
	}

	if _, err := env.svc.Cancel(ctx, far.ID, customer); err != nil {
		t.Fatalf("cancel far: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, near.ID, customer); kindOf(t, err) != service.KindNotCancellable {
		t.Fatalf("expected not cancellable, got %v", err)
	}
	r, err := env.svc.Cancel(ctx, near.ID, admin)
	if err != nil {
		t.Fatalf("admin bypasses the window: %v", err)
	}
	if r.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", r.Status)
	}
}

func TestLenientPolicyAllowsLateCancellation(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{Policy: service.PolicyLenient})
	near := confirmedReservation(t, env, "2030-06-01T22:00:00Z")
	if _, err := env.svc.Cancel(context.Background(), near.ID, customer); err != nil {
		t.Fatalf("lenient policy should allow cancellation: %v", err)
	}
}

func TestPendingReservationCancelsAnytime(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	req := validRequest()
	req.Flight.DepartureAt = "2030-06-01T13:00:00Z"
	req.Flight.ReturnAt = ""
	r, err := env.svc.Create(context.Background(), req, customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.Cancel(context.Background(), r.ID, customer); err != nil {
		t.Fatalf("pending reservation should cancel: %v", err)
	}
}

func TestRecordPaymentAndRefundOnCancel(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r := confirmedReservation(t, env, "2030-06-10T08:00:00Z")

	if _, err := env.svc.RecordPayment(ctx, r.ID, service.PaymentUpdate{Status: "refunded"}, customer); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("customers may not refund, got %v", err)
	}
	if _, err := env.svc.RecordPayment(ctx, r.ID, service.PaymentUpdate{Status: "paid"}, customer); kindOf(t, err) != service.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	method := "mobile_money"
	r, err := env.svc.RecordPayment(ctx, r.ID, service.PaymentUpdate{Status: "complete", Method: &method, TransactionReference: "TX-1"}, customer)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if r.Payment.Status != model.PaymentComplete || r.Payment.PaidAt == nil || r.Payment.Method != model.PaymentMethodMobileMoney {
		t.Fatalf("unexpected payment %+v", r.Payment)
	}
	if _, err := env.svc.RecordPayment(ctx, r.ID, service.PaymentUpdate{Status: "failed"}, customer); kindOf(t, err) != service.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	r, err = env.svc.Cancel(ctx, r.ID, customer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Payment.Status != model.PaymentRefunded {
		t.Fatalf("expected refunded payment, got %s", r.Payment.Status)
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.Update(ctx, r.ID, service.ReservationPatch{}, customer); kindOf(t, err) != service.KindForbidden {
		t.Fatalf("customers may not edit, got %v", err)
	}

	_, err = env.svc.Update(ctx, r.ID, service.ReservationPatch{Passengers: []service.PassengerInput{}}, admin)
	if _, ok := fieldsOf(t, err)["passengers"]; !ok {
		t.Fatalf("expected passengers error, got %v", err)
	}

	dest := "dest-dakar"
	updated, err := env.svc.Update(ctx, r.ID, service.ReservationPatch{
		DestinationID: &dest,
		Passengers:    validRequest().Passengers[:1],
	}, admin)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DestinationSnapshot.Code != "DKR" {
		t.Fatalf("expected new snapshot, got %+v", updated.DestinationSnapshot)
	}
	if updated.TotalPrice != 375.75 || updated.Payment.Amount != 375.75 {
		t.Fatalf("expected repriced 250.5 * 1 * 1.5 = 375.75, got %v", updated.TotalPrice)
	}
	if updated.Status != model.StatusPending || updated.Reference != r.Reference {
		t.Fatalf("update must not touch status or reference")
	}

	override := 42.0
	updated, err = env.svc.Update(ctx, r.ID, service.ReservationPatch{TotalPrice: &override}, admin)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if updated.TotalPrice != 42 {
		t.Fatalf("expected override 42, got %v", updated.TotalPrice)
	}

	unknown := "dest-atlantis"
	if _, err := env.svc.Update(ctx, r.ID, service.ReservationPatch{DestinationID: &unknown}, admin); kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := env.svc.Cancel(ctx, r.ID, admin); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	loc := "Thiès"
	if _, err := env.svc.Update(ctx, r.ID, service.ReservationPatch{DepartureLocation: &loc}, admin); kindOf(t, err) != service.KindConflict {
		t.Fatalf("expected conflict on terminal reservation, got %v", err)
	}
}

func TestConcurrentStatusChangesKeepOneWinner(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	r, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ChangeStatus(ctx, r.ID, model.StatusConfirmed, admin)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly one confirmation to succeed, got %d", success)
	}
}

func TestDeleteAndListByStatus(t *testing.T) {
	env := newTestEnv(t, service.ReservationConfig{})
	ctx := context.Background()

	a, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := env.svc.Create(ctx, validRequest(), customer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.ChangeStatus(ctx, b.ID, model.StatusConfirmed, admin); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	pending, err := env.svc.ListByStatus(ctx, model.StatusPending)
	if err != nil || len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("unexpected pending list %v %v", pending, err)
	}
	if _, err := env.svc.ListByStatus(ctx, model.Status("annulée")); kindOf(t, err) != service.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := env.svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.svc.Delete(ctx, a.ID); kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.svc.GetByReference(ctx, a.Reference); kindOf(t, err) != service.KindNotFound {
		t.Fatalf("expected not found by reference, got %v", err)
	}
}
