package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/achtaA-a/projet-de-fin/internal/database"
	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/metrics"
	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/queue"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// fixedNow is the clock of every service test.
var fixedNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type stubDestinations map[string]model.DestinationSnapshot

func (s stubDestinations) Lookup(ctx context.Context, id string) (*model.DestinationSnapshot, error) {
	d, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func testDestinations() stubDestinations {
	return stubDestinations{
		"dest-paris": {ID: "dest-paris", Name: "Paris", Code: "PAR", Country: "France", City: "Paris", Price: 300, Active: true},
		"dest-dakar": {ID: "dest-dakar", Name: "Dakar", Code: "DKR", Country: "Senegal", City: "Dakar", Price: 250.5, Active: false},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	svc     *service.ReservationService
	store   *repository.BoltReservationStore
	pub     *recordingPublisher
	metrics *metrics.Metrics
	catalog stubDestinations
}

func newTestEnv(t *testing.T, cfg service.ReservationConfig) *testEnv {
	t.Helper()
	db, err := database.OpenBolt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := repository.NewBoltReservationStore(db)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	pub := &recordingPublisher{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	catalog := testDestinations()
	svc := service.NewReservationService(store, catalog, pub, m, logger.NewNop(), cfg).
		WithClock(func() time.Time { return fixedNow })
	t.Cleanup(svc.Wait)
	return &testEnv{svc: svc, store: store, pub: pub, metrics: m, catalog: catalog}
}

func validRequest() service.CreateReservationRequest {
	return service.CreateReservationRequest{
		DepartureLocation: " Dakar ",
		DestinationID:     "dest-paris",
		Flight: &service.FlightInput{
			FlightNumber: "af718",
			DepartureAt:  "2030-07-01T09:30:00Z",
			ReturnAt:     "2030-07-15",
			TravelClass:  "business",
		},
		Passengers: []service.PassengerInput{
			{FirstName: " Awa ", LastName: "Diallo", BirthDate: "1990-04-12", PassportNumber: "a1234567", Email: "Awa@Example.com"},
			{FirstName: "Moussa", LastName: "Diallo", BirthDate: "1988-11-02T00:00:00Z", PassportNumber: "B7654321"},
		},
		PaymentMethod: "card",
	}
}

var (
	admin    = service.Actor{UserID: "admin-1", Role: service.RoleAdmin}
	customer = service.Actor{UserID: "user-1", Role: service.RoleCustomer}
	stranger = service.Actor{UserID: "user-2", Role: service.RoleCustomer}
)

func kindOf(t *testing.T, err error) service.Kind {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	return service.KindOf(err)
}
