// Package metrics defines the prometheus collectors of the reservation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	ReservationsCreated prometheus.Counter
	ReferenceCollisions prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	CreateDuration      prometheus.Histogram
	ErrorsCount         *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.  Tests pass a fresh
// prometheus.NewRegistry() so repeated construction never panics.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "The total number of created reservations",
		}),
		ReferenceCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_collisions_total",
			Help:      "Inserts rejected by the unique reference index",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Reservation status transitions",
		}, []string{"from", "to"}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_create_seconds",
			Help:      "Time taken to create a reservation",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

// ObserveCreate records the latency of one creation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
