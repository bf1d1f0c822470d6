// Package metrics defines the Prometheus collectors of the simulator and
// the engine hooks that feed them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

const namespace = "seatsim"

var (
	SeatTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "seat_transitions_total",
			Help:      "Seat status changes by resulting status",
		},
		[]string{"status"},
	)

	WorkerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "worker_outcomes_total",
			Help:      "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker transitions by resulting API state",
		},
		[]string{"state"},
	)

	BreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "open",
			Help:      "Number of runs whose circuit breaker is currently open",
		},
	)

	AllocatorFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "allocator_fallbacks_total",
			Help:      "Seat draws served by the first-available scan after the shuffled order ran out",
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "publish_errors_total",
			Help:      "Events the notifier failed to deliver",
		},
	)

	NotifierDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch buffer was full",
		},
		[]string{"kind"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Finished simulations by final status",
		},
		[]string{"status"},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_in_flight",
			Help:      "Simulations currently running",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a simulation",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// Hooks returns engine callbacks that update the collectors above.
func Hooks() *booking.Hooks {
	return &booking.Hooks{
		OnSeatTransition: func(status model.SeatStatus) {
			SeatTransitions.WithLabelValues(status.String()).Inc()
		},
		OnBreakerTrip: func() {
			BreakerTransitions.WithLabelValues(model.BreakerDown.String()).Inc()
			BreakerOpen.Inc()
		},
		OnBreakerRelease: func() {
			BreakerTransitions.WithLabelValues(model.BreakerUp.String()).Inc()
			BreakerOpen.Dec()
		},
		OnWorkerDone: func(outcome booking.Outcome) {
			WorkerOutcomes.WithLabelValues(outcome.String()).Inc()
		},
		OnPublishError: func(error) {
			PublishErrors.Inc()
		},
		OnAllocatorFallback: func() {
			AllocatorFallbacks.Inc()
		},
	}
}
