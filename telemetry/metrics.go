package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/asyncsm/statemachine"
)

// Metrics records machine lifecycle events as Prometheus series.
type Metrics struct {
	// events counts lifecycle events, labeled by:
	//   - name: the machine's configured name
	//   - event: the event type ("started", "suspended", ...)
	//   - fault: the fault kind for faulted/recovered/failed events, "none" otherwise
	events *prometheus.CounterVec

	// duration observes the wall time from Start to finalization, labeled
	// by name and outcome ("completed" or "failed").
	duration *prometheus.HistogramVec

	// inFlight tracks started but not yet finalized machines by name.
	inFlight *prometheus.GaugeVec
}

// NewMetrics registers the metric families with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncsm_machine_events_total",
				Help: "A count of state machine lifecycle events.",
			},
			[]string{"name", "event", "fault"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asyncsm_machine_duration_seconds",
				Help:    "Time from Start until the machine finalized.",
				Buckets: []float64{.0001, .001, .01, .1, .5, 1, 5, 30, 120},
			},
			[]string{"name", "outcome"},
		),
		inFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asyncsm_machines_in_flight",
				Help: "Machines started and not yet finalized.",
			},
			[]string{"name"},
		),
	}
}

// OnMachineEvent implements statemachine.Observer.
func (m *Metrics) OnMachineEvent(e statemachine.Event) {
	m.events.WithLabelValues(e.Name, e.Type.String(), string(e.Kind)).Inc()

	switch e.Type {
	case statemachine.EventStarted:
		m.inFlight.WithLabelValues(e.Name).Inc()
	case statemachine.EventCompleted, statemachine.EventFailed:
		m.inFlight.WithLabelValues(e.Name).Dec()
		m.duration.WithLabelValues(e.Name, e.Type.String()).Observe(e.Elapsed.Seconds())
	}
}
