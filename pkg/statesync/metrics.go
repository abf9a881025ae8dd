package statesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every Synchronizer
// created with it. A nil *Metrics records nothing.
//
// Metrics collected:
//   - statesync_hydrations_total: hydration reads by source (store, url) and outcome
//   - statesync_publishes_total: outbound writes by target (store, url) and outcome
//   - statesync_skipped_fields_total: fields left at their default by source and reason
type Metrics struct {
	hydrations *prometheus.CounterVec
	publishes  *prometheus.CounterVec
	skipped    *prometheus.CounterVec
}

// NewMetrics registers the synchronizer collectors with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		hydrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statesync",
			Name:      "hydrations_total",
			Help:      "Total number of hydration reads by source and outcome",
		}, []string{"source", "outcome"}),

		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statesync",
			Name:      "publishes_total",
			Help:      "Total number of state publications by target and outcome",
		}, []string{"target", "outcome"}),

		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statesync",
			Name:      "skipped_fields_total",
			Help:      "Total number of fields skipped during hydration or update",
		}, []string{"source", "reason"}),
	}
}

// Label values.
const (
	sourceStore  = "store"
	sourceURL    = "url"
	sourceUpdate = "update"

	outcomeOK          = "ok"
	outcomeEmpty       = "empty"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"

	reasonUnknown = "unknown"
	reasonShape   = "shape"
)

func (m *Metrics) hydration(source, outcome string) {
	if m == nil {
		return
	}
	m.hydrations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) publish(target, outcome string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) skip(source, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(source, reason).Inc()
}
