package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the host-level collectors.
type metrics struct {
	activeSessions prometheus.Gauge
	framesTotal    *prometheus.CounterVec
	wsErrors       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statesync",
			Name:      "active_sessions",
			Help:      "Number of connected websocket sessions",
		}),

		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statesync",
			Name:      "frames_total",
			Help:      "Total websocket frames by direction and type",
		}, []string{"direction", "type"}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statesync",
			Name:      "websocket_errors_total",
			Help:      "Total websocket errors by type",
		}, []string{"type"}),
	}
}
