package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parley"

// Metrics holds the Prometheus instruments for the chat session server.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	JoinsTotal        *prometheus.CounterVec
	MessagesTotal     prometheus.Counter
	BansTotal         prometheus.Counter
	FramesDropped     prometheus.Counter
}

// New registers the server metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently open WebSocket connections.",
		}),
		JoinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Successful joins by role.",
		}, []string{"role"}),
		MessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages broadcast to the session.",
		}),
		BansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bans_total",
			Help:      "Identities moved into the ban set.",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped by rate limiting or parse failures.",
		}),
	}
}
