// Package metrics holds the Prometheus collectors of the relay server.
//
// Collectors are registered on the default registry at package init and
// exposed by the router under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safewatch"

var (
	// Connections is the number of open relay sockets.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "connections",
		Help:      "Open relay connections.",
	})

	// Rooms is the number of codes with at least one member.
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "rooms",
		Help:      "Rooms with at least one member.",
	})

	// Events counts inbound relay frames by type.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "events_total",
		Help:      "Inbound relay frames by type.",
	}, []string{"type"})

	// Dropped counts deliveries skipped because a member's queue was full
	// or already closed.
	Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "dropped_total",
		Help:      "Deliveries dropped on full or closed connection queues.",
	})

	// Alerts counts /api/sos/alert outcomes by method.
	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sos_alerts_total",
		Help:      "SOS alerts handled, by delivery method.",
	}, []string{"method"})
)
