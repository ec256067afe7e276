package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spark",
		Subsystem: "relay",
		Name:      "ws_connections",
		Help:      "Currently open websocket sessions.",
	})

	messagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spark",
		Subsystem: "relay",
		Name:      "messages_persisted_total",
		Help:      "Messages accepted and written to the history store.",
	})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spark",
		Subsystem: "relay",
		Name:      "persist_failures_total",
		Help:      "History store append failures surfaced to senders.",
	})

	relayDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spark",
		Subsystem: "relay",
		Name:      "events_dispatched_total",
		Help:      "Relay events delivered to peer send queues.",
	})

	relayDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spark",
		Subsystem: "relay",
		Name:      "events_dropped_total",
		Help:      "Relay events dropped due to backpressure or shutdown.",
	})
)
