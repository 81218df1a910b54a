// Package metrics registers the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "events_published_total",
		Help:      "Broadcast events published, by event type.",
	}, []string{"type"})

	MirrorPushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "mirror_pushes_total",
		Help:      "Remote mirror push attempts, by table and result.",
	}, []string{"table", "result"})

	MirrorDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "mirror_dropped_total",
		Help:      "Mirror pushes dropped because the queue was full.",
	})

	MirrorPulled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "mirror_pulled_total",
		Help:      "Records seen by the startup pull, by table and outcome.",
	}, []string{"table", "outcome"})

	MessageOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "message_ops_total",
		Help:      "Room message state transitions, by operation.",
	}, []string{"op"})

	DirectOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "direct_message_ops_total",
		Help:      "Direct message state transitions, by operation.",
	}, []string{"op"})

	DroppedDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "dropped_deliveries_total",
		Help:      "Events not delivered because a client send buffer was full.",
	})

	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomchat",
		Name:      "connected_sessions",
		Help:      "Open websocket sessions.",
	})

	PresentRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomchat",
		Name:      "present_rooms",
		Help:      "Rooms with at least one connected member.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsPublished,
		MirrorPushes,
		MirrorDropped,
		MirrorPulled,
		MessageOps,
		DirectOps,
		DroppedDeliveries,
		ConnectedSessions,
		PresentRooms,
	)
}
