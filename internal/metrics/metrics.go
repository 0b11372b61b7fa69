// Package metrics holds the Prometheus collectors for session activity.
// Request-level HTTP metrics come from go-gin-prometheus in the router.
package metrics

import (


	"github.com/prometheus/client_golang/prometheus"          // Metric types
	"github.com/prometheus/client_golang/prometheus/promauto" // Auto-registered collectors
)

var (
	// BroadcastsTotal counts events published to rooms, by event name.
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "broadcasts_total",
		Help:      "Events published to realtime rooms.",
	}, []string{"event"})

	// DroppedClientsTotal counts connections dropped because their send buffer was full.
	DroppedClientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "dropped_clients_total",
		Help:      "Socket clients disconnected for falling behind.",
	})

	// ConnectedClients is the number of open socket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tabletop",
		Name:      "connected_clients",
		Help:      "Open realtime socket connections.",
	})

	// DiceRollsTotal counts successful dice rolls.
	DiceRollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "dice_rolls_total",
		Help:      "Dice rolls announced to the campaign room.",
	})

	// GoldMovedTotal counts gold pieces moved between purses, by ledger type.
	GoldMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "gold_moved_total",
		Help:      "Gold pieces granted, spent or transferred.",
	}, []string{"type"})
)
