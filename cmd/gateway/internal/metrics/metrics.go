package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcast Metrics
var (
	// TicksTotal counts broadcast ticks by result (broadcast, skipped)
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_ticks_total",
			Help: "Broadcast ticks by result",
		},
		[]string{"result"},
	)

	// TickDuration tracks how long one full tick takes
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_tick_duration_seconds",
			Help:    "Duration of a broadcast tick in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// SymbolsPriced counts price computations (one per demanded symbol per tick)
	SymbolsPriced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_symbols_priced_total",
			Help: "Total symbol prices computed by the broadcaster",
		},
	)

	// DeliveriesTotal counts price_update deliveries by status (ok, failed)
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_deliveries_total",
			Help: "price_update deliveries by status",
		},
		[]string{"status"},
	)

	// PriceStatesEvicted counts per-symbol price states dropped after going idle
	PriceStatesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_states_evicted_total",
			Help: "Per-symbol price states evicted after leaving demand",
		},
	)

	// SinkErrorsTotal counts failed sink writes by sink name
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_errors_total",
			Help: "Failed price sink writes by sink",
		},
		[]string{"sink"},
	)
)

// Connection Metrics
var (
	// ConnectedClients tracks live WebSocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connected_clients",
			Help: "Number of connected WebSocket clients",
		},
	)

	// CommandsTotal counts inbound client commands by action and status
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Inbound client commands by action and status",
		},
		[]string{"action", "status"},
	)
)
