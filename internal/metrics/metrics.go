// Package metrics defines the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubActiveConnections tracks the number of currently open observer connections
	HubActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_connections",
			Help: "Number of currently open observer connections",
		},
	)

	// HubEventsPublishedTotal tracks events accepted by Publish
	HubEventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Total events published through the hub",
		},
	)

	// HubFramesDroppedTotal tracks frames dropped because a connection buffer was full
	HubFramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_frames_dropped_total",
			Help: "Total frames dropped due to full connection buffers",
		},
	)

	// HubConnectionsEvictedTotal tracks connections removed without a client disconnect, by cause
	HubConnectionsEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_connections_evicted_total",
			Help: "Total connections evicted by the hub, by cause (slow/write_failed)",
		},
		[]string{"cause"},
	)

	// HubPublishDuration tracks the time spent fanning one event out
	HubPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_publish_duration_seconds",
			Help:    "Time spent fanning one event out to all connections",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// HubStopTimeoutsTotal tracks forced shutdowns
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Total hub shutdowns that exceeded their deadline",
		},
	)
)

// Session token metrics
var (
	// TokensCreatedTotal tracks attendance tokens issued
	TokensCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_created_total",
			Help: "Total attendance session tokens created",
		},
	)

	// TokensSupersededTotal tracks tokens invalidated by a newer token for the same scope
	TokensSupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_superseded_total",
			Help: "Total tokens invalidated by a newer token for the same scope",
		},
	)

	// TokensEvictedTotal tracks expired tokens removed by the eviction sweep
	TokensEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_evicted_total",
			Help: "Total expired tokens removed by the periodic eviction sweep",
		},
	)
)

// Redemption metrics
var (
	// RedemptionsTotal tracks redemption attempts by outcome
	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Total redemption attempts by outcome (accepted/already_redeemed/expired_or_unknown/error)",
		},
		[]string{"outcome"},
	)
)

// Stream transport metrics
var (
	// StreamConnectionsTotal tracks accepted stream connections by transport
	StreamConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_connections_total",
			Help: "Total accepted stream connections by transport (sse/websocket)",
		},
		[]string{"transport"},
	)
)
