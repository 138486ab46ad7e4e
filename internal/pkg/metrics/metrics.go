// Package metrics provides Prometheus metrics for the topology service (RED + view engine + WebSocket).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kubilitics_topology"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ViewEventsTotal counts view events by kind (mount, filter, select, deselect).
	ViewEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_events_total",
			Help:      "Total number of view events by kind.",
		},
		[]string{"event"},
	)

	// ViewEventDurationSeconds is the time to project a view model after an event.
	ViewEventDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_event_duration_seconds",
			Help:      "Time to recompute a view model after an event, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2.5, 10), // 0.1ms to ~0.9s
		},
		[]string{"event"},
	)

	// ViewsActive is the number of mounted views.
	ViewsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "views_active",
			Help:      "Number of mounted topology views.",
		},
	)

	// VisibleNodes observes the visible subgraph size after filtering.
	VisibleNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "visible_nodes",
			Help:      "Number of visible nodes per projected view model.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to 16384
		},
	)

	// RelatedNodes observes the dependency closure size of a selection.
	RelatedNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "related_nodes",
			Help:      "Number of nodes in the dependency closure of a selection.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// DanglingEdgesTotal counts edges dropped at load because an endpoint was missing.
	DanglingEdgesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_edges_total",
			Help:      "Total number of edges dropped for referencing missing nodes.",
		},
	)

	// LayoutBuildDurationSeconds is canonical graph generation latency by layout provider.
	LayoutBuildDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_build_duration_seconds",
			Help:      "Canonical graph generation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"layout"},
	)

	// WebSocketConnectionsActive is current number of WebSocket clients (capacity planning).
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	// TopologyCacheHitsTotal counts cache hits.
	TopologyCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of canonical graph cache hits.",
		},
	)

	// TopologyCacheMissesTotal counts cache misses.
	TopologyCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of canonical graph cache misses.",
		},
	)
)
