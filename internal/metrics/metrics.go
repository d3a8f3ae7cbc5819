package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p2000_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	LinesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2000_lines_read_total",
			Help: "Total decoder lines read",
		},
	)

	FramesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_frames_parsed_total",
			Help: "Total frames parsed",
		},
		[]string{"format"}, // flex, pocsag_alpha, pocsag_numeric, pocsag_empty
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_frames_dropped_total",
			Help: "Total lines or recipients dropped",
		},
		[]string{"reason"}, // unparsed, ignored, filtered, panic
	)

	RecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2000_records_created_total",
			Help: "Total message records created",
		},
	)

	RecordsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2000_records_merged_total",
			Help: "Total recipients merged into an existing record",
		},
	)

	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p2000_store_records",
			Help: "Records currently held in memory",
		},
	)

	// Broadcast metrics
	RecordsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_records_broadcast_total",
			Help: "Total records delivered per sink",
		},
		[]string{"sink"},
	)

	BroadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_broadcast_failures_total",
			Help: "Total failed deliveries per sink",
		},
		[]string{"sink"},
	)

	BroadcastAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2000_broadcast_abandoned_total",
			Help: "Records given up on per sink after other sinks accepted them",
		},
		[]string{"sink"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p2000_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "p2000_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	ArchiveLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p2000_archive_latency_seconds",
			Help:    "Archive insert latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"backend"}, // sqlite, postgres
	)
)
