package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatcher metrics
	DispatcherTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_dispatcher_tasks_total",
			Help: "Total number of dispatcher tasks executed by outcome",
		},
		[]string{"outcome"},
	)

	DispatcherTasksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_dispatcher_tasks_dropped_total",
			Help: "Total number of tasks rejected or discarded by the dispatcher",
		},
		[]string{"reason"},
	)

	DispatcherQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glean_dispatcher_queue_length",
			Help: "Number of commands waiting in the dispatcher queue",
		},
	)

	// Events metrics
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_events_recorded_total",
			Help: "Total number of events appended to ping event stores",
		},
		[]string{"ping"},
	)

	EventRestartClamps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glean_events_restart_clamps_total",
			Help: "Total number of restart offsets clamped to keep event timestamps monotonic",
		},
	)

	// Ping metrics
	PingsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_pings_submitted_total",
			Help: "Total number of pings collected and stored for upload",
		},
		[]string{"ping"},
	)

	PingsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glean_pings_pending",
			Help: "Number of pings waiting in the upload queue",
		},
	)

	// Upload metrics
	UploadAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_upload_attempts_total",
			Help: "Total number of ping upload attempts by result",
		},
		[]string{"result"},
	)

	UploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glean_upload_duration_seconds",
			Help:    "Ping upload request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UploadBodyBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glean_upload_body_bytes",
			Help:    "Size of prepared ping request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	UploadThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glean_upload_throttled_total",
			Help: "Total number of times the rate limiter throttled uploads",
		},
	)

	// Collector metrics
	CollectorPingsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glean_collector_pings_received_total",
			Help: "Total number of pings received by the local collector by transport",
		},
		[]string{"transport", "ping"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DispatcherTasksTotal)
	prometheus.MustRegister(DispatcherTasksDropped)
	prometheus.MustRegister(DispatcherQueueLength)
	prometheus.MustRegister(EventsRecorded)
	prometheus.MustRegister(EventRestartClamps)
	prometheus.MustRegister(PingsSubmitted)
	prometheus.MustRegister(PingsPending)
	prometheus.MustRegister(UploadAttemptsTotal)
	prometheus.MustRegister(UploadDuration)
	prometheus.MustRegister(UploadBodyBytes)
	prometheus.MustRegister(UploadThrottled)
	prometheus.MustRegister(CollectorPingsReceived)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
