// Package metrics provides Prometheus metrics for the innerscore harvester.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scoreBuckets spans the score range: near zero, the boosted first year,
// and the logarithmic tail above 3000.
var scoreBuckets = []float64{10, 50, 100, 250, 500, 1000, 1500, 2000, 3000, 3500, 4000}

// Manager manages all Prometheus metrics for the harvester.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Harvest pass metrics
	harvestRuns        *prometheus.CounterVec
	harvestDuration    prometheus.Histogram
	harvestLastUnix    prometheus.Gauge
	collectionSize     prometheus.Gauge
	reposListed        prometheus.Counter
	reposHarvested     prometheus.Counter
	reposSkipped       *prometheus.CounterVec
	reposFailed        prometheus.Counter
	scoreDistribution  prometheus.Histogram
	sinkWrites         *prometheus.CounterVec
	manifestLookups    *prometheus.CounterVec
	manifestCacheLooks *prometheus.CounterVec

	// Hosting API client metrics
	hostingRequests *prometheus.CounterVec
	hostingLatency  *prometheus.HistogramVec
	hostingRetries  prometheus.Counter
	breakerRejects  *prometheus.CounterVec

	// Queue metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of the exposed metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global metrics on a fresh registry with opts
// applied. Call it once at startup, before anything records or serves
// GetRegistry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "innerscore",
		subsystem:        "harvester",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// Disabled metrics still record, but nothing exposes them.
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.harvestRuns = auto.NewCounterVec(m.counterOpts("runs_total", "Harvest passes by result"), []string{"result"})
	m.harvestDuration = auto.NewHistogram(m.histogramOpts("run_duration_milliseconds", "Duration of a harvest pass in milliseconds",
		[]float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000}))
	m.harvestLastUnix = auto.NewGauge(m.gaugeOpts("last_run_unix", "Unix timestamp of the last completed harvest pass"))
	m.collectionSize = auto.NewGauge(m.gaugeOpts("collection_size", "Repositories in the last published collection"))
	m.reposListed = auto.NewCounter(m.counterOpts("repositories_listed_total", "Repositories returned by the hosting API listing"))
	m.reposHarvested = auto.NewCounter(m.counterOpts("repositories_harvested_total", "Repositories scored and published"))
	m.reposSkipped = auto.NewCounterVec(m.counterOpts("repositories_skipped_total", "Repositories left out of the collection by reason"), []string{"reason"})
	m.reposFailed = auto.NewCounter(m.counterOpts("repositories_failed_total", "Repositories that could not be harvested"))
	m.scoreDistribution = auto.NewHistogram(m.histogramOpts("score", "Distribution of published engagement scores", scoreBuckets))
	m.sinkWrites = auto.NewCounterVec(m.counterOpts("sink_writes_total", "Collection writes by sink and result"), []string{"sink", "result"})
	m.manifestLookups = auto.NewCounterVec(m.counterOpts("manifest_lookups_total", "innersource.json lookups by outcome"), []string{"outcome"})
	m.manifestCacheLooks = auto.NewCounterVec(m.counterOpts("manifest_cache_total", "Manifest cache lookups by result"), []string{"result"})

	m.hostingRequests = auto.NewCounterVec(m.counterOpts("hosting_requests_total", "Hosting API requests by operation and status"), []string{"operation", "status"})
	m.hostingLatency = auto.NewHistogramVec(m.histogramOpts("hosting_request_duration_milliseconds", "Hosting API request latency in milliseconds", m.histogramBuckets), []string{"operation"})
	m.hostingRetries = auto.NewCounter(m.counterOpts("hosting_retries_total", "Hosting API request retries"))
	m.breakerRejects = auto.NewCounterVec(m.counterOpts("hosting_breaker_rejections_total", "Requests rejected by an open circuit breaker"), []string{"host"})

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum job queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the job queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of rejected enqueues"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers processing a pass"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Per-repository processing latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Harvest pass metrics.

// RecordHarvestRun records a finished pass with result "success" or "failure".
func RecordHarvestRun(result string, durationMs float64) {
	globalManager.harvestRuns.WithLabelValues(result).Inc()
	globalManager.harvestDuration.Observe(durationMs)
	if result == "success" {
		globalManager.harvestLastUnix.Set(float64(time.Now().Unix()))
	}
}

// UpdateCollectionSize sets the size of the last published collection.
func UpdateCollectionSize(n int) {
	globalManager.collectionSize.Set(float64(n))
}

// RecordRepositoriesListed adds n listed repositories.
func RecordRepositoriesListed(n int) {
	globalManager.reposListed.Add(float64(n))
}

// RecordRepositoryHarvested counts a published repository and observes its score.
func RecordRepositoryHarvested(score int) {
	globalManager.reposHarvested.Inc()
	globalManager.scoreDistribution.Observe(float64(score))
}

// RecordRepositorySkipped counts a repository left out for reason.
func RecordRepositorySkipped(reason string) {
	globalManager.reposSkipped.WithLabelValues(reason).Inc()
}

// RecordRepositoryFailed counts a repository that failed to harvest.
func RecordRepositoryFailed() {
	globalManager.reposFailed.Inc()
}

// RecordSinkWrite records a collection write to sink.
func RecordSinkWrite(sink, result string) {
	globalManager.sinkWrites.WithLabelValues(sink, result).Inc()
}

// RecordManifestLookup records an innersource.json lookup: found, missing, invalid, error.
func RecordManifestLookup(outcome string) {
	globalManager.manifestLookups.WithLabelValues(outcome).Inc()
}

// RecordManifestCache records a manifest cache hit or miss.
func RecordManifestCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.manifestCacheLooks.WithLabelValues(result).Inc()
}

// Hosting API metrics.

// RecordHostingRequest records one hosting API request.
func RecordHostingRequest(operation, status string, latencyMs float64) {
	globalManager.hostingRequests.WithLabelValues(operation, status).Inc()
	globalManager.hostingLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHostingRetry counts a retried hosting API request.
func RecordHostingRetry() {
	globalManager.hostingRetries.Inc()
}

// RecordBreakerRejection counts a request refused by an open breaker.
func RecordBreakerRejection(host string) {
	globalManager.breakerRejects.WithLabelValues(host).Inc()
}

// Queue metrics.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
