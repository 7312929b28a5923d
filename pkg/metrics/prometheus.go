// Package metrics provides Prometheus metrics for the devmatch pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the devmatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	recordsIngested  *prometheus.CounterVec
	recordsDuplicate *prometheus.CounterVec
	recordsRejected  *prometheus.CounterVec

	// Classification
	classifications    *prometheus.CounterVec
	classifierCalls    prometheus.Counter
	classifierErrors   prometheus.Counter
	classifierLatency  prometheus.Histogram
	contributionsScore prometheus.Counter
	reviewsScored      prometheus.Counter
	profilesAggregated prometheus.Counter
	aggregationErrors  prometheus.Counter
	totalDevelopers    prometheus.Gauge

	// Search
	searches       prometheus.Counter
	searchResults  prometheus.Histogram
	searchLatency  prometheus.Histogram
	searchFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. It must run before any metric is recorded.
func Configure(opts ...Option) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrConfigure, r)
		}
	}()
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry, globalManager = registry, m
	return nil
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "devmatch",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// NewMetricsManager is an alias of NewManager.
func NewMetricsManager(opts ...Option) *Manager { return NewManager(opts...) }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
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
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.recordsIngested = auto.NewCounterVec(m.counterOpts("records_ingested_total",
		"Total number of records accepted for processing"), []string{"kind"})
	m.recordsDuplicate = auto.NewCounterVec(m.counterOpts("records_duplicate_total",
		"Total number of duplicate records skipped at ingestion"), []string{"kind"})
	m.recordsRejected = auto.NewCounterVec(m.counterOpts("records_rejected_total",
		"Total number of records rejected at ingestion"), []string{"kind", "reason"})

	m.classifications = auto.NewCounterVec(m.counterOpts("classifications_total",
		"Classification outcomes by source"), []string{"source"})
	m.classifierCalls = auto.NewCounter(m.counterOpts("classifier_calls_total",
		"Total number of open-vocabulary classifier calls"))
	m.classifierErrors = auto.NewCounter(m.counterOpts("classifier_errors_total",
		"Total number of classifier calls that failed or timed out"))
	m.classifierLatency = auto.NewHistogram(m.histogramOpts("classifier_latency_milliseconds",
		"Classifier call latency in milliseconds",
		[]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}))
	m.contributionsScore = auto.NewCounter(m.counterOpts("contributions_scored_total",
		"Total number of contributions scored"))
	m.reviewsScored = auto.NewCounter(m.counterOpts("reviews_scored_total",
		"Total number of reviews scored"))
	m.profilesAggregated = auto.NewCounter(m.counterOpts("profiles_aggregated_total",
		"Total number of developer profile aggregations"))
	m.aggregationErrors = auto.NewCounter(m.counterOpts("aggregation_errors_total",
		"Total number of failed profile aggregations"))
	m.totalDevelopers = auto.NewGauge(m.gaugeOpts("developers_total",
		"Number of developers with an aggregated profile"))

	m.searches = auto.NewCounter(m.counterOpts("searches_total",
		"Total number of match queries"))
	m.searchResults = auto.NewHistogram(m.histogramOpts("search_results",
		"Number of results returned per match query",
		[]float64{0, 1, 2, 5, 10, 20, 50, 100}))
	m.searchLatency = auto.NewHistogram(m.histogramOpts("search_latency_milliseconds",
		"Match query latency in milliseconds", nil))
	m.searchFailures = auto.NewCounter(m.counterOpts("search_failures_total",
		"Total number of match queries that failed"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current size of the job queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Queue utilization ratio (current size / capacity)"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total",
		"Total number of jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total",
		"Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Total number of enqueue errors"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Current number of workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Per-job processing latency in milliseconds", nil))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Total number of failed jobs"))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds",
		"Store operation latency in milliseconds", nil), []string{"op"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
}

// Ingestion.

// RecordIngested increments the accepted record counter for kind.
func RecordIngested(kind string) { globalManager.recordsIngested.WithLabelValues(kind).Inc() }

// RecordDuplicate increments the duplicate record counter for kind.
func RecordDuplicate(kind string) { globalManager.recordsDuplicate.WithLabelValues(kind).Inc() }

// RecordRejected increments the rejected record counter.
func RecordRejected(kind, reason string) {
	globalManager.recordsRejected.WithLabelValues(kind, reason).Inc()
}

// Classification and scoring.

// RecordClassification counts a classification outcome (curated, ai, empty, error).
func RecordClassification(source string) {
	globalManager.classifications.WithLabelValues(source).Inc()
}

// RecordClassifierCall records one classifier call and its latency.
func RecordClassifierCall(latencyMs float64, failed bool) {
	globalManager.classifierCalls.Inc()
	globalManager.classifierLatency.Observe(latencyMs)
	if failed {
		globalManager.classifierErrors.Inc()
	}
}

// RecordContributionScored increments the scored contribution counter.
func RecordContributionScored() { globalManager.contributionsScore.Inc() }

// RecordReviewScored increments the scored review counter.
func RecordReviewScored() { globalManager.reviewsScored.Inc() }

// RecordProfileAggregated increments the profile aggregation counter.
func RecordProfileAggregated() { globalManager.profilesAggregated.Inc() }

// RecordAggregationError increments the aggregation error counter.
func RecordAggregationError() { globalManager.aggregationErrors.Inc() }

// UpdateTotalDevelopers sets the number of profiled developers.
func UpdateTotalDevelopers(count int) { globalManager.totalDevelopers.Set(float64(count)) }

// Search.

// RecordSearch records a completed match query.
func RecordSearch(results int, latencyMs float64) {
	globalManager.searches.Inc()
	globalManager.searchResults.Observe(float64(results))
	globalManager.searchLatency.Observe(latencyMs)
}

// RecordSearchFailure increments the failed search counter.
func RecordSearchFailure() { globalManager.searchFailures.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Store.

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Enabled reports whether the global manager collects metrics.
func Enabled() bool { return globalManager.enabled }

// RefreshInterval is how often gauge updaters should run.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }
