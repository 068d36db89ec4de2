// Package metrics provides Prometheus metrics for the ratings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Recalculation
	recalcRuns          *prometheus.CounterVec
	recalcDuration      prometheus.Histogram
	recalcPlayersRated  prometheus.Gauge
	recalcInProgress    prometheus.Gauge
	recalcSharedResults prometheus.Counter

	// Scheduler
	schedulerRunning  prometheus.Gauge
	schedulerLastRun  prometheus.Gauge
	schedulerNextRun  prometheus.Gauge
	schedulerDueTicks prometheus.Counter

	// Engine
	engineUpdates      prometheus.Counter
	engineInflations   prometheus.Counter
	engineSkippedInput prometheus.Counter

	// Ingestion
	gamesAccepted   prometheus.Counter
	gamesDuplicate  prometheus.Counter
	gamesRejected   *prometheus.CounterVec
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	workerCount     prometheus.Gauge
	workerErrors    prometheus.Counter
	recordLatency   prometheus.Histogram
	totalPlayers    prometheus.Gauge
	repositoryQuery prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ratings",
		subsystem:        "glicko",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.recalcRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalculation_runs_total",
		Help:      "Rating recalculations by trigger (auto, manual) and result (success, failure)",
	}, []string{"trigger", "result"})
	m.recalcDuration = m.histogram("recalculation_duration_seconds",
		"Wall time of a full period recalculation", prometheus.ExponentialBuckets(0.01, 4, 10))
	m.recalcPlayersRated = m.gauge("recalculation_players_rated",
		"Players whose rating changed in the last successful recalculation")
	m.recalcInProgress = m.gauge("recalculation_in_progress",
		"Recalculations currently executing")
	m.recalcSharedResults = m.counter("recalculation_shared_total",
		"Callers that joined an already running recalculation for the same period")

	m.schedulerRunning = m.gauge("scheduler_running", "1 while the monthly scheduler loop is running")
	m.schedulerLastRun = m.gauge("scheduler_last_run_unix", "Completion time of the last automatic run")
	m.schedulerNextRun = m.gauge("scheduler_next_run_unix", "Next scheduled automatic run")
	m.schedulerDueTicks = m.counter("scheduler_due_ticks_total", "Scheduler checks that found a run due")

	m.engineUpdates = m.counter("engine_updates_total", "Period updates applied to a player")
	m.engineInflations = m.counter("engine_inflations_total", "Inactivity RD inflations applied")
	m.engineSkippedInput = m.counter("engine_skipped_samples_total", "Samples ignored for non-positive weight")

	m.gamesAccepted = m.counter("games_accepted_total", "Game results accepted for ingestion")
	m.gamesDuplicate = m.counter("games_duplicate_total", "Game results rejected as duplicates")
	m.gamesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_rejected_total",
		Help:      "Game results rejected by reason",
	}, []string{"reason"})
	m.queueSize = m.gauge("queue_size", "Game results waiting to be recorded")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingestion queue")
	m.workerCount = m.gauge("worker_count", "Ingestion workers running")
	m.workerErrors = m.counter("worker_errors_total", "Ingestion worker failures")
	m.recordLatency = m.histogram("record_latency_milliseconds",
		"Latency of recording one game result", m.histogramBuckets)
	m.totalPlayers = m.gauge("total_players", "Players with a rating")
	m.repositoryQuery = m.histogram("repository_query_latency_milliseconds",
		"Latency of leaderboard queries", m.histogramBuckets)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})
}

// Recalculation

func RecordRecalculation(trigger, result string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.recalcRuns.WithLabelValues(trigger, result).Inc()
	globalManager.recalcDuration.Observe(seconds)
}

func UpdatePlayersRated(n int) {
	globalManager.recalcPlayersRated.Set(float64(n))
}

func IncRecalculationInProgress() { globalManager.recalcInProgress.Inc() }
func DecRecalculationInProgress() { globalManager.recalcInProgress.Dec() }
func RecordRecalculationShared()  { globalManager.recalcSharedResults.Inc() }

// Scheduler

func UpdateSchedulerRunning(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	globalManager.schedulerRunning.Set(v)
}

func UpdateSchedulerLastRun(unix int64) { globalManager.schedulerLastRun.Set(float64(unix)) }
func UpdateSchedulerNextRun(unix int64) { globalManager.schedulerNextRun.Set(float64(unix)) }
func RecordSchedulerDue()               { globalManager.schedulerDueTicks.Inc() }

// Engine

func RecordEngineUpdate()           { globalManager.engineUpdates.Inc() }
func RecordEngineInflation()        { globalManager.engineInflations.Inc() }
func RecordEngineSkippedSamples(n int) {
	if n > 0 {
		globalManager.engineSkippedInput.Add(float64(n))
	}
}

// Ingestion

func RecordGameAccepted()                { globalManager.gamesAccepted.Inc() }
func RecordGameDuplicate()               { globalManager.gamesDuplicate.Inc() }
func RecordGameRejected(reason string)   { globalManager.gamesRejected.WithLabelValues(reason).Inc() }
func UpdateQueueSize(size int)           { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)   { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateWorkerCount(count int)        { globalManager.workerCount.Set(float64(count)) }
func RecordWorkerError()                 { globalManager.workerErrors.Inc() }
func RecordRecordLatency(ms float64)     { globalManager.recordLatency.Observe(ms) }
func UpdateTotalPlayers(count int)       { globalManager.totalPlayers.Set(float64(count)) }
func RecordRepositoryQueryLatency(ms float64) {
	globalManager.repositoryQuery.Observe(ms)
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// Errors

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
