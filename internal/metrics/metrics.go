// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome/status label values for metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Call lifecycle metrics
	CallsStartedTotal   *prometheus.CounterVec
	CallsCompletedTotal *prometheus.CounterVec
	CallDuration        prometheus.Histogram
	SessionsActive      prometheus.Gauge
	SessionsSwept       prometheus.Counter

	// Conversation metrics
	TurnsTotal            *prometheus.CounterVec
	StageTransitionsTotal *prometheus.CounterVec
	OffTopicTotal         *prometheus.CounterVec
	TerminationsTotal     *prometheus.CounterVec
	RetryPromptsTotal     prometheus.Counter
	FallbackResponses     prometheus.Counter
	MeetingsScheduled     prometheus.Counter

	// Outcome analysis metrics
	ReportJobsInQueue prometheus.Gauge
	ReportJobsTotal   *prometheus.CounterVec
	SalesScore        prometheus.Histogram
	PatternsLearned   *prometheus.CounterVec

	// External service metrics
	LLMCallsTotal       *prometheus.CounterVec
	LLMCallDuration     prometheus.Histogram
	SynthesisTotal      *prometheus.CounterVec
	SynthesisDuration   prometheus.Histogram
	SynthesisCacheHits  prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips prometheus.Counter

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBQueryDuration    *prometheus.HistogramVec
	DBQueryErrors      *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Windowed error rates, complementing the monotonic Prometheus counters
	errorRates *ErrorRateTracker

	// Registry used for this metrics instance (nil means default registry)
	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		errorRates: NewErrorRateTracker(DefaultErrorRateConfig()),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callagent_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callagent_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Call lifecycle metrics
		CallsStartedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_calls_started_total",
				Help: "Total number of calls started by direction",
			},
			[]string{"direction"}, // "inbound", "outbound"
		),
		CallsCompletedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_calls_completed_total",
				Help: "Total number of calls completed by outcome",
			},
			[]string{"outcome"},
		),
		CallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callagent_call_duration_seconds",
				Help:    "Duration of completed calls",
				Buckets: []float64{15, 30, 60, 90, 120, 180, 240, 270, 300},
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callagent_sessions_active",
				Help: "Number of active call sessions",
			},
		),
		SessionsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_sessions_swept_total",
				Help: "Total number of stale sessions removed by the sweeper",
			},
		),

		// Conversation metrics
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_turns_total",
				Help: "Total number of conversation turns processed by stage",
			},
			[]string{"stage"},
		),
		StageTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_stage_transitions_total",
				Help: "Total number of funnel stage transitions",
			},
			[]string{"from", "to"},
		),
		OffTopicTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_off_topic_total",
				Help: "Total number of off-topic turns by drift category",
			},
			[]string{"category"},
		),
		TerminationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_terminations_total",
				Help: "Total number of call terminations by reason",
			},
			[]string{"reason"},
		),
		RetryPromptsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_retry_prompts_total",
				Help: "Total number of repeat-please prompts for unusable input",
			},
		),
		FallbackResponses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_fallback_responses_total",
				Help: "Total number of turns answered by a hard-coded fallback",
			},
		),
		MeetingsScheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_meetings_scheduled_total",
				Help: "Total number of calls where a meeting was agreed",
			},
		),

		// Outcome analysis metrics
		ReportJobsInQueue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callagent_report_jobs_in_queue",
				Help: "Number of outcome analysis jobs currently queued",
			},
		),
		ReportJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_report_jobs_total",
				Help: "Total number of outcome analysis jobs processed by status",
			},
			[]string{"status"}, // "completed", "failed", "retried"
		),
		SalesScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callagent_sales_score",
				Help:    "Distribution of post-call sales scores (0-100)",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		PatternsLearned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_patterns_learned_total",
				Help: "Total number of learned patterns stored by kind",
			},
			[]string{"kind"}, // "success", "failure"
		),

		// External service metrics
		LLMCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_llm_calls_total",
				Help: "Total number of LLM API calls by status",
			},
			[]string{"status"}, // "success", "failure", "circuit_open"
		),
		LLMCallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callagent_llm_call_duration_seconds",
				Help:    "Duration of LLM API calls",
				Buckets: []float64{.25, .5, 1, 2, 5, 10, 15},
			},
		),
		SynthesisTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_synthesis_total",
				Help: "Total number of speech synthesis requests by status",
			},
			[]string{"status"},
		),
		SynthesisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callagent_synthesis_duration_seconds",
				Help:    "Duration of speech synthesis requests",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10},
			},
		),
		SynthesisCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_synthesis_cache_hits_total",
				Help: "Total number of synthesis requests served from the audio cache",
			},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callagent_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callagent_circuit_breaker_trips_total",
				Help: "Total number of times a circuit breaker has tripped",
			},
		),

		// Database metrics
		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callagent_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callagent_db_connections_in_use",
				Help: "Number of database connections currently in use",
			},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callagent_db_query_duration_seconds",
				Help:    "Duration of database queries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"}, // "select", "insert", "update", "delete"
		),
		DBQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_db_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callagent_rate_limit_hits_total",
				Help: "Total number of rate limit hits by limiter",
			},
			[]string{"limiter"}, // "general", "webhook", "dialer"
		),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.errorRates.RecordRequest()
		if wrapped.statusCode >= http.StatusInternalServerError {
			m.errorRates.RecordError(ErrorCategoryHTTP)
		}

		duration := time.Since(start).Seconds()

		// Normalize path for metrics (avoid high cardinality)
		path := normalizePath(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		m.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath normalizes URL paths to prevent high cardinality labels.
func normalizePath(path string) string {
	switch path {
	case "/", "/inbound", "/outbound", "/process", "/call-status", "/health", "/ready", "/live", "/metrics":
		return path
	}

	if len(path) > 7 && path[:7] == "/calls/" {
		return "/calls/:id"
	}
	if len(path) > 7 && path[:7] == "/audio/" {
		return "/audio/:hash"
	}

	return path
}

// Helper methods for recording specific events

// RecordCallStarted records a call starting in the given direction.
func (m *Metrics) RecordCallStarted(direction string) {
	m.CallsStartedTotal.WithLabelValues(direction).Inc()
}

// RecordCallCompleted records a finished call with its outcome and duration.
func (m *Metrics) RecordCallCompleted(outcome string, duration time.Duration) {
	m.CallsCompletedTotal.WithLabelValues(outcome).Inc()
	m.CallDuration.Observe(duration.Seconds())
}

// RecordTurn records one processed conversation turn at the given stage.
func (m *Metrics) RecordTurn(stage string) {
	m.TurnsTotal.WithLabelValues(stage).Inc()
}

// RecordStageTransition records a funnel move.
func (m *Metrics) RecordStageTransition(from, to string) {
	m.StageTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordOffTopic records an off-topic turn by drift category.
func (m *Metrics) RecordOffTopic(category string) {
	m.OffTopicTotal.WithLabelValues(category).Inc()
}

// RecordTermination records a call termination reason.
func (m *Metrics) RecordTermination(reason string) {
	m.TerminationsTotal.WithLabelValues(reason).Inc()
}

// RecordRetryPrompt records a repeat-please prompt.
func (m *Metrics) RecordRetryPrompt() {
	m.RetryPromptsTotal.Inc()
}

// RecordFallbackResponse records a turn answered by a hard-coded fallback.
func (m *Metrics) RecordFallbackResponse() {
	m.FallbackResponses.Inc()
}

// RecordMeetingScheduled records an agreed meeting.
func (m *Metrics) RecordMeetingScheduled() {
	m.MeetingsScheduled.Inc()
}

// RecordReportJob records an outcome analysis job result.
func (m *Metrics) RecordReportJob(status string) {
	m.ReportJobsTotal.WithLabelValues(status).Inc()
}

// RecordSalesScore records a post-call score.
func (m *Metrics) RecordSalesScore(score int) {
	m.SalesScore.Observe(float64(score))
}

// RecordPatternLearned records a stored learned pattern.
func (m *Metrics) RecordPatternLearned(kind string) {
	m.PatternsLearned.WithLabelValues(kind).Inc()
}

// RecordLLMCall records an LLM API call.
func (m *Metrics) RecordLLMCall(success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.LLMCallsTotal.WithLabelValues(status).Inc()
	m.LLMCallDuration.Observe(duration.Seconds())
	if !success {
		m.errorRates.RecordError(ErrorCategoryLLM)
	}
}

// RecordLLMCircuitOpen records an LLM call rejected by the circuit breaker.
func (m *Metrics) RecordLLMCircuitOpen() {
	m.LLMCallsTotal.WithLabelValues("circuit_open").Inc()
}

// RecordSynthesis records a speech synthesis request.
func (m *Metrics) RecordSynthesis(success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.SynthesisTotal.WithLabelValues(status).Inc()
	m.SynthesisDuration.Observe(duration.Seconds())
	if !success {
		m.errorRates.RecordError(ErrorCategorySynthesis)
	}
}

// RecordSynthesisCacheHit records a synthesis served from the audio cache.
func (m *Metrics) RecordSynthesisCacheHit() {
	m.SynthesisCacheHits.Inc()
}

// SetCircuitBreakerState sets the state gauge for a named service.
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a breaker trip.
func (m *Metrics) RecordCircuitBreakerTrip() {
	m.CircuitBreakerTrips.Inc()
}

// RecordDBQuery records the duration of a database query.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation).Inc()
		m.errorRates.RecordError(ErrorCategoryDatabase)
	}
}

// UpdateDBStats updates connection pool gauges.
func (m *Metrics) UpdateDBStats(open, inUse int) {
	m.DBConnectionsOpen.Set(float64(open))
	m.DBConnectionsInUse.Set(float64(inUse))
}

// RecordRateLimitHit records a rate limit hit by limiter name.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
}

// RecordErrorRate records an error against the windowed rate tracker.
func (m *Metrics) RecordErrorRate(category ErrorCategory) {
	m.errorRates.RecordError(category)
}

// ErrorRates returns the windowed error rate tracker.
func (m *Metrics) ErrorRates() *ErrorRateTracker {
	return m.errorRates
}
