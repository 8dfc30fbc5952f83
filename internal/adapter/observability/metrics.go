// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// RedditRequestsTotal counts Reddit API calls by endpoint and outcome.
	RedditRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reddit_requests_total",
			Help: "Total number of Reddit API requests",
		},
		[]string{"endpoint", "outcome"},
	)
	// RedditRateLimitWaitSeconds records time spent waiting on the Reddit rate limiter.
	RedditRateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reddit_rate_limit_wait_seconds",
			Help:    "Time spent blocked on the Reddit rate limiter",
			Buckets: []float64{0, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// SentimentRequestsTotal counts sentiment scoring calls by scope and status.
	SentimentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_requests_total",
			Help: "Total number of sentiment scoring requests",
		},
		[]string{"scope", "status"},
	)
	// SentimentLatencyMS records sentiment scoring latency in milliseconds by scope.
	SentimentLatencyMS = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentiment_latency_ms",
			Help:    "Sentiment scoring latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"scope"},
	)
	// SentimentFallbackTotal counts times the confidence-gated cloud fallback fired.
	SentimentFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_fallback_total",
			Help: "Total number of times the cloud sentiment fallback was invoked",
		},
		[]string{"reason"},
	)

	// EntityMentionsTotal counts mentions linked by match strategy.
	EntityMentionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_mentions_total",
			Help: "Total number of cast member mentions linked",
		},
		[]string{"strategy"},
	)

	// JobsEnqueuedTotal counts jobs enqueued by task name and queue.
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"task", "queue"},
	)
	// JobsProcessing is a gauge of the number of currently processing jobs by task.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"task"},
	)
	// JobsCompletedTotal counts jobs completed by task.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"task"},
	)
	// JobsFailedTotal counts jobs failed by task.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"task"},
	)

	// AggregateComputeSeconds records aggregate recompute duration.
	AggregateComputeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_compute_seconds",
			Help:    "Time spent recomputing aggregates for a thread",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
	// NetSentimentHistogram tracks the distribution of computed net_sentiment values.
	NetSentimentHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_net_sentiment",
			Help:    "Distribution of net_sentiment ([-1,1])",
			Buckets: []float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1},
		},
	)

	// AlertsTriggeredTotal counts alert rule evaluations that fired.
	AlertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Total number of alert events triggered",
		},
		[]string{"rule_type"},
	)
	// AlertsDeliveredTotal counts successful alert deliveries by channel.
	AlertsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_delivered_total",
			Help: "Total number of alert deliveries by channel",
		},
		[]string{"channel"},
	)

	// CircuitBreakerStatus tracks circuit breaker state.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(RedditRequestsTotal)
	prometheus.MustRegister(RedditRateLimitWaitSeconds)
	prometheus.MustRegister(SentimentRequestsTotal)
	prometheus.MustRegister(SentimentLatencyMS)
	prometheus.MustRegister(SentimentFallbackTotal)
	prometheus.MustRegister(EntityMentionsTotal)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(AggregateComputeSeconds)
	prometheus.MustRegister(NetSentimentHistogram)
	prometheus.MustRegister(AlertsTriggeredTotal)
	prometheus.MustRegister(AlertsDeliveredTotal)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueJob increments the enqueued jobs counter for the given task/queue.
func EnqueueJob(task, queue string) {
	JobsEnqueuedTotal.WithLabelValues(task, queue).Inc()
}

// StartProcessingJob increments the processing gauge for the given task.
func StartProcessingJob(task string) {
	JobsProcessing.WithLabelValues(task).Inc()
}

// CompleteJob marks a job complete by decrementing processing gauge and incrementing completed counter.
func CompleteJob(task string) {
	JobsProcessing.WithLabelValues(task).Dec()
	JobsCompletedTotal.WithLabelValues(task).Inc()
}

// FailJob marks a job failed by decrementing processing gauge and incrementing failed counter.
func FailJob(task string) {
	JobsProcessing.WithLabelValues(task).Dec()
	JobsFailedTotal.WithLabelValues(task).Inc()
}

// RecordSentimentRequest records the outcome and latency of a sentiment scoring call.
func RecordSentimentRequest(scope, status string, latencyMS float64) {
	SentimentRequestsTotal.WithLabelValues(scope, status).Inc()
	SentimentLatencyMS.WithLabelValues(scope).Observe(latencyMS)
}

// RecordSentimentFallback records a cloud fallback invocation and its trigger reason.
func RecordSentimentFallback(reason string) {
	SentimentFallbackTotal.WithLabelValues(reason).Inc()
}

// RecordEntityMention records a linked mention by match strategy.
func RecordEntityMention(strategy string) {
	EntityMentionsTotal.WithLabelValues(strategy).Inc()
}

// RecordAlertTriggered records an alert event firing.
func RecordAlertTriggered(ruleType string) {
	AlertsTriggeredTotal.WithLabelValues(ruleType).Inc()
}

// RecordAlertDelivered records a successful alert delivery on a channel.
func RecordAlertDelivered(channel string) {
	AlertsDeliveredTotal.WithLabelValues(channel).Inc()
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}
