package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	DiscoveryCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_api_calls_total",
			Help: "Total discovery API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	DiscoveryCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_api_call_duration_seconds",
			Help:    "Discovery API call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)
	DiscoveryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_requests_total",
			Help: "Cache lookups for discovery responses by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)
	RateLimiterWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rate_limiter_wait_seconds",
			Help:    "Time spent waiting for discovery budget tokens",
			Buckets: []float64{0, 1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)

	// Match outcome distributions
	FinalScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_final_score",
			Help:    "Distribution of final match scores ([0,100])",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	MatchGradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_grades_total",
			Help: "Count of match results by grade",
		},
		[]string{"grade"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(DiscoveryCallsTotal)
	prometheus.MustRegister(DiscoveryCallDuration)
	prometheus.MustRegister(DiscoveryCacheTotal)
	prometheus.MustRegister(RateLimiterWaitSeconds)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(FinalScoreHistogram)
	prometheus.MustRegister(MatchGradesTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
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

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

func FailJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// ObserveDiscoveryCall records one upstream call with its outcome.
func ObserveDiscoveryCall(operation, outcome string, dur time.Duration) {
	DiscoveryCallsTotal.WithLabelValues(operation, outcome).Inc()
	DiscoveryCallDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

// ObserveCache records one cache lookup for a tier ("profile" or "media").
func ObserveCache(tier string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	DiscoveryCacheTotal.WithLabelValues(tier, outcome).Inc()
}

// ObserveMatch records the outcome of one scored pairing.
func ObserveMatch(finalScore float64, grade string) {
	if finalScore >= 0 && finalScore <= 100 {
		FinalScoreHistogram.Observe(finalScore)
	}
	MatchGradesTotal.WithLabelValues(grade).Inc()
}
