package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Catalog search metrics
	catalogSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Total number of catalog queries",
		},
		[]string{"mode", "status"}, // browse/exact/fuzzy, success/failure
	)

	catalogFuzzyCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_fuzzy_candidates",
			Help:    "Number of titles scanned per fuzzy-search fallback",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// Auth metrics
	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // success/invalid_credentials/two_factor_required/error
	)

	tokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
		[]string{"flow"}, // login/register/two_factor/refresh
	)

	roleReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_role_reconciliations_total",
			Help: "Total number of Administrator role rows repaired from the profile admin flag",
		},
	)

	rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"}, // auth/general
	)

	// Upstream recommender metrics
	recommenderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_call_duration_seconds",
			Help:    "Recommender endpoint call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"model", "status_code"},
	)

	// Store metrics
	storeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "SQLite query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"query"},
	)
)

// Init initializes the metrics
func Init() error {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		catalogSearchesTotal,
		catalogFuzzyCandidates,
		loginAttemptsTotal,
		tokensIssuedTotal,
		roleReconciliationsTotal,
		rateLimitRejectionsTotal,
		recommenderCallDuration,
		storeQueryDuration,
	)

	return nil
}

// HTTPMetricsMiddleware records HTTP metrics
func HTTPMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		method := c.Method()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)

		return err
	}
}

// RecordCatalogSearch records a catalog query by match mode
func RecordCatalogSearch(mode, status string) {
	catalogSearchesTotal.WithLabelValues(mode, status).Inc()
}

// RecordFuzzyCandidates records how many titles a fuzzy fallback scanned
func RecordFuzzyCandidates(n int) {
	catalogFuzzyCandidates.Observe(float64(n))
}

// RecordLoginAttempt records a login attempt outcome
func RecordLoginAttempt(outcome string) {
	loginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued records an access token issuance
func RecordTokenIssued(flow string) {
	tokensIssuedTotal.WithLabelValues(flow).Inc()
}

// RecordRoleReconciliation records a repaired Administrator role row
func RecordRoleReconciliation() {
	roleReconciliationsTotal.Inc()
}

// RecordRateLimitRejection records a request turned away by the rate limiter
func RecordRateLimitRejection(scope string) {
	rateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// RecordRecommenderCall records metrics for recommender endpoint calls
func RecordRecommenderCall(model string, statusCode int, duration time.Duration) {
	recommenderCallDuration.WithLabelValues(model, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordStoreQuery records SQLite query durations
func RecordStoreQuery(query string, duration time.Duration) {
	storeQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
