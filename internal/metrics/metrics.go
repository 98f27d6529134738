package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 1000000, 10000000},
		},
		[]string{"method", "endpoint"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"method", "endpoint"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	dbQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Business metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"}, // success, failure
	)

	propertyViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "property_views_total",
			Help: "Total number of recorded property detail views",
		},
	)

	propertiesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "properties_created_total",
			Help: "Total number of properties submitted",
		},
	)

	moderationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total number of moderation decisions",
		},
		[]string{"outcome"}, // approved, rejected
	)

	propertyDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "property_deletions_total",
			Help: "Total number of soft delete lifecycle transitions",
		},
		[]string{"kind"}, // soft, restore, purge
	)

	favoritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_toggled_total",
			Help: "Total number of favorite changes",
		},
		[]string{"action"}, // add, remove
	)

	inquiriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiries_total",
			Help: "Total number of inquiries received",
		},
		[]string{"type"},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total number of investor and partner registrations",
		},
		[]string{"kind"}, // investor, partner
	)

	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of notification emails attempted",
		},
		[]string{"status"}, // success, failure, skipped
	)

	trashPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trash_purged_total",
			Help: "Total number of properties purged by the trash reaper",
		},
	)
)

type routeKey struct{}

// SetRoute records the matched route pattern for the current request so the
// endpoint label does not carry ids or slugs.
func SetRoute(ctx context.Context, pattern string) {
	if p, ok := ctx.Value(routeKey{}).(*string); ok {
		*p = pattern
	}
}

// PrometheusMiddleware creates a middleware that records Prometheus metrics
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// Wrap response writer to capture status code and size
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		route := "unmatched"
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, &route))

		// Handle request
		next.ServeHTTP(wrapped, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)

		if r.ContentLength > 0 {
			httpRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, route).Observe(float64(wrapped.size))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(success bool) {
	authAttemptsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordPropertyView records a property detail view
func RecordPropertyView() {
	propertyViewsTotal.Inc()
}

// RecordPropertyCreated records a new property submission
func RecordPropertyCreated() {
	propertiesCreatedTotal.Inc()
}

// RecordModeration records an approve or reject decision
func RecordModeration(outcome string) {
	moderationActionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeletion records a soft delete, restore or purge
func RecordDeletion(kind string) {
	propertyDeletionsTotal.WithLabelValues(kind).Inc()
}

// RecordFavorite records a favorite add or remove
func RecordFavorite(action string) {
	favoritesTotal.WithLabelValues(action).Inc()
}

// RecordInquiry records a new inquiry
func RecordInquiry(inquiryType string) {
	inquiriesTotal.WithLabelValues(inquiryType).Inc()
}

// RecordRegistration records an investor or partner registration
func RecordRegistration(kind string) {
	registrationsTotal.WithLabelValues(kind).Inc()
}

// RecordEmail records the outcome of a notification email
func RecordEmail(status string) {
	emailsSentTotal.WithLabelValues(status).Inc()
}

// RecordTrashPurged records properties removed by the reaper
func RecordTrashPurged(n int) {
	trashPurgedTotal.Add(float64(n))
}

// RecordDBQuery records a database query
func RecordDBQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dbQueriesTotal.WithLabelValues(operation, status).Inc()
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
