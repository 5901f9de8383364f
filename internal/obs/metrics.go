package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Console HTTP metrics (inbound UI requests).
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Gateway metrics (outbound calls to the registry REST gateway).
var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of outbound gateway requests.",
		},
		[]string{"method", "path", "status"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Outbound gateway request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	gatewayTokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_refresh_total",
			Help: "Silent token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notificationPollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_poll_total",
			Help: "Notification poll cycles by outcome.",
		},
		[]string{"outcome"},
	)

	notificationsUnread = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notifications_unread",
		Help: "Unread notifications as of the last successful poll.",
	})
)

// Init registers all console metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		gatewayRequestsTotal, gatewayRequestDuration, gatewayTokenRefreshTotal,
		notificationPollTotal, notificationsUnread,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps the console mux with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// ObserveGatewayRequest records one outbound gateway call. The path must be
// the endpoint template, not the concrete URL, to keep cardinality bounded.
func ObserveGatewayRequest(method, pathTemplate string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	gatewayRequestsTotal.WithLabelValues(method, pathTemplate, code).Inc()
	gatewayRequestDuration.WithLabelValues(method, pathTemplate, code).Observe(duration.Seconds())
}

// CountTokenRefresh records a silent refresh outcome ("attempt", "success",
// "failure").
func CountTokenRefresh(outcome string) {
	gatewayTokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// CountNotificationPoll records one poll cycle ("success" or "failure").
func CountNotificationPoll(outcome string) {
	notificationPollTotal.WithLabelValues(outcome).Inc()
}

// SetUnreadNotifications publishes the unread count from the last poll.
func SetUnreadNotifications(n int) {
	notificationsUnread.Set(float64(n))
}

// CanonicalPath collapses id-bearing console paths into templates so metric
// labels stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch parts[0] {
	case "assets":
		if len(parts) == 2 && parts[1] != "new" {
			return "/assets/:id"
		}
		if len(parts) == 3 {
			return "/assets/:id/" + parts[2]
		}
	case "gallery":
		if len(parts) == 2 {
			return "/gallery/:id"
		}
	case "notifications":
		if len(parts) == 3 && parts[2] == "read" {
			return "/notifications/:id/read"
		}
	case "admin":
		if len(parts) == 4 && parts[1] == "assets" {
			return "/admin/assets/:id/" + parts[3]
		}
		if len(parts) == 3 && parts[1] == "users" {
			return "/admin/users/:username"
		}
	}
	return path
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE handlers working behind the instrumented wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
