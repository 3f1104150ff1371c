// Package metrics регистрирует метрики Prometheus для HTTP API и жизненного цикла подписок.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subscription_manager"

// Результаты операций жизненного цикла.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	lifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Subscription lifecycle operations by result",
		},
		[]string{"operation", "result"},
	)

	subscriptionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "expired_total",
			Help:      "Subscriptions moved to EXPIRED by the sweeper",
		},
	)
)

// responseWriter запоминает код ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware считает запросы и их длительность в разрезе шаблона маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

// Handler возвращает HTTP-обработчик для /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLifecycle учитывает операцию жизненного цикла (create, update, cancel, delete).
func RecordLifecycle(operation, result string) {
	lifecycleOperations.WithLabelValues(operation, result).Inc()
}

// RecordExpired учитывает подписки, переведённые в EXPIRED.
func RecordExpired(n int) {
	subscriptionsExpired.Add(float64(n))
}
