// metrics.go — Prometheus HTTP метрики TRIUP Gateway.
// Регистрирует метрики: tg_http_requests_total, tg_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_http_requests_total",
			Help: "Общее количество HTTP-запросов к TRIUP Gateway",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tg_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к TRIUP Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID и slug на шаблоны для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет переменные сегменты пути на шаблоны для предотвращения
// взрывного роста кардинальности метрик.
// /api/admin/users/a1b2c3d4-.../role-log → /api/admin/users/{uuid}/role-log
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/", "/health/live", "/health/ready", "/metrics",
		"/api/login-api-triup/login",
		"/api/login-api-triup/me",
		"/api/psu_auth/login",
		"/api/scripts/fetch-all",
		"/api/scripts/import-server-fix",
		"/api/scripts/import-server-form",
		"/api/scripts/import-server-user",
		"/api/scripts/status",
		"/api/admin/users":
		return path
	}

	if strings.HasPrefix(path, "/api/master/") {
		return "/api/master/{entity}"
	}

	const usersPrefix = "/api/admin/users/"
	if rest, ok := strings.CutPrefix(path, usersPrefix); ok && rest != "" {
		_, suffix, _ := strings.Cut(rest, "/")
		switch suffix {
		case "":
			return usersPrefix + "{uuid}"
		case "role", "role-log":
			return usersPrefix + "{uuid}/" + suffix
		}
	}

	return "other"
}
