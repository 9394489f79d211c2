package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// StatusCodeCategoryCounter counts responses by 2xx/4xx/5xx category
	StatusCodeCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"service", "category", "method", "path"},
	)

	registerOnce sync.Once
)

// HTTPMetrics holds configuration for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
}

// NewHTTPMetrics creates a new HTTP metrics collector for a specific service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDurationHistogram)
		prometheus.MustRegister(StatusCodeCategoryCounter)
	})
	return &HTTPMetrics{ServiceName: serviceName}
}

// StatusCategory returns "2xx", "3xx", "4xx" or "5xx", or "" for anything else
func StatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			if category := StatusCategory(status); category != "" {
				StatusCodeCategoryCounter.WithLabelValues(m.ServiceName, category, method, path).Inc()
			}
			RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, statusStr).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
