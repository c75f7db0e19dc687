package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scope",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route and status code",
	}, []string{"method", "route", "code"})

	// Build requests hold the connection for the whole build, hence the
	// long tail.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scope",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency in seconds",
		Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"method", "route"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scope",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served",
	}, []string{"route"})
)

// MetricsMiddleware records request counts, latency and concurrency per
// route. Scrapes of /metrics are not counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		route := routeLabel(c.FullPath())
		inFlight := httpInFlight.WithLabelValues(route)
		inFlight.Inc()
		start := time.Now()

		c.Next()

		inFlight.Dec()
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// routeLabel keeps label cardinality bounded: unmatched routes share one
// label instead of one per raw URL.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
