package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	authEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "auth_events_total",
		Help:      "Authentication flow outcomes (register, login, refresh, logout, authenticate).",
	}, []string{"event", "outcome"})

	cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "response_cache_events_total",
		Help:      "Response cache hits, misses and clears.",
	}, []string{"event"})
)

// InitMetrics registers collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, authEvents, cacheEvents)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// ObserveAuth counts one authentication flow outcome.
func ObserveAuth(event, outcome string) {
	authEvents.WithLabelValues(event, outcome).Inc()
}

// ObserveCache counts one response cache event.
func ObserveCache(event string) {
	cacheEvents.WithLabelValues(event).Inc()
}
