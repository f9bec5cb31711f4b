package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareIncrementsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()

	r := gin.New()
	r.Use(Middleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/test", http.MethodGet, "200"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("/test", http.MethodGet, "200"))
	require.Equal(t, before+1, after)
}

func TestObserveAuthCountsOutcomes(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(authEvents.WithLabelValues("login", "success"))
	ObserveAuth("login", "success")
	require.Equal(t, before+1, testutil.ToFloat64(authEvents.WithLabelValues("login", "success")))
}

func TestRegisterExposesMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()
	ObserveCache("hit")

	r := gin.New()
	Register(r, "/metrics")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "blog_response_cache_events_total")
}
