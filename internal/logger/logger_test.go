package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abduss/blogapi/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitUsesConfiguredLevel(t *testing.T) {
	l, err := Init(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, l)
	require.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := Init(config.LogConfig{Level: "chatty"})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zap.DebugLevel))
	require.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestInitIgnoresProcessEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	l, err := Init(config.LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zap.InfoLevel))
	require.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestMiddlewareSetsCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		id := CorrelationID(c)
		if id == "" || FromContext(c) == nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	header := rr.Header().Get(CorrelationIDHeader)
	require.NotEmpty(t, header)
	_, err := ulid.ParseStrict(header)
	require.NoError(t, err)
}

func TestMiddlewareKeepsIncomingCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(nil))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, CorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, "abc-123", rr.Header().Get(CorrelationIDHeader))
	require.Equal(t, "abc-123", rr.Body.String())
}
