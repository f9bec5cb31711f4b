package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(rc *ResponseCache, calls *int, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/posts", rc.Middleware(), func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"calls": *calls, "page": c.Query("page")})
	})
	return router
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestMiddlewareServesHits(t *testing.T) {
	rc := New(8, time.Minute)
	calls := 0
	router := newRouter(rc, &calls, http.StatusOK)

	first := get(router, "/posts?page=1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(StatusHeader))

	second := get(router, "/posts?page=1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(StatusHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, calls)

	third := get(router, "/posts?page=2")
	assert.Equal(t, "MISS", third.Header().Get(StatusHeader))
	assert.Equal(t, 2, calls)
}

func TestMiddlewareSkipsErrors(t *testing.T) {
	rc := New(8, time.Minute)
	calls := 0
	router := newRouter(rc, &calls, http.StatusInternalServerError)

	get(router, "/posts")
	get(router, "/posts")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, rc.Len())
}

func TestClearDropsEntries(t *testing.T) {
	rc := New(8, time.Minute)
	calls := 0
	router := newRouter(rc, &calls, http.StatusOK)

	get(router, "/posts")
	require.Equal(t, 1, rc.Len())

	rc.Clear()
	require.Equal(t, 0, rc.Len())

	rec := get(router, "/posts")
	assert.Equal(t, "MISS", rec.Header().Get(StatusHeader))
	assert.Equal(t, 2, calls)
}

func TestEntriesExpire(t *testing.T) {
	rc := New(8, 20*time.Millisecond)
	calls := 0
	router := newRouter(rc, &calls, http.StatusOK)

	get(router, "/posts")
	require.Eventually(t, func() bool { return rc.Len() == 0 }, time.Second, 10*time.Millisecond)

	get(router, "/posts")
	assert.Equal(t, 2, calls)
}

func TestSchedulerValidation(t *testing.T) {
	rc := New(8, time.Minute)

	_, err := NewScheduler(rc, "0 3 * * *", "Not/AZone", nil)
	require.Error(t, err)

	_, err = NewScheduler(rc, "not a cron spec", "UTC", nil)
	require.Error(t, err)
}

func TestSchedulerPlansNextRunInTimezone(t *testing.T) {
	rc := New(8, time.Minute)
	scheduler, err := NewScheduler(rc, "0 3 * * *", "Asia/Dhaka", nil)
	require.NoError(t, err)

	scheduler.Start()
	defer scheduler.Stop(context.Background())

	next := scheduler.Next()
	require.False(t, next.IsZero())

	dhaka, err := time.LoadLocation("Asia/Dhaka")
	require.NoError(t, err)
	local := next.In(dhaka)
	assert.Equal(t, 3, local.Hour())
	assert.Equal(t, 0, local.Minute())
}
