// Package cache keeps successful GET responses in an expiring LRU.
package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/abduss/blogapi/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// StatusHeader reports HIT or MISS on cached routes.
	StatusHeader = "X-Cache"

	defaultSize = 512
	defaultTTL  = time.Hour
)

type entry struct {
	contentType string
	body        []byte
}

// ResponseCache stores response bodies keyed by request URI.
type ResponseCache struct {
	lru *expirable.LRU[string, entry]
}

// New builds a cache holding at most size entries for ttl each.
func New(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResponseCache{lru: expirable.NewLRU[string, entry](size, nil, ttl)}
}

// Middleware serves cached GET responses and records new 200 responses.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if cached, ok := rc.lru.Get(key); ok {
			metrics.ObserveCache("hit")
			c.Header(StatusHeader, "HIT")
			c.Data(http.StatusOK, cached.contentType, cached.body)
			c.Abort()
			return
		}

		metrics.ObserveCache("miss")
		c.Header(StatusHeader, "MISS")
		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		if recorder.Status() == http.StatusOK && len(c.Errors) == 0 {
			rc.lru.Add(key, entry{
				contentType: recorder.Header().Get("Content-Type"),
				body:        bytes.Clone(recorder.body.Bytes()),
			})
		}
	}
}

// Clear drops every cached response.
func (rc *ResponseCache) Clear() {
	rc.lru.Purge()
	metrics.ObserveCache("clear")
}

// Len reports the number of cached responses.
func (rc *ResponseCache) Len() int {
	return rc.lru.Len()
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
