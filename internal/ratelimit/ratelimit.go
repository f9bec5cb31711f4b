// Package ratelimit throttles unauthenticated auth traffic per client IP.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abduss/blogapi/internal/config"
	"github.com/abduss/blogapi/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const cleanupInterval = 5 * time.Minute

// Limiter hands out one token bucket per key.
type Limiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	requests    int
	window      time.Duration
	mu          sync.Mutex
	lastCleanup time.Time
}

// New builds a Limiter allowing cfg.Requests per cfg.Window with cfg.Burst.
func New(cfg config.RateLimitConfig) *Limiter {
	requests := cfg.Requests
	if requests <= 0 {
		requests = 1
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = requests
	}

	return &Limiter{
		rate:        rate.Limit(float64(requests) / window.Seconds()),
		burst:       burst,
		requests:    requests,
		window:      window,
		lastCleanup: time.Now(),
	}
}

// Allow consumes a token for key. When none is left it returns the delay
// until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	limiter := l.limiter(key)
	if limiter.Allow() {
		return true, 0
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			c.Next()
			return
		}

		allowed, delay := l.Allow(key)
		if allowed {
			c.Next()
			return
		}

		retryAfter := max(int(delay.Seconds()), 1)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.requests))
		c.Header("X-RateLimit-Window", l.window.String())

		logger.FromContext(c).Warn("rate limit exceeded",
			zap.String("key", key),
			zap.String("path", c.Request.URL.Path),
			zap.Int("retry_after", retryAfter),
		)

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"status":  "error",
			"error":   "rate_limit_exceeded",
			"message": "Too many requests, please try again later",
		})
	}
}

func (l *Limiter) limiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, i.e. idle keys.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}
