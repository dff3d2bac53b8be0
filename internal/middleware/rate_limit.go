package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/utils"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows cfg.Requests per cfg.WindowSeconds per client
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	limit := rate.Inf
	if cfg.Requests > 0 {
		limit = rate.Every(window / time.Duration(cfg.Requests))
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{limit: limit, burst: burst}
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

// Middleware rejects clients over their budget with 429
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := l.getLimiter(utils.GetRealIP(c))
		if !lim.Allow() {
			retry := time.Second
			if l.limit > 0 && l.limit != rate.Inf {
				retry = time.Duration(float64(time.Second) / float64(l.limit))
			}
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			abort(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down", "RATE_LIMITED")
			return
		}
		c.Next()
	}
}
