package security

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/trainguard/img-sentinel/internal/config"
)

// RateLimiter enforces a per-client request rate. Each client IP gets
// its own token bucket; buckets are created on first sight and kept for
// the process lifetime.
type RateLimiter struct {
	config   *config.RateLimitConfig
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewRateLimiter creates a rate limiter from the configuration.
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a request from the given client IP may proceed.
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}
	return r.getLimiter(clientIP).Allow()
}

// getLimiter gets or creates the limiter for a client IP.
func (r *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[clientIP]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := r.limiters[clientIP]; exists {
		return limiter
	}

	burst := r.config.Burst
	if burst <= 0 {
		burst = r.config.RequestsPerMin
	}

	limiter = rate.NewLimiter(rate.Limit(float64(r.config.RequestsPerMin)/60.0), burst)
	r.limiters[clientIP] = limiter
	return limiter
}
