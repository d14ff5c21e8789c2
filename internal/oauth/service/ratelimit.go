package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the per-client redemption rate limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultRedemptionLimit throttles token endpoint calls per client. Code
// redemption is a once-per-login operation, so the limit is deliberately
// tight.
var DefaultRedemptionLimit = RateLimitConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

// keyedLimiter manages one token bucket per client username.
type keyedLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func newKeyedLimiter(cfg RateLimitConfig) *keyedLimiter {
	return &keyedLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}
}

// allow consumes one token from the key's bucket.
func (kl *keyedLimiter) allow(key string) bool {
	limiter := kl.getLimiter(key)
	kl.maybeCleanup()
	return limiter.Allow()
}

func (kl *keyedLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := kl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(kl.rate, kl.burst)
	actual, _ := kl.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral client keys do not
// accumulate forever. A limiter with a full bucket has not been used for at
// least one window.
func (kl *keyedLimiter) maybeCleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if time.Since(kl.lastCleanup) < 5*time.Minute {
		return
	}
	kl.lastCleanup = time.Now()

	kl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(kl.burst) {
			kl.limiters.Delete(key)
		}
		return true
	})
}
