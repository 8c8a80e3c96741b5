package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Tokens refill continuously at perSecond
// up to the burst size. Safe for concurrent use.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	perSecond  float64
	lastRefill time.Time
}

// NewRateLimiter builds a bucket holding burst tokens that refills at
// perSecond tokens per second.
func NewRateLimiter(burst int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burst),
		burst:      float64(burst),
		perSecond:  perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		deficit := 1 - r.tokens
		r.mu.Unlock()

		delay := time.Duration(deficit / r.perSecond * float64(time.Second))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking. Reports whether one was
// available.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill credits tokens for the time elapsed since the last refill.
// Caller holds the mutex.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.perSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.lastRefill = now
}

// Pre-configured rate limiters for the OKX v5 API.
// OKX allows 60 requests per 2 seconds on trade endpoints per instrument,
// but we stay well under to avoid IP-level throttling.
var (
	okxOrderLimiter  *RateLimiter
	okxMarketLimiter *RateLimiter
	rateLimiterOnce  sync.Once
)

// GetOKXOrderLimiter returns the rate limiter for trade endpoints.
// Limit: 10 requests/second with burst of 5.
func GetOKXOrderLimiter() *RateLimiter {
	rateLimiterOnce.Do(initOKXLimiters)
	return okxOrderLimiter
}

// GetOKXMarketLimiter returns the rate limiter for market data endpoints.
// Limit: 20 requests/second with burst of 10.
func GetOKXMarketLimiter() *RateLimiter {
	rateLimiterOnce.Do(initOKXLimiters)
	return okxMarketLimiter
}

func initOKXLimiters() {
	// Conservative limits to avoid IP bans
	okxOrderLimiter = NewRateLimiter(5, 10)   // 10 req/s, burst 5
	okxMarketLimiter = NewRateLimiter(10, 20) // 20 req/s, burst 10
}
