package qrep

import (
	"context"
	"sync"
	"time"
)

/*
RateLimiter is a token bucket that paces job submissions to a backend. Remote
devices throttle how many jobs a user may queue; the limiter keeps the trial
loop under that ceiling while still allowing a burst of maxTokens jobs.
*/
type RateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration // Time between token replenishments
	lastRefill time.Time
	mu         sync.Mutex
	metrics    *Metrics
}

/*
NewRateLimiter creates a full bucket of maxTokens that gains one token every
refillRate.
*/
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now.Add(-refillRate),
	}
}

// Observe implements Regulator.
func (rl *RateLimiter) Observe(metrics *Metrics) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.metrics = metrics
}

/*
Limit consumes a token if one is available. It returns true when the bucket is
empty and the submission has to wait.
*/
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false
	}
	return true
}

// Renormalize implements Regulator by refilling the bucket for elapsed time.
func (rl *RateLimiter) Renormalize() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
}

/*
Wait blocks until a token is available or ctx is done.
*/
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for rl.Limit() {
		rl.mu.Lock()
		m := rl.metrics
		rl.mu.Unlock()
		if m != nil {
			m.recordThrottle()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.refillRate):
			rl.Renormalize()
		}
	}
	return nil
}

// refill assumes the caller holds the mutex.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	elapsedNs := time.Since(rl.lastRefill).Nanoseconds()
	refillRateNs := rl.refillRate.Nanoseconds()

	// Round up only once at least half a period has passed
	tokensToAdd := (elapsedNs + (refillRateNs / 2)) / refillRateNs

	if tokensToAdd > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+int(tokensToAdd))
		rl.lastRefill = rl.lastRefill.Add(time.Duration(tokensToAdd) * rl.refillRate)
	}
}
