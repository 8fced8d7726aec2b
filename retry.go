package qrep

import (
	"math"
	"time"
)

/*
RetryPolicy bounds how often the device resubmits a circuit whose result came
back incomplete. Filter, when set, decides whether an error is worth another
attempt at all.
*/
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

// RetryStrategy defines the delay before a given attempt.
type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay every attempt, capped at Max when Max > 0.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
	if eb.Max > 0 && (delay > eb.Max || delay < 0) {
		return eb.Max
	}
	return delay
}

// DefaultRetryPolicy retries incomplete results up to attempts times.
func DefaultRetryPolicy(attempts int, initial time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: attempts,
		Strategy:    &ExponentialBackoff{Initial: initial, Max: 30 * time.Second},
		Filter:      Retryable,
	}
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithRetry configures retry behavior for backend executions.
func WithRetry(attempts int, strategy RetryStrategy) DeviceOption {
	return func(d *Device) {
		d.retry = &RetryPolicy{
			MaxAttempts: attempts,
			Strategy:    strategy,
			Filter:      Retryable,
		}
	}
}

// WithCircuitBreaker guards the backend with a circuit breaker.
func WithCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) DeviceOption {
	return func(d *Device) {
		d.breaker = NewCircuitBreaker(maxFailures, resetTimeout, halfOpenMax)
	}
}

// WithRateLimit caps how often jobs are submitted to the backend.
func WithRateLimit(maxTokens int, refillRate time.Duration) DeviceOption {
	return func(d *Device) {
		d.limiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithMetrics records backend activity into m.
func WithMetrics(m *Metrics) DeviceOption {
	return func(d *Device) {
		d.metrics = m
	}
}
