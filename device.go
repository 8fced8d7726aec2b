package qrep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

/*
Device turns a Backend into a Runner. It submits the repetition-code circuit,
refuses anything short of a complete result and resubmits until it gets one or
the retry budget runs out.
*/
type Device struct {
	backend Backend
	layout  Layout
	shots   int
	retry   *RetryPolicy
	breaker *CircuitBreaker
	limiter *RateLimiter
	metrics *Metrics
}

// NewDevice wraps backend with the default retry policy.
func NewDevice(backend Backend, layout Layout, shots int, opts ...DeviceOption) *Device {
	d := &Device{
		backend: backend,
		layout:  layout,
		shots:   shots,
		retry:   DefaultRetryPolicy(5, 100*time.Millisecond),
		metrics: NewMetrics(nil),
	}

	for _, opt := range opts {
		opt(d)
	}

	for _, r := range d.regulators() {
		r.Observe(d.metrics)
	}

	return d
}

func (d *Device) Name() string { return d.backend.Name() }

func (d *Device) Layout() Layout { return d.layout }

func (d *Device) Shots() int { return d.shots }

func (d *Device) Metrics() *Metrics { return d.metrics }

/*
Execute runs the circuit for encodedBit at distance dist and returns the raw
outcome distribution, normalized by shots. Results that are errored or
incomplete are resubmitted with backoff; a result that fails the integrity
check is returned as an error straight away.
*/
func (d *Device) Execute(ctx context.Context, encodedBit, dist int) (Distribution, error) {
	if err := validateBit(encodedBit); err != nil {
		return nil, err
	}
	if err := d.layout.Validate(dist); err != nil {
		return nil, err
	}
	if d.shots <= 0 {
		return nil, fmt.Errorf("device needs a positive shot count, got %d", d.shots)
	}

	spec := CircuitSpec{EncodedBit: encodedBit, Distance: dist, Layout: d.layout}
	policy := d.retry
	if policy == nil || policy.MaxAttempts < 1 {
		policy = &RetryPolicy{MaxAttempts: 1}
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 && policy.Strategy != nil {
			delay := policy.Strategy.NextDelay(attempt)
			log.Printf("%s: retrying bit %d distance %d attempt %d after %v", d.backend.Name(), encodedBit, dist, attempt+1, delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := d.attempt(ctx, spec)
		if err == nil {
			return result, nil
		}

		lastErr = err
		log.Printf("%s: bit %d distance %d attempt %d failed with error: %v", d.backend.Name(), encodedBit, dist, attempt+1, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if policy.Filter != nil && !policy.Filter(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: bit %d distance %d after %d attempts: %w", ErrRetriesExhausted, encodedBit, dist, policy.MaxAttempts, lastErr)
}

func (d *Device) attempt(ctx context.Context, spec CircuitSpec) (Distribution, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if d.breaker != nil && !d.breaker.Allow() {
		d.metrics.recordJobExecution(time.Now(), OutcomeRejected)
		return nil, fmt.Errorf("%w for %s", ErrCircuitOpen, d.backend.Name())
	}

	startTime := time.Now()
	result, err := d.backend.Run(ctx, spec, d.shots)
	if err != nil {
		d.recordFailure(startTime, OutcomeFailed)
		return nil, fmt.Errorf("%s run failed: %w", d.backend.Name(), err)
	}

	width := spec.Width()
	if err := result.Complete(width); err != nil {
		d.recordFailure(startTime, OutcomeIncomplete)
		return nil, err
	}
	if result.Shots != d.shots {
		d.recordFailure(startTime, OutcomeIncomplete)
		return nil, fmt.Errorf("%w: job %s ran %d of %d shots", ErrIncomplete, result.JobID, result.Shots, d.shots)
	}

	dist, err := result.Counts.Normalize(result.Shots)
	if err == nil {
		err = dist.Validate(width)
	}
	if err != nil {
		d.recordFailure(startTime, OutcomeFailed)
		return nil, err
	}

	if d.breaker != nil {
		d.breaker.RecordSuccess()
	}
	d.metrics.recordJobExecution(startTime, OutcomeCompleted)
	d.observe()

	return dist, nil
}

func (d *Device) recordFailure(startTime time.Time, outcome string) {
	if d.breaker != nil {
		d.breaker.RecordFailure()
	}
	d.metrics.recordJobExecution(startTime, outcome)
	d.observe()
}

func (d *Device) observe() {
	for _, r := range d.regulators() {
		r.Observe(d.metrics)
		r.Renormalize()
	}
}

func (d *Device) regulators() []Regulator {
	var regs []Regulator
	if d.breaker != nil {
		regs = append(regs, d.breaker)
	}
	if d.limiter != nil {
		regs = append(regs, d.limiter)
	}
	return regs
}

/*
Retryable reports whether another submission could fix err. Integrity
violations and invalid requests will fail the same way again, and a cancelled
context means the caller has given up.
*/
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDataIntegrity),
		errors.Is(err, ErrInvalidBit),
		errors.Is(err, ErrInvalidDistance),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
