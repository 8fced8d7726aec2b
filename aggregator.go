package qrep

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidTrials = errors.New("number of trials must be positive")

// massTolerance bounds how far a raw distribution may stray from unit mass.
const massTolerance = 1e-6

/*
Report carries the finalized statistics for one code distance, together with
the view distributions of the last trial for reporting.
*/
type Report struct {
	Distance int
	Trials   int
	Stats    Stats
	Last     [2]Views
}

func (r *Report) means(v View) [2]float64 {
	s := r.Stats[v]
	return [2]float64{s[0].Mean, s[1].Mean}
}

func (r *Report) variances(v View) [2]float64 {
	s := r.Stats[v]
	return [2]float64{s[0].Variance, s[1].Variance}
}

// ErrorFull is the mean logical error per encoded bit using code and ancilla qubits.
func (r *Report) ErrorFull() [2]float64 { return r.means(ViewFull) }

// ErrorCode is the mean logical error per encoded bit using code qubits only.
func (r *Report) ErrorCode() [2]float64 { return r.means(ViewCode) }

// ErrorSingle is the mean error per encoded bit of the unprotected qubit.
func (r *Report) ErrorSingle() [2]float64 { return r.means(ViewSingle) }

// Variance returns the per-bit variance of the error estimate for v.
func (r *Report) Variance(v View) [2]float64 { return r.variances(v) }

// TrialOption configures RunTrials.
type TrialOption func(*trialConfig)

type trialConfig struct {
	attempts int
	observer func(d, trial int)
}

/*
WithAttempts sets how many times a trial re-requests a distribution that came
back incomplete before giving up.
*/
func WithAttempts(n int) TrialOption {
	return func(c *trialConfig) {
		c.attempts = n
	}
}

// WithTrialObserver is called after every trial has been folded in.
func WithTrialObserver(fn func(d, trial int)) TrialOption {
	return func(c *trialConfig) {
		c.observer = fn
	}
}

/*
RunTrials repeats the experiment numTrials times at distance d. Each trial asks
the runner for both encoded bits, derives the three views, estimates the
decoding error per view and bit against the pair from the same trial, and only
then folds the six estimates into the accumulator. An error from the runner
aborts the whole run, so no estimate is ever computed from a partial trial.
*/
func RunTrials(ctx context.Context, d, numTrials int, layout Layout, runner Runner, opts ...TrialOption) (*Report, error) {
	if err := layout.Validate(d); err != nil {
		return nil, err
	}
	if numTrials <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTrials, numTrials)
	}

	cfg := trialConfig{attempts: 3}
	for _, opt := range opts {
		opt(&cfg)
	}

	remap := Remapper(d, layout)
	acc := NewAccumulator()
	report := &Report{Distance: d, Trials: numTrials}

	for trial := 1; trial <= numTrials; trial++ {
		var views [2]Views

		for bit := 0; bit < 2; bit++ {
			raw, err := obtain(ctx, runner, bit, d, layout.Width(d), cfg.attempts)
			if err != nil {
				return nil, fmt.Errorf("trial %d of distance %d: %w", trial, d, err)
			}

			if views[bit], err = Accumulate(raw, remap); err != nil {
				return nil, fmt.Errorf("trial %d of distance %d: %w", trial, d, err)
			}
		}

		for _, v := range AllViews {
			pair := PairOf(v, views)
			for bit := 0; bit < 2; bit++ {
				e, err := EstimateError(bit, pair)
				if err != nil {
					return nil, err
				}
				if err := acc.Add(v, bit, e); err != nil {
					return nil, err
				}
			}
		}

		report.Last = views

		if cfg.observer != nil {
			cfg.observer(d, trial)
		}
	}

	report.Stats = acc.Finalize(numTrials)
	return report, nil
}

/*
obtain asks the runner for one raw distribution and checks it before it
reaches the decoder. A distribution missing probability mass is incomplete
and is requested again; runners that already exhausted their own retries are
not retried here.
*/
func obtain(ctx context.Context, runner Runner, bit, d, width, attempts int) (Distribution, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := runner.Execute(ctx, bit, d)
		if err == nil {
			err = checkRaw(raw, width)
		}
		if err == nil {
			return raw, nil
		}

		lastErr = err
		if !errors.Is(err, ErrIncomplete) || errors.Is(err, ErrRetriesExhausted) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: bit %d after %d attempts: %w", ErrRetriesExhausted, bit, attempts, lastErr)
}

func checkRaw(raw Distribution, width int) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty distribution", ErrIncomplete)
	}
	if err := raw.Validate(width); err != nil {
		return err
	}
	total := raw.Total()
	switch {
	case total > 1+massTolerance:
		return fmt.Errorf("%w: distribution sums to %v", ErrDataIntegrity, total)
	case total < 1-massTolerance:
		return fmt.Errorf("%w: distribution sums to %v", ErrIncomplete, total)
	}
	return nil
}
