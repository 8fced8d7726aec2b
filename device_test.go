package qrep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

// scriptedBackend replays a fixed sequence of results, repeating the last one.
type scriptedBackend struct {
	mu      sync.Mutex
	script  []func(CircuitSpec, int) (*Result, error)
	calls   int
	lastBit int
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Run(_ context.Context, spec CircuitSpec, shots int) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	step := b.script[min(b.calls, len(b.script)-1)]
	b.calls++
	b.lastBit = spec.EncodedBit
	return step(spec, shots)
}

func (b *scriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func completed(counts Counts) func(CircuitSpec, int) (*Result, error) {
	return func(_ CircuitSpec, shots int) (*Result, error) {
		return &Result{JobID: "ok", Status: JobCompleted, Counts: counts, Shots: shots}, nil
	}
}

func errored() func(CircuitSpec, int) (*Result, error) {
	return func(_ CircuitSpec, shots int) (*Result, error) {
		return &Result{JobID: "err", Status: JobError, Shots: shots}, nil
	}
}

func shortOfShots() func(CircuitSpec, int) (*Result, error) {
	return func(_ CircuitSpec, shots int) (*Result, error) {
		return &Result{JobID: "short", Status: JobCompleted, Counts: Counts{"0000": shots / 2}, Shots: shots}, nil
	}
}

func unreachable() func(CircuitSpec, int) (*Result, error) {
	return func(CircuitSpec, int) (*Result, error) {
		return nil, errors.New("connection refused")
	}
}

func fastRetry(attempts int) DeviceOption {
	return WithRetry(attempts, &ExponentialBackoff{Initial: time.Millisecond, Max: 5 * time.Millisecond})
}

func TestDeviceExecute(t *testing.T) {
	good := Counts{"0000": 6, "0101": 2}

	Convey("Given a backend that recovers after incomplete results", t, func() {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){
			errored(), shortOfShots(), completed(good),
		}}
		device := NewDevice(backend, Dense{}, 8, fastRetry(5), WithMetrics(metrics))

		dist, err := device.Execute(context.Background(), 1, 2)

		Convey("It should resubmit until the result is complete", func() {
			So(err, ShouldBeNil)
			So(backend.Calls(), ShouldEqual, 3)
			So(backend.lastBit, ShouldEqual, 1)
			So(dist, ShouldResemble, Distribution{"0000": 0.75, "0101": 0.25})
		})

		Convey("It should record every job outcome", func() {
			So(metrics.IncompleteJobs, ShouldEqual, 2)
			So(metrics.CompletedJobs, ShouldEqual, 1)
			So(testutil.ToFloat64(metrics.JobCounter(OutcomeIncomplete)), ShouldEqual, 2)
			So(testutil.ToFloat64(metrics.JobCounter(OutcomeCompleted)), ShouldEqual, 1)
			So(metrics.ExportMetrics()["jobs"], ShouldEqual, int64(3))
		})
	})

	Convey("Given a backend that never completes", t, func() {
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){errored()}}
		device := NewDevice(backend, Dense{}, 8, fastRetry(4))

		_, err := device.Execute(context.Background(), 0, 2)

		Convey("It should give up after the retry budget", func() {
			So(errors.Is(err, ErrRetriesExhausted), ShouldBeTrue)
			So(errors.Is(err, ErrIncomplete), ShouldBeTrue)
			So(backend.Calls(), ShouldEqual, 4)
		})
	})

	Convey("Given a backend returning negative counts", t, func() {
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){
			completed(Counts{"0000": 10, "1111": -2}),
		}}
		device := NewDevice(backend, Dense{}, 8, fastRetry(4))

		_, err := device.Execute(context.Background(), 0, 2)

		Convey("It should fail without retrying", func() {
			So(errors.Is(err, ErrDataIntegrity), ShouldBeTrue)
			So(errors.Is(err, ErrRetriesExhausted), ShouldBeFalse)
			So(backend.Calls(), ShouldEqual, 1)
		})
	})

	Convey("Given an invalid request", t, func() {
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){completed(good)}}
		device := NewDevice(backend, Dense{}, 8)

		Convey("A distance below 2 should be rejected before submission", func() {
			_, err := device.Execute(context.Background(), 0, 1)
			So(errors.Is(err, ErrInvalidDistance), ShouldBeTrue)
			So(backend.Calls(), ShouldEqual, 0)
		})

		Convey("An encoded bit other than 0 or 1 should be rejected", func() {
			_, err := device.Execute(context.Background(), 3, 2)
			So(errors.Is(err, ErrInvalidBit), ShouldBeTrue)
			So(backend.Calls(), ShouldEqual, 0)
		})
	})

	Convey("Given an unreachable backend behind a circuit breaker", t, func() {
		metrics := NewMetrics(nil)
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){unreachable()}}
		device := NewDevice(backend, Dense{}, 8,
			fastRetry(5),
			WithCircuitBreaker(2, time.Hour, 1),
			WithMetrics(metrics),
		)

		_, err := device.Execute(context.Background(), 0, 2)

		Convey("The breaker should stop submissions once open", func() {
			So(errors.Is(err, ErrRetriesExhausted), ShouldBeTrue)
			So(errors.Is(err, ErrCircuitOpen), ShouldBeTrue)
			So(backend.Calls(), ShouldEqual, 2)
			So(metrics.RejectedJobs, ShouldEqual, 3)
			So(metrics.FailedJobs, ShouldEqual, 2)
			So(metrics.BreakerOpenings, ShouldEqual, 1)
		})
	})

	Convey("Given a cancelled context", t, func() {
		backend := &scriptedBackend{script: []func(CircuitSpec, int) (*Result, error){errored()}}
		device := NewDevice(backend, Dense{}, 8,
			WithRetry(5, &ExponentialBackoff{Initial: time.Hour}),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := device.Execute(ctx, 0, 2)

		Convey("It should stop waiting for the next attempt", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(backend.Calls(), ShouldEqual, 1)
		})
	})
}

func TestResultComplete(t *testing.T) {
	Convey("Given backend results", t, func() {
		So((&Result{Status: JobCompleted, Counts: Counts{"01": 4}, Shots: 4}).Complete(2), ShouldBeNil)

		incomplete := map[string]*Result{
			"nil":          nil,
			"queued":       {Status: JobQueued, Counts: Counts{"01": 4}, Shots: 4},
			"no counts":    {Status: JobCompleted, Shots: 4},
			"wrong width":  {Status: JobCompleted, Counts: Counts{"011": 4}, Shots: 4},
			"missing shot": {Status: JobCompleted, Counts: Counts{"01": 3}, Shots: 4},
		}
		for name, r := range incomplete {
			Convey("It should flag "+name, func() {
				So(errors.Is(r.Complete(2), ErrIncomplete), ShouldBeTrue)
			})
		}
	})
}

func TestRetryable(t *testing.T) {
	Convey("Given errors from an execution", t, func() {
		So(Retryable(ErrIncomplete), ShouldBeTrue)
		So(Retryable(ErrCircuitOpen), ShouldBeTrue)
		So(Retryable(ErrDataIntegrity), ShouldBeFalse)
		So(Retryable(context.Canceled), ShouldBeFalse)
		So(Retryable(nil), ShouldBeFalse)
	})
}

func TestExponentialBackoff(t *testing.T) {
	Convey("Given an exponential backoff", t, func() {
		eb := &ExponentialBackoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond}

		So(eb.NextDelay(1), ShouldEqual, 10*time.Millisecond)
		So(eb.NextDelay(2), ShouldEqual, 20*time.Millisecond)
		So(eb.NextDelay(3), ShouldEqual, 40*time.Millisecond)
		So(eb.NextDelay(4), ShouldEqual, 50*time.Millisecond)
	})
}
