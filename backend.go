package qrep

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrIncomplete       = errors.New("backend result is incomplete")
	ErrRetriesExhausted = errors.New("backend retries exhausted")
)

// JobStatus is the state a backend reports for a submitted circuit.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobError     JobStatus = "ERROR"
)

// CircuitSpec describes the repetition-code experiment to execute.
type CircuitSpec struct {
	EncodedBit int
	Distance   int
	Layout     Layout
}

// Width is the raw outcome length the circuit produces.
func (c CircuitSpec) Width() int {
	return c.Layout.Width(c.Distance)
}

/*
Backend executes a circuit for a number of shots and reports the observed
counts. A real device sits behind a remote job queue; the Simulator stands in
for it locally.
*/
type Backend interface {
	Name() string
	Run(ctx context.Context, spec CircuitSpec, shots int) (*Result, error)
}

// Result is what a backend hands back for one job.
type Result struct {
	JobID  string
	Status JobStatus
	Counts Counts
	Shots  int
}

/*
Complete reports whether the result can be trusted as a full sample: the job
must have completed, and the counts must cover exactly the requested shots
with keys of the expected width.
*/
func (r *Result) Complete(width int) error {
	if r == nil {
		return fmt.Errorf("%w: no result", ErrIncomplete)
	}

	if r.Status != JobCompleted {
		return fmt.Errorf("%w: job %s status %s", ErrIncomplete, r.JobID, r.Status)
	}

	if r.Shots <= 0 || len(r.Counts) == 0 {
		return fmt.Errorf("%w: job %s returned no counts", ErrIncomplete, r.JobID)
	}

	for k := range r.Counts {
		if len(k) != width {
			return fmt.Errorf("%w: job %s key %q has width %d, want %d", ErrIncomplete, r.JobID, k, len(k), width)
		}
	}

	if total := r.Counts.Total(); total != r.Shots {
		return fmt.Errorf("%w: job %s counted %d of %d shots", ErrIncomplete, r.JobID, total, r.Shots)
	}

	return nil
}

// Runner produces a complete, normalized raw distribution for one encoded bit.
type Runner interface {
	Execute(ctx context.Context, encodedBit, d int) (Distribution, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, encodedBit, d int) (Distribution, error)

func (f RunnerFunc) Execute(ctx context.Context, encodedBit, d int) (Distribution, error) {
	return f(ctx, encodedBit, d)
}
