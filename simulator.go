package qrep

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

/*
Simulator is a local Backend that reproduces the outcome statistics of a
repetition code under independent bit-flip noise. It does not simulate quantum
states: each shot draws the code qubits as the encoded bit flipped with
probability ErrorRate, reads every ancilla as the parity of its two neighbours
flipped with probability MeasurementError, and reads the comparison qubit as
the encoded bit flipped with probability ErrorRate.

FailureRate is the chance that a job comes back errored or short of shots, the
way a remote device occasionally does.

Every code distance draws from its own random stream derived from the seed, so
distances swept concurrently do not perturb each other's samples.
*/
type Simulator struct {
	mu      sync.Mutex
	seed    uint64
	streams map[int]*rand.Rand

	ErrorRate        float64
	MeasurementError float64
	FailureRate      float64
}

// NewSimulator creates a simulator seeded with seed.
func NewSimulator(seed uint64, errorRate, measurementError float64) *Simulator {
	return &Simulator{
		seed:             seed,
		streams:          make(map[int]*rand.Rand),
		ErrorRate:        errorRate,
		MeasurementError: measurementError,
	}
}

// stream returns the random source for distance d. The caller holds the mutex.
func (s *Simulator) stream(d int) *rand.Rand {
	rng, ok := s.streams[d]
	if !ok {
		rng = rand.New(rand.NewPCG(s.seed, uint64(d)*0x9e3779b97f4a7c15))
		s.streams[d] = rng
	}
	return rng
}

func (s *Simulator) Name() string {
	return "simulator"
}

/*
Run samples shots outcomes of the circuit. The returned counts are keyed by the
full register string, address 0 rightmost; addresses the layout leaves unused
read as 0.
*/
func (s *Simulator) Run(ctx context.Context, spec CircuitSpec, shots int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateBit(spec.EncodedBit); err != nil {
		return nil, err
	}
	if err := spec.Layout.Validate(spec.Distance); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rng := s.stream(spec.Distance)

	result := &Result{
		JobID:  uuid.NewString(),
		Status: JobCompleted,
		Counts: make(Counts),
		Shots:  shots,
	}

	failed := s.FailureRate > 0 && rng.Float64() < s.FailureRate
	if failed && rng.IntN(2) == 0 {
		result.Status = JobError
		result.Counts = nil
		return result, nil
	}

	sampled := shots
	if failed {
		// Job reports completion but lost part of its shots
		sampled = shots / 2
	}

	d := spec.Distance
	width := spec.Width()
	raw := make([]byte, width)
	code := make([]byte, d)

	for shot := 0; shot < sampled; shot++ {
		for i := range raw {
			raw[i] = '0'
		}

		for i := 0; i < d; i++ {
			code[i] = noisy(rng, spec.EncodedBit, s.ErrorRate)
		}

		for j := 0; j < 2*d-1; j++ {
			var c byte
			if j%2 == 0 {
				c = code[j/2]
			} else {
				parity := int(code[j/2]^code[j/2+1]) & 1
				c = noisy(rng, parity, s.MeasurementError)
			}
			raw[width-1-spec.Layout.Address(j)] = c
		}

		raw[width-1-spec.Layout.Address(SinglePosition(d))] = noisy(rng, spec.EncodedBit, s.ErrorRate)

		result.Counts[string(raw)]++
	}

	return result, nil
}

// noisy returns bit as a character, flipped with probability p.
func noisy(rng *rand.Rand, bit int, p float64) byte {
	if p > 0 && rng.Float64() < p {
		bit ^= 1
	}
	return byte('0' + bit)
}
