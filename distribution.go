package qrep

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Epsilon is the tolerance used when checking that probabilities stay in [0,1].
const Epsilon = 1e-9

var (
	ErrInvalidDistance = errors.New("code distance must be at least 2")
	ErrInvalidBit      = errors.New("encoded bit must be 0 or 1")
	ErrDataIntegrity   = errors.New("distribution failed integrity check")
)

/*
Distribution maps an observed bit-string to its probability.
A string that has no entry is treated as having probability 0.
*/
type Distribution map[string]float64

// Pair holds P(string | encodedBit) for both encoded bit values.
type Pair [2]Distribution

// Counts maps an observed bit-string to how many shots produced it.
type Counts map[string]int

// Total sums the probability mass of the distribution.
func (d Distribution) Total() float64 {
	var total float64
	for _, p := range d {
		total += p
	}
	return total
}

// Keys returns the strings of the distribution in lexical order.
func (d Distribution) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

/*
Validate rejects distributions that could not have come from a well-formed
execution: probabilities must be finite and inside [0,1], and every key must be
a binary string of the given length. A length of 0 skips the length check.
*/
func (d Distribution) Validate(length int) error {
	for k, p := range d {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < -Epsilon || p > 1+Epsilon {
			return fmt.Errorf("%w: P(%q) = %v", ErrDataIntegrity, k, p)
		}
		if length > 0 && len(k) != length {
			return fmt.Errorf("%w: key %q has length %d, want %d", ErrDataIntegrity, k, len(k), length)
		}
		if !isBinary(k) {
			return fmt.Errorf("%w: key %q is not a bit-string", ErrDataIntegrity, k)
		}
	}
	return nil
}

// Normalize divides every count by shots.
func (c Counts) Normalize(shots int) (Distribution, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("cannot normalize counts over %d shots", shots)
	}

	dist := make(Distribution, len(c))
	for k, n := range c {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count %d for %q", ErrDataIntegrity, n, k)
		}
		dist[k] = float64(n) / float64(shots)
	}
	return dist, nil
}

// Total sums all counts.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// ValidateDistance rejects code distances that have no ancilla qubits.
func ValidateDistance(d int) error {
	if d < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidDistance, d)
	}
	return nil
}

func validateBit(bit int) error {
	if bit != 0 && bit != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidBit, bit)
	}
	return nil
}

func isBinary(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}
