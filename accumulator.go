package qrep

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Statistic summarises the per-trial error estimates of one (view, bit) cell.
type Statistic struct {
	Mean     float64
	Variance float64
	Min      float64
	Max      float64
}

// StdDev is the square root of the variance.
func (s Statistic) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// Stats holds a finalized Statistic per view and encoded bit.
type Stats map[View][2]Statistic

type cell struct {
	sum     float64
	sumSq   float64
	samples []float64
}

/*
Accumulator keeps the running first and second moments of the error estimate
for every (view, bit) pair of a single code distance. It is not safe for
concurrent use; one trial is folded in at a time.
*/
type Accumulator struct {
	cells map[View]*[2]cell
}

func NewAccumulator() *Accumulator {
	acc := &Accumulator{cells: make(map[View]*[2]cell, len(AllViews))}
	for _, v := range AllViews {
		acc.cells[v] = &[2]cell{}
	}
	return acc
}

// Add folds one trial's error estimate into the (view, bit) cell.
func (acc *Accumulator) Add(v View, bit int, e float64) error {
	if err := validateBit(bit); err != nil {
		return err
	}

	c, ok := acc.cells[v]
	if !ok {
		c = &[2]cell{}
		acc.cells[v] = c
	}

	c[bit].sum += e
	c[bit].sumSq += e * e
	c[bit].samples = append(c[bit].samples, e)
	return nil
}

// Samples returns a copy of the raw per-trial estimates of a cell.
func (acc *Accumulator) Samples(v View, bit int) []float64 {
	c, ok := acc.cells[v]
	if !ok || validateBit(bit) != nil {
		return nil
	}
	return append([]float64(nil), c[bit].samples...)
}

/*
Finalize divides the running sums by the number of trials and derives the
population variance as E[X²] − E[X]². Float cancellation can push a zero
variance slightly negative, so it is clamped at 0.
*/
func (acc *Accumulator) Finalize(trials int) Stats {
	out := make(Stats, len(acc.cells))
	if trials <= 0 {
		return out
	}

	n := float64(trials)
	for v, c := range acc.cells {
		var pair [2]Statistic
		for bit := 0; bit < 2; bit++ {
			mean := c[bit].sum / n
			variance := c[bit].sumSq/n - mean*mean
			if variance < 0 {
				variance = 0
			}

			pair[bit] = Statistic{Mean: mean, Variance: variance}

			if len(c[bit].samples) > 0 {
				pair[bit].Min, _ = stats.Min(c[bit].samples)
				pair[bit].Max, _ = stats.Max(c[bit].samples)
			}
		}
		out[v] = pair
	}
	return out
}
