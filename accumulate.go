package qrep

import "fmt"

// View selects one of the three derived distributions.
type View int

const (
	ViewFull View = iota
	ViewCode
	ViewSingle
)

// AllViews lists the views in reporting order.
var AllViews = []View{ViewFull, ViewCode, ViewSingle}

func (v View) String() string {
	switch v {
	case ViewFull:
		return "full"
	case ViewCode:
		return "code"
	case ViewSingle:
		return "single"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// Views holds one distribution per view, all derived from the same raw run.
type Views struct {
	Full   Distribution
	Code   Distribution
	Single Distribution
}

// Get returns the distribution for v.
func (vs Views) Get(v View) Distribution {
	switch v {
	case ViewFull:
		return vs.Full
	case ViewCode:
		return vs.Code
	case ViewSingle:
		return vs.Single
	default:
		return nil
	}
}

// PairOf lines up the same view of the bit-0 and bit-1 runs.
func PairOf(v View, views [2]Views) Pair {
	return Pair{views[0].Get(v), views[1].Get(v)}
}

/*
Accumulate folds a raw distribution into the three view distributions. Raw
outcomes that remap to the same derived string have their probabilities
summed. The input is never modified and each call returns fresh maps, so the
mass of every view equals the mass of the input.
*/
func Accumulate(raw Distribution, remap RemapFunc) (Views, error) {
	views := Views{
		Full:   make(Distribution),
		Code:   make(Distribution),
		Single: make(Distribution),
	}

	for s, p := range raw {
		out, err := remap(s)
		if err != nil {
			return Views{}, err
		}

		views.Full[out.Full] += p
		views.Code[out.Code] += p
		views.Single[out.Single] += p
	}

	return views, nil
}
