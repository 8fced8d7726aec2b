package qrep

/*
EstimateError returns the probability that a maximum-likelihood decoder
mislabels a run whose encoded bit was bit.

Only strings observed under the true hypothesis are considered. For each such
string the decoder picks whichever encoded bit makes it more likely:

  - the other bit is more likely: the whole mass of the string is an error
  - both are equally likely: the decoder flips a fair coin, half the mass is an error
  - the true bit is more likely: no error

Both encoded bits are assumed equally likely a priori.
*/
func EstimateError(bit int, pair Pair) (float64, error) {
	if err := validateBit(bit); err != nil {
		return 0, err
	}

	var errTotal float64
	for s, right := range pair[bit] {
		if right == 0 {
			continue
		}

		wrong := pair[1-bit][s]

		switch {
		case wrong > right:
			errTotal += right
		case wrong == right:
			errTotal += 0.5 * right
		}
	}

	return errTotal, nil
}

/*
Decode returns the label the decoder assigns to s. On a likelihood tie the
label is 0 and tie is true; the decoder itself would flip a coin there.
*/
func Decode(s string, pair Pair) (label int, tie bool) {
	p0, p1 := pair[0][s], pair[1][s]
	switch {
	case p1 > p0:
		return 1, false
	case p1 == p0:
		return 0, true
	default:
		return 0, false
	}
}
