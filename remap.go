package qrep

import (
	"fmt"
	"strings"
)

/*
Outcome is one raw measurement seen through the three views the decoder works
with.

  - Full: code and ancilla qubits interleaved in logical order, 2d-1 characters
  - Code: the code qubits of Full only, d characters
  - Single: the comparison qubit, one character
*/
type Outcome struct {
	Full   string
	Code   string
	Single string
}

// RemapFunc turns a raw register string into its Outcome.
type RemapFunc func(raw string) (Outcome, error)

/*
Remap reads a raw register string through a layout. The raw string is indexed
by address from the right, so address 0 is the last character.
*/
func Remap(raw string, d int, layout Layout) (Outcome, error) {
	if err := layout.Validate(d); err != nil {
		return Outcome{}, err
	}

	if width := layout.Width(d); len(raw) != width {
		return Outcome{}, fmt.Errorf("raw outcome %q has length %d, layout expects %d", raw, len(raw), width)
	}

	if !isBinary(raw) {
		return Outcome{}, fmt.Errorf("raw outcome %q is not a bit-string", raw)
	}

	at := func(position int) byte {
		return raw[len(raw)-1-layout.Address(position)]
	}

	var full, code strings.Builder
	full.Grow(2*d - 1)
	code.Grow(d)

	for j := 0; j < 2*d-1; j++ {
		c := at(j)
		full.WriteByte(c)
		if j%2 == 0 {
			code.WriteByte(c)
		}
	}

	return Outcome{
		Full:   full.String(),
		Code:   code.String(),
		Single: string(at(SinglePosition(d))),
	}, nil
}

// Remapper binds d and a layout into a RemapFunc.
func Remapper(d int, layout Layout) RemapFunc {
	return func(raw string) (Outcome, error) {
		return Remap(raw, d, layout)
	}
}
