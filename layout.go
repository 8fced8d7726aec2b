package qrep

import "fmt"

/*
Layout assigns a physical register address to every logical position of a
repetition code of distance d.

Logical positions 0..2d-2 run left to right along the code, alternating code
and ancilla qubits (even positions are code qubits, odd positions ancillas).
Position 2d-1 is the standalone comparison qubit that carries the encoded bit
without any protection.
*/
type Layout interface {
	// Address returns the register address of a logical position.
	Address(position int) int

	// Width is the length of the raw bit-string the device returns for d.
	Width(d int) int

	// Validate reports whether the layout can host a code of distance d.
	Validate(d int) error
}

// SinglePosition is the logical position of the comparison qubit for d.
func SinglePosition(d int) int {
	return 2*d - 1
}

// Dense packs the code onto addresses 0..2d-1.
type Dense struct{}

func (Dense) Address(position int) int { return position }

func (Dense) Width(d int) int { return 2 * d }

func (Dense) Validate(d int) error {
	return ValidateDistance(d)
}

/*
Modular lays the code out on a fixed-size register, walking it with a constant
stride from an offset and wrapping round the end of the register. A stride that
is coprime to the register size visits every address exactly once before
repeating, which keeps the mapping from logical position to address one to one.
*/
type Modular struct {
	Register int
	Offset   int
	Stride   int
}

// DefaultModular is the 16-qubit ring starting at address 1.
func DefaultModular() Modular {
	return Modular{Register: 16, Offset: 1, Stride: 1}
}

func (m Modular) Address(position int) int {
	a := (m.Offset + m.Stride*position) % m.Register
	if a < 0 {
		a += m.Register
	}
	return a
}

func (m Modular) Width(int) int { return m.Register }

func (m Modular) Validate(d int) error {
	if err := ValidateDistance(d); err != nil {
		return err
	}
	if m.Register <= 0 {
		return fmt.Errorf("modular layout needs a positive register size, got %d", m.Register)
	}
	if gcd(m.Stride, m.Register) != 1 {
		return fmt.Errorf("stride %d is not coprime to register size %d", m.Stride, m.Register)
	}
	if 2*d > m.Register {
		return fmt.Errorf("distance %d needs %d qubits, register has %d", d, 2*d, m.Register)
	}
	return nil
}

// ParseLayout resolves a layout by name.
func ParseLayout(name string, register, offset, stride int) (Layout, error) {
	switch name {
	case "", "dense":
		return Dense{}, nil
	case "modular":
		return Modular{Register: register, Offset: offset, Stride: stride}, nil
	default:
		return nil, fmt.Errorf("unknown layout %q", name)
	}
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
