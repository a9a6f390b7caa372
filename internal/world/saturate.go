package world

import "golang.org/x/exp/constraints"

// SatAdd adds two unsigned values, clamping at the type's maximum.
func SatAdd[T constraints.Unsigned](a, b T) T {
	s := a + b
	if s < a {
		return ^T(0)
	}
	return s
}

// SatSub subtracts b from a, clamping at zero.
func SatSub[T constraints.Unsigned](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}
