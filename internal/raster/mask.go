package raster

import "fmt"

// Mask is a boolean raster; true marks a usable pixel.
type Mask struct {
	Grid  Grid
	Valid []bool
}

// NewMask returns a mask on g with every pixel set to v.
func NewMask(g Grid, v bool) Mask {
	m := Mask{Grid: g, Valid: make([]bool, g.Len())}
	if v {
		for i := range m.Valid {
			m.Valid[i] = true
		}
	}
	return m
}

// Count returns the number of true pixels.
func (m Mask) Count() int {
	n := 0
	for _, ok := range m.Valid {
		if ok {
			n++
		}
	}
	return n
}

func (m Mask) copy() Mask {
	out := Mask{Grid: m.Grid, Valid: make([]bool, len(m.Valid))}
	copy(out.Valid, m.Valid)
	return out
}

// And combines masks pixel-wise; a pixel is true only where every mask is true.
func And(first Mask, rest ...Mask) (Mask, error) {
	return combine(first, rest, func(a, b bool) bool { return a && b })
}

// Or combines masks pixel-wise; a pixel is true where any mask is true.
func Or(first Mask, rest ...Mask) (Mask, error) {
	return combine(first, rest, func(a, b bool) bool { return a || b })
}

// Not inverts a mask.
func Not(m Mask) Mask {
	out := Mask{Grid: m.Grid, Valid: make([]bool, len(m.Valid))}
	for i, ok := range m.Valid {
		out.Valid[i] = !ok
	}
	return out
}

func combine(first Mask, rest []Mask, op func(a, b bool) bool) (Mask, error) {
	out := first.copy()
	for _, m := range rest {
		if !m.Grid.Equal(first.Grid) {
			return Mask{}, fmt.Errorf("combine masks %s and %s: %w", first.Grid, m.Grid, ErrGridMismatch)
		}
		for i := range out.Valid {
			out.Valid[i] = op(out.Valid[i], m.Valid[i])
		}
	}
	return out, nil
}
