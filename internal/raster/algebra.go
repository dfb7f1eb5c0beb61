package raster

import "fmt"

// ScaleOffset returns v*scale + offset for every valid pixel.
func ScaleOffset(r *Raster, scale, offset float64) *Raster {
	return unary(r, func(v float64) (float64, bool) { return v*scale + offset, true })
}

// SubtractScalar returns v - s for every valid pixel.
func SubtractScalar(r *Raster, s float64) *Raster {
	return unary(r, func(v float64) (float64, bool) { return v - s, true })
}

// DivideScalar returns v / s for every valid pixel. A zero divisor invalidates the whole raster.
func DivideScalar(r *Raster, s float64) *Raster {
	if s == 0 {
		return Empty(r.Grid)
	}
	return unary(r, func(v float64) (float64, bool) { return v / s, true })
}

// Subtract returns a - b pixel-wise.
func Subtract(a, b *Raster) (*Raster, error) {
	return binary(a, b, func(x, y float64) (float64, bool) { return x - y, true })
}

// Divide returns a / b pixel-wise. Pixels with a zero denominator are invalid.
func Divide(a, b *Raster) (*Raster, error) {
	return binary(a, b, func(x, y float64) (float64, bool) {
		if y == 0 {
			return 0, false
		}
		return x / y, true
	})
}

// NormalizedDifference returns (nir - red) / (nir + red). Pixels where the sum is zero are invalid.
func NormalizedDifference(nir, red *Raster) (*Raster, error) {
	return binary(nir, red, func(n, r float64) (float64, bool) {
		sum := n + r
		if sum == 0 {
			return 0, false
		}
		return (n - r) / sum, true
	})
}

// ApplyMask invalidates every pixel where m is false.
func ApplyMask(r *Raster, m Mask) (*Raster, error) {
	if !r.Grid.Equal(m.Grid) {
		return nil, fmt.Errorf("apply mask %s to %s: %w", m.Grid, r.Grid, ErrGridMismatch)
	}
	out := r.Clone()
	for i, ok := range m.Valid {
		if !ok {
			out.Valid[i] = false
		}
	}
	return out, nil
}

// Clip restricts the valid pixels of r to those whose centers lie inside region.
// A nil region leaves the raster unchanged.
func Clip(r *Raster, region *Region) (*Raster, error) {
	if region == nil {
		return r.Clone(), nil
	}
	cover, err := region.Cover(r.Grid)
	if err != nil {
		return nil, fmt.Errorf("clip: %w", err)
	}
	return ApplyMask(r, cover)
}

func unary(r *Raster, f func(v float64) (float64, bool)) *Raster {
	out := Empty(r.Grid)
	for i, v := range r.Data {
		if !r.Valid[i] {
			continue
		}
		if res, ok := f(v); ok {
			out.set(i, res)
		}
	}
	return out
}

func binary(a, b *Raster, f func(x, y float64) (float64, bool)) (*Raster, error) {
	if !a.Grid.Equal(b.Grid) {
		return nil, fmt.Errorf("%s vs %s: %w", a.Grid, b.Grid, ErrGridMismatch)
	}
	out := Empty(a.Grid)
	for i := range a.Data {
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		if res, ok := f(a.Data[i], b.Data[i]); ok {
			out.set(i, res)
		}
	}
	return out, nil
}
