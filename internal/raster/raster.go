package raster

import (
	"fmt"
	"math"
)

// Raster is a single band of float samples on a Grid with a per-pixel validity mask.
// Data at an invalid pixel is meaningless and must not be read as a measurement.
type Raster struct {
	Grid  Grid
	Data  []float64
	Valid []bool
}

// Empty returns an all-invalid raster on g.
func Empty(g Grid) *Raster {
	return &Raster{
		Grid:  g,
		Data:  make([]float64, g.Len()),
		Valid: make([]bool, g.Len()),
	}
}

// Full returns a raster on g with every pixel valid and equal to v.
func Full(g Grid, v float64) *Raster {
	r := Empty(g)
	for i := range r.Data {
		r.set(i, v)
	}
	return r
}

// FromValues wraps data as a raster on g. Non-finite samples are marked invalid.
func FromValues(g Grid, data []float64) (*Raster, error) {
	if len(data) != g.Len() {
		return nil, fmt.Errorf("%d samples for %s: %w", len(data), g, ErrShape)
	}
	r := Empty(g)
	for i, v := range data {
		r.set(i, v)
	}
	return r, nil
}

// FromMasked wraps data and an explicit validity slice as a raster on g.
// Non-finite samples are marked invalid regardless of the mask.
func FromMasked(g Grid, data []float64, valid []bool) (*Raster, error) {
	if len(data) != g.Len() || len(valid) != g.Len() {
		return nil, fmt.Errorf("%d samples, %d flags for %s: %w", len(data), len(valid), g, ErrShape)
	}
	r := Empty(g)
	for i, v := range data {
		if valid[i] {
			r.set(i, v)
		}
	}
	return r, nil
}

// At returns the sample at (col, row) and whether it is valid.
func (r *Raster) At(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Grid.Width || row >= r.Grid.Height {
		return 0, false
	}
	i := r.Grid.Index(col, row)
	return r.Data[i], r.Valid[i]
}

// ValidCount returns the number of valid pixels.
func (r *Raster) ValidCount() int {
	n := 0
	for _, ok := range r.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{
		Grid:  r.Grid,
		Data:  make([]float64, len(r.Data)),
		Valid: make([]bool, len(r.Valid)),
	}
	copy(out.Data, r.Data)
	copy(out.Valid, r.Valid)
	return out
}

// Mask returns a copy of the raster's validity mask.
func (r *Raster) Mask() Mask {
	m := Mask{Grid: r.Grid, Valid: make([]bool, len(r.Valid))}
	copy(m.Valid, r.Valid)
	return m
}

// Range returns the minimum and maximum valid sample. ok is false when no pixel is valid.
func (r *Raster) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i, v := range r.Data {
		if !r.Valid[i] {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// set stores v and marks the pixel valid only when v is finite.
func (r *Raster) set(i int, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.Data[i] = 0
		r.Valid[i] = false
		return
	}
	r.Data[i] = v
	r.Valid[i] = true
}
