// Package stats computes region-level reductions over masked rasters.
//
// Every reduction is evaluated on the pixels that are valid in all input bands and
// whose centers fall inside the region. A reduction with too few such pixels returns a
// result with Valid=false rather than an error; errors are reserved for caller contract
// violations such as comparing rasters sampled at different scales.
package stats

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// ErrScaleMismatch is returned when the requested sampling scale is finer than the raster grid.
var ErrScaleMismatch = errors.New("sampling scale finer than raster grid")

// Scalar is a single reduced value.
type Scalar struct {
	Value float64
	N     int
	Valid bool
}

// Correlation is a Pearson correlation coefficient.
type Correlation struct {
	R     float64
	N     int
	Valid bool
}

// R2 returns the coefficient of determination of a simple linear model.
func (c Correlation) R2() float64 {
	return c.R * c.R
}

// Fit is an ordinary least squares fit y = Slope*x + Intercept.
type Fit struct {
	Slope     float64
	Intercept float64
	N         int
	Valid     bool
}

// Pair is one jointly valid (x, y) pixel sample.
type Pair struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// aligner aggregates rasters sampled at a scale coarser than their native grid.
var aligner = raster.NewAligner(raster.DefaultMaxPixels)

// Mean averages the valid pixels of r inside region, sampled at scale.
func Mean(r *raster.Raster, region *raster.Region, scale float64) (Scalar, error) {
	sampled, err := sampleAt(r, region, scale)
	if err != nil {
		return Scalar{}, err
	}

	values := make([]float64, 0, sampled.ValidCount())
	for i, v := range sampled.Data {
		if sampled.Valid[i] {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Scalar{}, nil
	}
	return Scalar{Value: stat.Mean(values, nil), N: len(values), Valid: true}, nil
}

// PearsonCorrelation correlates a and b over their jointly valid pixels inside region.
// It needs at least two pixels and non-zero variance in both bands.
func PearsonCorrelation(a, b *raster.Raster, region *raster.Region, scale float64) (Correlation, error) {
	x, y, err := jointSamples(a, b, region, scale)
	if err != nil {
		return Correlation{}, err
	}
	if len(x) < 2 {
		return Correlation{N: len(x)}, nil
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return Correlation{N: len(x)}, nil
	}
	return Correlation{R: math.Max(-1, math.Min(1, r)), N: len(x), Valid: true}, nil
}

// LinearFit regresses y on x by ordinary least squares over their jointly valid pixels
// inside region. It needs at least two pixels and non-zero variance in x.
func LinearFit(x, y *raster.Raster, region *raster.Region, scale float64) (Fit, error) {
	xs, ys, err := jointSamples(x, y, region, scale)
	if err != nil {
		return Fit{}, err
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return Fit{N: len(xs)}, nil
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return Fit{N: len(xs)}, nil
	}
	return Fit{Slope: slope, Intercept: intercept, N: len(xs), Valid: true}, nil
}

// ScatterSample draws up to n jointly valid (x, y) pixel pairs uniformly at random.
// When fewer than n pixels are eligible, all of them are returned in pixel order.
func ScatterSample(x, y *raster.Raster, region *raster.Region, scale float64, n int, rng *rand.Rand) ([]Pair, error) {
	xs, ys, err := jointSamples(x, y, region, scale)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	if len(idx) > n {
		for i := 0; i < n; i++ {
			j := i + rng.IntN(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		idx = idx[:n]
		slices.Sort(idx)
	}

	pairs := make([]Pair, len(idx))
	for k, i := range idx {
		pairs[k] = Pair{X: xs[i], Y: ys[i]}
	}
	return pairs, nil
}

// jointSamples returns the values of a and b at pixels valid in both and inside region.
func jointSamples(a, b *raster.Raster, region *raster.Region, scale float64) ([]float64, []float64, error) {
	if !a.Grid.Equal(b.Grid) {
		return nil, nil, fmt.Errorf("compare %s with %s: %w", a.Grid, b.Grid, raster.ErrGridMismatch)
	}
	sa, err := sampleAt(a, region, scale)
	if err != nil {
		return nil, nil, err
	}
	sb, err := sampleAt(b, region, scale)
	if err != nil {
		return nil, nil, err
	}

	var xs, ys []float64
	for i := range sa.Data {
		if sa.Valid[i] && sb.Valid[i] {
			xs = append(xs, sa.Data[i])
			ys = append(ys, sb.Data[i])
		}
	}
	return xs, ys, nil
}

// sampleAt puts r on a grid of the requested scale and restricts it to region.
// Coarser scales aggregate by area-weighted mean; finer scales are rejected.
func sampleAt(r *raster.Raster, region *raster.Region, scale float64) (*raster.Raster, error) {
	sampled := r
	switch {
	case r.Grid.SameScale(scale):
	case scale > r.Grid.Scale:
		var err error
		sampled, err = aligner.AlignTo(r, r.Grid.CRS, scale)
		if err != nil {
			return nil, fmt.Errorf("sample at scale %g: %w", scale, err)
		}
	default:
		return nil, fmt.Errorf("scale %g on %s: %w", scale, r.Grid, ErrScaleMismatch)
	}
	return raster.Clip(sampled, region)
}
