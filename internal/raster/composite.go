package raster

import (
	"slices"
	"time"
)

// Reducer collapses the valid observations of one pixel into a single value.
type Reducer int

const (
	Mean Reducer = iota
	Median
)

func (r Reducer) String() string {
	switch r {
	case Mean:
		return "mean"
	case Median:
		return "median"
	}
	return "unknown"
}

// Composite reduces the observations in [start, end) to their per-pixel mean
// and clips the result to region.
func Composite(ts TimeSeries, start, end time.Time, region *Region) (*Raster, error) {
	return CompositeWith(ts, start, end, region, Mean)
}

// CompositeWith reduces the observations in [start, end) with reducer, ignoring
// invalid observations. A pixel is valid iff at least one observation was valid there.
// An empty window yields an all-invalid raster on the series grid.
func CompositeWith(ts TimeSeries, start, end time.Time, region *Region, reducer Reducer) (*Raster, error) {
	window := ts.Between(start, end)

	var out *Raster
	switch {
	case window.Len() == 0:
		out = Empty(ts.Grid())
	case reducer == Median:
		out = reduceMedian(window)
	default:
		out = reduceMean(window)
	}
	if region == nil {
		return out, nil
	}
	return Clip(out, region)
}

func reduceMean(ts TimeSeries) *Raster {
	g := ts.Grid()
	sum := make([]float64, g.Len())
	count := make([]int, g.Len())
	for _, o := range ts.obs {
		for i, v := range o.Raster.Data {
			if o.Raster.Valid[i] {
				sum[i] += v
				count[i]++
			}
		}
	}

	out := Empty(g)
	for i := range sum {
		if count[i] > 0 {
			out.set(i, sum[i]/float64(count[i]))
		}
	}
	return out
}

func reduceMedian(ts TimeSeries) *Raster {
	g := ts.Grid()
	out := Empty(g)
	values := make([]float64, 0, ts.Len())
	for i := 0; i < g.Len(); i++ {
		values = values[:0]
		for _, o := range ts.obs {
			if o.Raster.Valid[i] {
				values = append(values, o.Raster.Data[i])
			}
		}
		if len(values) == 0 {
			continue
		}
		slices.Sort(values)
		mid := len(values) / 2
		if len(values)%2 == 1 {
			out.set(i, values[mid])
		} else {
			out.set(i, (values[mid-1]+values[mid])/2)
		}
	}
	return out
}
