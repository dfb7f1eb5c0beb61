package raster

import (
	"fmt"
	"slices"
	"time"
)

// Scene is one acquisition of a sensor: named bands captured at a single time.
type Scene struct {
	ID     string
	Sensor string
	Time   time.Time
	Bands  map[string]*Raster
}

// Band returns the named band or an error if the scene lacks it.
func (s Scene) Band(name string) (*Raster, error) {
	r, ok := s.Bands[name]
	if !ok || r == nil {
		return nil, fmt.Errorf("scene %s has no band %q", s.ID, name)
	}
	return r, nil
}

// Observation is a single-band raster stamped with its acquisition time.
type Observation struct {
	Time   time.Time
	Raster *Raster
}

// TimeSeries is an immutable, time-ordered set of observations sharing one grid.
type TimeSeries struct {
	grid Grid
	obs  []Observation
}

// NewTimeSeries validates that every observation lies on g and orders them by time.
func NewTimeSeries(g Grid, obs []Observation) (TimeSeries, error) {
	sorted := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Raster == nil {
			return TimeSeries{}, fmt.Errorf("observation at %s has no raster", o.Time.Format(time.DateOnly))
		}
		if !o.Raster.Grid.Equal(g) {
			return TimeSeries{}, fmt.Errorf("observation at %s: %w", o.Time.Format(time.DateOnly), ErrGridMismatch)
		}
		sorted = append(sorted, o)
	}
	slices.SortStableFunc(sorted, func(a, b Observation) int { return a.Time.Compare(b.Time) })
	return TimeSeries{grid: g, obs: sorted}, nil
}

// Grid returns the grid shared by every observation.
func (ts TimeSeries) Grid() Grid { return ts.grid }

// Len returns the number of observations.
func (ts TimeSeries) Len() int { return len(ts.obs) }

// Observations returns a copy of the ordered observations.
func (ts TimeSeries) Observations() []Observation {
	return slices.Clone(ts.obs)
}

// Between returns the observations with timestamps in [start, end).
func (ts TimeSeries) Between(start, end time.Time) TimeSeries {
	lo, _ := slices.BinarySearchFunc(ts.obs, start, func(o Observation, t time.Time) int { return o.Time.Compare(t) })
	hi, _ := slices.BinarySearchFunc(ts.obs, end, func(o Observation, t time.Time) int { return o.Time.Compare(t) })
	if hi < lo {
		hi = lo
	}
	return TimeSeries{grid: ts.grid, obs: ts.obs[lo:hi:hi]}
}

// Merge combines two series on the same grid.
func (ts TimeSeries) Merge(other TimeSeries) (TimeSeries, error) {
	if ts.Len() == 0 {
		return other, nil
	}
	if other.Len() == 0 {
		return ts, nil
	}
	return NewTimeSeries(ts.grid, append(slices.Clone(ts.obs), other.obs...))
}
