package raster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrEmptyRegion is returned when a region geometry holds no polygon area.
var ErrEmptyRegion = errors.New("region has no polygons")

// Region is an immutable analysis extent in geographic coordinates (lon/lat degrees).
// Pixel coverage is cached per grid, so a Region is safe to share between goroutines.
type Region struct {
	polygons orb.MultiPolygon
	bound    orb.Bound

	mu     sync.Mutex
	covers map[Grid]Mask
}

// NewRegion builds a Region from a polygon, multipolygon, or a collection of them.
func NewRegion(g orb.Geometry) (*Region, error) {
	var mp orb.MultiPolygon
	if err := collectPolygons(g, &mp); err != nil {
		return nil, err
	}
	if len(mp) == 0 {
		return nil, ErrEmptyRegion
	}
	return &Region{
		polygons: mp,
		bound:    mp.Bound(),
		covers:   make(map[Grid]Mask),
	}, nil
}

func collectPolygons(g orb.Geometry, out *orb.MultiPolygon) error {
	switch v := g.(type) {
	case orb.Polygon:
		*out = append(*out, v)
	case orb.MultiPolygon:
		*out = append(*out, v...)
	case orb.Bound:
		*out = append(*out, v.ToPolygon())
	case orb.Collection:
		for _, child := range v {
			if err := collectPolygons(child, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("region geometry %T is not areal", g)
	}
	return nil
}

// Bound returns the region's lon/lat bounding box.
func (r *Region) Bound() orb.Bound {
	return r.bound
}

// Geometry returns the region polygons.
func (r *Region) Geometry() orb.MultiPolygon {
	return r.polygons.Clone()
}

// Contains reports whether a lon/lat point falls inside the region.
func (r *Region) Contains(lon, lat float64) bool {
	p := orb.Point{lon, lat}
	if !r.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(r.polygons, p)
}

// Cover returns the mask of pixels on g whose centers lie inside the region.
func (r *Region) Cover(g Grid) (Mask, error) {
	r.mu.Lock()
	cached, ok := r.covers[g]
	r.mu.Unlock()
	if ok {
		return cached.copy(), nil
	}

	m := NewMask(g, false)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			x, y := g.PixelCenter(col, row)
			lon, lat, err := ToLonLat(g.CRS, x, y)
			if err != nil {
				return Mask{}, err
			}
			m.Valid[g.Index(col, row)] = r.Contains(lon, lat)
		}
	}

	r.mu.Lock()
	r.covers[g] = m
	r.mu.Unlock()
	return m.copy(), nil
}

// LonLatBound returns the geographic extent of g.
func (g Grid) LonLatBound() (orb.Bound, error) {
	return lonLatBound(g)
}

// lonLatBound projects the corners and edge midpoints of g to lon/lat.
func lonLatBound(g Grid) (orb.Bound, error) {
	b := g.Bounds()
	midX := (b.Min[0] + b.Max[0]) / 2
	midY := (b.Min[1] + b.Max[1]) / 2
	pts := []orb.Point{
		b.Min, b.Max,
		{b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]},
		{midX, b.Min[1]}, {midX, b.Max[1]},
		{b.Min[0], midY}, {b.Max[0], midY},
	}
	var out orb.Bound
	for i, p := range pts {
		lon, lat, err := ToLonLat(g.CRS, p[0], p[1])
		if err != nil {
			return orb.Bound{}, err
		}
		if i == 0 {
			out = orb.Point{lon, lat}.Bound()
			continue
		}
		out = out.Extend(orb.Point{lon, lat})
	}
	return out, nil
}
