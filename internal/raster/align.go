package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// DefaultMaxPixels caps the number of fine pixels aggregated into one output cell.
const DefaultMaxPixels = 1024

// snapTolerance absorbs projection round-off when a cell edge lands on a fine pixel edge.
const snapTolerance = 1e-7

// Aligner resamples fine rasters onto coarser grids by area-weighted averaging.
type Aligner struct {
	MaxPixels int
}

// NewAligner returns an Aligner with the given per-cell cap, or DefaultMaxPixels when maxPixels <= 0.
func NewAligner(maxPixels int) Aligner {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return Aligner{MaxPixels: maxPixels}
}

// AlignTo resamples fine into crs at scale on a grid snapped to multiples of scale
// that covers the fine raster's extent.
func (a Aligner) AlignTo(fine *Raster, crs string, scale float64) (*Raster, error) {
	target, err := coveringGrid(fine.Grid, crs, scale)
	if err != nil {
		return nil, err
	}
	return a.Align(fine, target)
}

// Align resamples fine onto target. Each target cell takes the mean of the valid fine
// pixels it covers, each weighted by the area of the pixel lying inside the cell. The cell
// outline is projected into the fine grid, so sheared or curved cells are weighted by
// their true overlap. Cells with no valid contributor, or overlapping more than MaxPixels
// fine pixels, are invalid.
func (a Aligner) Align(fine *Raster, target Grid) (*Raster, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("align target: %w", err)
	}
	maxPixels := a.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	src := fine.Grid
	out := Empty(target)
	for row := 0; row < target.Height; row++ {
		for col := 0; col < target.Width; col++ {
			cell, err := cellOutline(target, src, col, row)
			if err != nil {
				return nil, err
			}
			b := cell.Bound()
			colLo, colHi := clampIndex(b.Min[0], src.Width), clampIndex(math.Ceil(b.Max[0]), src.Width)
			rowLo, rowHi := clampIndex(b.Min[1], src.Height), clampIndex(math.Ceil(b.Max[1]), src.Height)

			var sum, weight float64
			contributors := 0
			for fr := rowLo; fr < rowHi; fr++ {
				for fc := colLo; fc < colHi; fc++ {
					w := pixelOverlap(cell, fc, fr)
					if w <= minOverlap {
						continue
					}
					if contributors++; contributors > maxPixels {
						break
					}
					i := src.Index(fc, fr)
					if !fine.Valid[i] {
						continue
					}
					sum += w * fine.Data[i]
					weight += w
				}
				if contributors > maxPixels {
					break
				}
			}
			if contributors <= maxPixels && weight > 0 {
				out.set(target.Index(col, row), sum/weight)
			}
		}
	}
	return out, nil
}

// cellEdgeSteps is the number of segments each projected cell edge is split into.
const cellEdgeSteps = 8

// minOverlap ignores slivers left by projection round-off, in fine pixel areas.
const minOverlap = 1e-9

// cellOutline returns a target cell as a polygon in the fractional pixel coordinates of src.
// Edges are densified so curvature introduced by the projection is kept.
func cellOutline(target, src Grid, col, row int) (orb.Polygon, error) {
	x0 := target.OriginX + float64(col)*target.Scale
	y0 := target.OriginY - float64(row)*target.Scale
	x1, y1 := x0+target.Scale, y0-target.Scale
	corners := [5][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}

	ring := make(orb.Ring, 0, 4*cellEdgeSteps+1)
	for e := 0; e < 4; e++ {
		from, to := corners[e], corners[e+1]
		for s := 0; s < cellEdgeSteps; s++ {
			f := float64(s) / cellEdgeSteps
			x := from[0] + f*(to[0]-from[0])
			y := from[1] + f*(to[1]-from[1])
			sx, sy, err := Transform(target.CRS, src.CRS, x, y)
			if err != nil {
				return nil, err
			}
			pc, pr := src.ToPixel(sx, sy)
			ring = append(ring, orb.Point{snap(pc), snap(pr)})
		}
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

// pixelOverlap returns the area of fine pixel (col, row) inside cell, as a fraction of the pixel.
func pixelOverlap(cell orb.Polygon, col, row int) float64 {
	px := orb.Bound{Min: orb.Point{float64(col), float64(row)}, Max: orb.Point{float64(col + 1), float64(row + 1)}}
	if !cell.Bound().Intersects(px) {
		return 0
	}
	clipped := clip.Polygon(px, cell.Clone())
	if len(clipped) == 0 {
		return 0
	}
	return math.Abs(planar.Area(clipped))
}

func clampIndex(v float64, size int) int {
	return min(max(int(math.Floor(v)), 0), size)
}

func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < snapTolerance {
		return r
	}
	return v
}

// coveringGrid builds a grid in crs at scale that covers the extent of g.
func coveringGrid(g Grid, crs string, scale float64) (Grid, error) {
	if !(scale > 0) {
		return Grid{}, fmt.Errorf("align scale %v must be positive", scale)
	}
	b := g.Bounds()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{b.Min[0], b.Min[1]}, {b.Max[0], b.Max[1]}, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		x, y, err := Transform(g.CRS, crs, p[0], p[1])
		if err != nil {
			return Grid{}, err
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	originX := math.Floor(snap(minX/scale)) * scale
	originY := math.Ceil(snap(maxY/scale)) * scale
	width := int(math.Ceil(snap((maxX - originX) / scale)))
	height := int(math.Ceil(snap((originY - minY) / scale)))
	return NewGrid(crs, originX, originY, scale, max(width, 1), max(height, 1))
}
