package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrGridMismatch is returned when two rasters combined pixel-by-pixel do not share a grid.
	ErrGridMismatch = errors.New("raster grids do not match")

	// ErrShape is returned when a data or mask slice does not match its grid size.
	ErrShape = errors.New("raster data does not match grid shape")
)

// gridTolerance bounds the relative difference at which two grid coordinates are considered equal.
const gridTolerance = 1e-9

// Grid places a rectangular array of square pixels in a coordinate reference system.
// The origin is the outer upper-left corner; rows grow southward.
type Grid struct {
	CRS     string
	OriginX float64
	OriginY float64
	Scale   float64 // pixel edge length in CRS units
	Width   int
	Height  int
}

// NewGrid validates and returns a Grid.
func NewGrid(crs string, originX, originY, scale float64, width, height int) (Grid, error) {
	g := Grid{CRS: crs, OriginX: originX, OriginY: originY, Scale: scale, Width: width, Height: height}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate reports whether the grid describes a usable pixel array.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid size %dx%d: %w", g.Width, g.Height, ErrShape)
	}
	if !(g.Scale > 0) || math.IsInf(g.Scale, 0) {
		return fmt.Errorf("grid scale %v must be positive", g.Scale)
	}
	if !isSupportedCRS(g.CRS) {
		return fmt.Errorf("grid crs %q: %w", g.CRS, ErrUnsupportedCRS)
	}
	return nil
}

// Len returns the number of pixels in the grid.
func (g Grid) Len() int {
	return g.Width * g.Height
}

// Index returns the flat index of the pixel at (col, row).
func (g Grid) Index(col, row int) int {
	return row*g.Width + col
}

// PixelCenter returns the CRS coordinates of the center of pixel (col, row).
func (g Grid) PixelCenter(col, row int) (x, y float64) {
	return g.OriginX + (float64(col)+0.5)*g.Scale, g.OriginY - (float64(row)+0.5)*g.Scale
}

// ToPixel converts CRS coordinates into fractional pixel coordinates.
// Integer values fall on pixel edges.
func (g Grid) ToPixel(x, y float64) (col, row float64) {
	return (x - g.OriginX) / g.Scale, (g.OriginY - y) / g.Scale
}

// Bounds returns the grid extent in CRS units.
func (g Grid) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.Height)*g.Scale},
		Max: orb.Point{g.OriginX + float64(g.Width)*g.Scale, g.OriginY},
	}
}

// Equal reports whether two grids address the same pixels.
func (g Grid) Equal(o Grid) bool {
	return g.CRS == o.CRS &&
		g.Width == o.Width &&
		g.Height == o.Height &&
		closeTo(g.Scale, o.Scale, g.Scale) &&
		closeTo(g.OriginX, o.OriginX, g.Scale) &&
		closeTo(g.OriginY, o.OriginY, g.Scale)
}

// SameScale reports whether scale matches the grid's pixel size.
func (g Grid) SameScale(scale float64) bool {
	return closeTo(g.Scale, scale, g.Scale)
}

func (g Grid) String() string {
	return fmt.Sprintf("%s %dx%d @%g (%g,%g)", g.CRS, g.Width, g.Height, g.Scale, g.OriginX, g.OriginY)
}

func closeTo(a, b, ref float64) bool {
	return math.Abs(a-b) <= gridTolerance*math.Max(math.Abs(ref), 1)
}
