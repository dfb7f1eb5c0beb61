package domain

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// ErrTooManyPixels is returned when an export would exceed its pixel cap.
var ErrTooManyPixels = errors.New("export exceeds max pixels")

// PrepareExport resamples r to the export scale and clips it to the export region.
// Scales coarser than the raster aggregate by area-weighted mean; finer scales are rejected.
func PrepareExport(r *raster.Raster, opts ExportOptions) (*raster.Raster, error) {
	if opts.Name == "" {
		return nil, errors.New("export name is required")
	}
	out := r
	if opts.Scale > 0 && !r.Grid.SameScale(opts.Scale) {
		if opts.Scale < r.Grid.Scale {
			return nil, fmt.Errorf("export %s at scale %g finer than %s", opts.Name, opts.Scale, r.Grid)
		}
		var err error
		out, err = raster.NewAligner(raster.DefaultMaxPixels).AlignTo(r, r.Grid.CRS, opts.Scale)
		if err != nil {
			return nil, fmt.Errorf("resample export %s: %w", opts.Name, err)
		}
	}
	if opts.MaxPixels > 0 && int64(out.Grid.Len()) > opts.MaxPixels {
		return nil, fmt.Errorf("export %s has %d pixels, cap %d: %w", opts.Name, out.Grid.Len(), opts.MaxPixels, ErrTooManyPixels)
	}
	if opts.Region == nil {
		return out, nil
	}
	return raster.Clip(out, opts.Region)
}
