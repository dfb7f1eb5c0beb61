package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

var utfviVis = domain.VisParams{Min: -0.05, Max: 0.05, Palette: []string{"blue", "white", "red"}}

func (a *analysis) utfviTask(year int, season domain.Season) Task {
	u := domain.Unit{Pipeline: domain.PipelineUTFVI, Year: year, Season: season.Name}
	return Task{Unit: u, Run: func(ctx context.Context) domain.UnitResult {
		return a.utfvi(ctx, u, season)
	}}
}

// utfvi derives (Ts - Tmean) / Tmean from the seasonal composite and exports it
// as UTFVI_<Season>_<year>.
func (a *analysis) utfvi(ctx context.Context, u domain.Unit, season domain.Season) domain.UnitResult {
	composite, res, ok := a.compositeOrSkip(ctx, u, season)
	if !ok {
		return res
	}

	index, reason, err := UTFVI(composite, a.region, a.opts.Scale)
	if err != nil {
		return domain.Failed(u, err)
	}
	if index == nil {
		return domain.Skipped(u, reason)
	}

	name := fmt.Sprintf("UTFVI_%s_%d", season.Name, u.Year)
	if err := a.export(ctx, index, name, a.opts.UTFVIFolder); err != nil {
		return domain.Failed(u, err)
	}
	if u.Year == a.opts.StartYear || u.Year == a.opts.EndYear {
		a.visual.ShowLayer(ctx, fmt.Sprintf("UTFVI %s %d", season.Name, u.Year), index, utfviVis)
	}
	return domain.Succeeded(u, a.opts.UTFVIFolder+"/"+name, index)
}

// UTFVI computes the urban thermal field variance index of an LST composite relative
// to its mean over region at scale. A nil raster with a reason is returned when the
// mean is undefined.
func UTFVI(composite *raster.Raster, region *raster.Region, scale float64) (*raster.Raster, string, error) {
	tmean, err := stats.Mean(composite, region, scale)
	if err != nil {
		return nil, "", fmt.Errorf("mean LST: %w", err)
	}
	if !tmean.Valid {
		return nil, "mean LST undefined: region fully masked", nil
	}
	if tmean.Value == 0 {
		return nil, "mean LST is zero", nil
	}
	return raster.DivideScalar(raster.SubtractScalar(composite, tmean.Value), tmean.Value), "", nil
}
