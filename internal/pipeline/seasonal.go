package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// lstVis is the display stretch for seasonal LST layers, in degrees Celsius.
var lstVis = domain.VisParams{Min: 20, Max: 45, Palette: []string{"blue", "cyan", "yellow", "red"}}

func (a *analysis) seasonalTask(year int, season domain.Season) Task {
	u := domain.Unit{Pipeline: domain.PipelineSeasonal, Year: year, Season: season.Name}
	return Task{Unit: u, Run: func(ctx context.Context) domain.UnitResult {
		return a.seasonal(ctx, u, season)
	}}
}

// seasonal composites one season of LST and exports it as <Season>_LST_<year>.
func (a *analysis) seasonal(ctx context.Context, u domain.Unit, season domain.Season) domain.UnitResult {
	composite, res, ok := a.compositeOrSkip(ctx, u, season)
	if !ok {
		return res
	}

	name := fmt.Sprintf("%s_LST_%d", season.Name, u.Year)
	if err := a.export(ctx, composite, name, a.opts.SeasonalFolder); err != nil {
		return domain.Failed(u, err)
	}
	if u.Year == a.opts.StartYear {
		a.visual.ShowLayer(ctx, fmt.Sprintf("%s LST %d", season.Name, u.Year), composite, lstVis)
	}
	return domain.Succeeded(u, a.opts.SeasonalFolder+"/"+name, composite)
}

// compositeOrSkip resolves the unit's LST composite. When there is nothing to export
// it returns the skipped or failed result instead.
func (a *analysis) compositeOrSkip(ctx context.Context, u domain.Unit, season domain.Season) (*raster.Raster, domain.UnitResult, bool) {
	composite, err := a.lstComposite(ctx, u.Year, season)
	switch {
	case errors.Is(err, domain.ErrNoScenes):
		return nil, domain.Skipped(u, "no LST scenes for the season window"), false
	case err != nil:
		return nil, domain.Failed(u, err), false
	case composite.ValidCount() == 0:
		return nil, domain.Skipped(u, "no valid LST observations in the region"), false
	}
	return composite, domain.UnitResult{}, true
}
