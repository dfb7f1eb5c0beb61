package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

func (a *analysis) correlationTask(year int) Task {
	u := domain.Unit{Pipeline: domain.PipelineCorrelation, Year: year}
	return Task{Unit: u, Run: func(ctx context.Context) domain.UnitResult {
		return a.correlation(ctx, u)
	}}
}

// correlation relates the summer NDVI mosaic of the year's sensor family to the
// summer LST composite and publishes the resulting report.
func (a *analysis) correlation(ctx context.Context, u domain.Unit) domain.UnitResult {
	lst, res, ok := a.compositeOrSkip(ctx, u, domain.Summer)
	if !ok {
		return res
	}

	sensors, err := a.opts.Families.Lookup(u.Year)
	if err != nil {
		return domain.Failed(u, err)
	}
	ndvi, err := a.ndviMosaic(ctx, u.Year, sensors)
	switch {
	case errors.Is(err, domain.ErrNoScenes):
		return domain.Skipped(u, "no reflectance scenes for the greening window")
	case err != nil:
		return domain.Failed(u, err)
	}

	aligned, err := a.opts.Aligner.Align(ndvi, lst.Grid)
	if err != nil {
		return domain.Failed(u, fmt.Errorf("align NDVI to LST grid: %w", err))
	}

	rng := rand.New(rand.NewPCG(a.opts.SampleSeed, uint64(u.Year)))
	report, reason, err := Correlate(u.Year, domain.SensorIDs(sensors), aligned, lst, a.region, a.opts.Scale, a.opts.SampleSize, rng)
	if err != nil {
		return domain.Failed(u, err)
	}
	if reason != "" {
		return domain.Skipped(u, reason)
	}

	if a.reports != nil {
		err := a.retry.do(ctx, "report", func(ctx context.Context) error {
			return a.reports.PublishReport(ctx, report)
		})
		if err != nil {
			return domain.Failed(u, fmt.Errorf("publish correlation report: %w", err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.RecordReport(context.WithoutCancel(ctx), a.runID, report); err != nil {
			a.logger.Error("record correlation report failed", "year", u.Year, "error", err)
		}
	}

	chart := domain.Chart{
		Title:  fmt.Sprintf("NDVI vs LST (%d)", u.Year),
		XLabel: "NDVI",
		YLabel: "LST (°C)",
		Points: report.Samples,
		Trendline: &stats.Fit{
			Slope:     report.Slope,
			Intercept: report.Intercept,
			N:         report.PixelCount,
			Valid:     true,
		},
	}
	a.visual.ShowChart(ctx, chart)

	return domain.Succeeded(u, fmt.Sprintf("correlation_%d", u.Year), aligned)
}

// ndviMosaic builds the median greening-window NDVI of every sensor in the family, clipped to the region.
func (a *analysis) ndviMosaic(ctx context.Context, year int, sensors []domain.Sensor) (*raster.Raster, error) {
	var red, nir raster.TimeSeries
	for _, sensor := range sensors {
		scenes, err := a.fetch(ctx, sensor, domain.Greening.Years(year))
		if err != nil {
			return nil, err
		}
		if len(scenes) == 0 {
			continue
		}
		r, n, err := domain.ReflectanceSeries(scenes, sensor)
		if err != nil {
			return nil, fmt.Errorf("prepare %s scenes: %w", sensor.ID, err)
		}
		if red, err = red.Merge(r); err != nil {
			return nil, fmt.Errorf("merge %s: %w", sensor.ID, err)
		}
		if nir, err = nir.Merge(n); err != nil {
			return nil, fmt.Errorf("merge %s: %w", sensor.ID, err)
		}
	}
	if red.Len() == 0 {
		return nil, domain.ErrNoScenes
	}

	start, end := domain.Greening.Window(year)
	redMosaic, err := raster.CompositeWith(red, start, end, a.region, raster.Median)
	if err != nil {
		return nil, err
	}
	nirMosaic, err := raster.CompositeWith(nir, start, end, a.region, raster.Median)
	if err != nil {
		return nil, err
	}
	return raster.NormalizedDifference(nirMosaic, redMosaic)
}

// Correlate computes the NDVI-LST correlation report for two rasters on the same grid.
// A non-empty reason means the statistics are undefined and no report was produced.
func Correlate(year int, sensors []string, ndvi, lst *raster.Raster, region *raster.Region, scale float64, sampleSize int, rng *rand.Rand) (domain.CorrelationReport, string, error) {
	corr, err := stats.PearsonCorrelation(ndvi, lst, region, scale)
	if err != nil {
		return domain.CorrelationReport{}, "", fmt.Errorf("pearson correlation: %w", err)
	}
	if !corr.Valid {
		return domain.CorrelationReport{}, fmt.Sprintf("correlation undefined over %d jointly valid pixels", corr.N), nil
	}
	fit, err := stats.LinearFit(ndvi, lst, region, scale)
	if err != nil {
		return domain.CorrelationReport{}, "", fmt.Errorf("linear fit: %w", err)
	}
	if !fit.Valid {
		return domain.CorrelationReport{}, "linear fit undefined: zero NDVI variance", nil
	}
	samples, err := stats.ScatterSample(ndvi, lst, region, scale, sampleSize, rng)
	if err != nil {
		return domain.CorrelationReport{}, "", fmt.Errorf("scatter sample: %w", err)
	}
	return domain.NewCorrelationReport(year, sensors, scale, corr, fit, samples), "", nil
}
