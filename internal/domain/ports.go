package domain

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

// ImagerySource serves satellite scenes by sensor, band, calendar years, and footprint.
type ImagerySource interface {
	// Fetch returns the scenes of sensorID acquired in years whose footprint
	// intersects bounds (lon/lat), restricted to the named bands.
	Fetch(ctx context.Context, sensorID string, bands []string, years YearRange, bounds orb.Bound) ([]raster.Scene, error)
}

// RegionSource supplies the area of interest.
type RegionSource interface {
	Region(ctx context.Context) (*raster.Region, error)
}

// ExportOptions describes where and how a raster is persisted.
type ExportOptions struct {
	Name      string
	Folder    string
	Region    *raster.Region
	Scale     float64
	MaxPixels int64
}

// ExportSink persists rasters.
type ExportSink interface {
	Write(ctx context.Context, r *raster.Raster, opts ExportOptions) error
}

// ReportSink publishes correlation reports.
type ReportSink interface {
	PublishReport(ctx context.Context, report CorrelationReport) error
}

// VisParams is a display stretch and color ramp.
type VisParams struct {
	Min     float64
	Max     float64
	Palette []string
}

// Chart is a scatter chart request with an optional trend line.
type Chart struct {
	Title     string
	XLabel    string
	YLabel    string
	Points    []stats.Pair
	Trendline *stats.Fit
}

// Visualizer receives display notifications. It never feeds data back to the pipelines.
type Visualizer interface {
	ShowLayer(ctx context.Context, name string, r *raster.Raster, vis VisParams)
	ShowChart(ctx context.Context, chart Chart)
}

// Ledger records unit outcomes and reports for a run.
type Ledger interface {
	RecordUnit(ctx context.Context, runID string, result UnitResult) error
	RecordReport(ctx context.Context, runID string, report CorrelationReport) error
}
