package domain

import (
	"fmt"
	"time"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

// Pipeline names.
const (
	PipelineSeasonal    = "seasonal"
	PipelineUTFVI       = "utfvi"
	PipelineCorrelation = "correlation"
)

// Outcome classifies how a unit of work ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped" // no data for the unit
	OutcomeFailed    Outcome = "failed"  // collaborator or contract failure
)

// Unit identifies one independent piece of work. Season is empty for per-year units.
type Unit struct {
	Pipeline string `json:"pipeline"`
	Year     int    `json:"year"`
	Season   string `json:"season,omitempty"`
}

func (u Unit) String() string {
	if u.Season == "" {
		return fmt.Sprintf("%s/%d", u.Pipeline, u.Year)
	}
	return fmt.Sprintf("%s/%d/%s", u.Pipeline, u.Year, u.Season)
}

// UnitResult records how a unit ended.
type UnitResult struct {
	Unit        Unit          `json:"unit"`
	Outcome     Outcome       `json:"outcome"`
	Detail      string        `json:"detail,omitempty"`
	Artifact    string        `json:"artifact,omitempty"`
	ValidPixels int           `json:"valid_pixels"`
	Pixels      int           `json:"pixels"`
	Duration    time.Duration `json:"duration_ns"`
}

// ValidFraction is the share of grid pixels valid in the unit's output, or 0 without one.
func (r UnitResult) ValidFraction() float64 {
	if r.Pixels == 0 {
		return 0
	}
	return float64(r.ValidPixels) / float64(r.Pixels)
}

// Succeeded builds a successful result for an artifact derived from out.
func Succeeded(u Unit, artifact string, out *raster.Raster) UnitResult {
	return UnitResult{
		Unit:        u,
		Outcome:     OutcomeSucceeded,
		Artifact:    artifact,
		ValidPixels: out.ValidCount(),
		Pixels:      out.Grid.Len(),
	}
}

// Skipped builds a no-data result.
func Skipped(u Unit, reason string) UnitResult {
	return UnitResult{Unit: u, Outcome: OutcomeSkipped, Detail: reason}
}

// Failed builds a failure result.
func Failed(u Unit, err error) UnitResult {
	return UnitResult{Unit: u, Outcome: OutcomeFailed, Detail: err.Error()}
}

// CorrelationReport summarizes the NDVI-LST relationship for one year.
type CorrelationReport struct {
	Year        int          `json:"year"`
	Sensors     []string     `json:"sensors"`
	Scale       float64      `json:"scale"`
	PearsonR    float64      `json:"pearson_r"`
	RSquared    float64      `json:"r_squared"`
	Slope       float64      `json:"slope"`
	Intercept   float64      `json:"intercept"`
	PixelCount  int          `json:"pixel_count"`
	Samples     []stats.Pair `json:"samples"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// NewCorrelationReport combines a correlation and fit into a report.
func NewCorrelationReport(year int, sensors []string, scale float64, c stats.Correlation, f stats.Fit, samples []stats.Pair) CorrelationReport {
	return CorrelationReport{
		Year:        year,
		Sensors:     sensors,
		Scale:       scale,
		PearsonR:    c.R,
		RSquared:    c.R2(),
		Slope:       f.Slope,
		Intercept:   f.Intercept,
		PixelCount:  c.N,
		Samples:     samples,
		GeneratedAt: clock.Now().UTC(),
	}
}
