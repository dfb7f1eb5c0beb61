package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/pipeline"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// --- fakes ---

type fakeImagery struct {
	mu     sync.Mutex
	scenes map[string][]raster.Scene
	errs   map[string]error
	calls  map[string]int
}

func newFakeImagery() *fakeImagery {
	return &fakeImagery{
		scenes: make(map[string][]raster.Scene),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeImagery) add(sensorID string, scenes ...raster.Scene) {
	f.scenes[sensorID] = append(f.scenes[sensorID], scenes...)
}

func (f *fakeImagery) Fetch(_ context.Context, sensorID string, _ []string, years domain.YearRange, _ orb.Bound) ([]raster.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sensorID]++
	if err := f.errs[sensorID]; err != nil {
		return nil, err
	}
	var out []raster.Scene
	for _, s := range f.scenes[sensorID] {
		if years.Contains(s.Time) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRegions struct {
	region *raster.Region
	err    error
}

func (f fakeRegions) Region(context.Context) (*raster.Region, error) {
	return f.region, f.err
}

type fakeExports struct {
	mu      sync.Mutex
	written map[string]*raster.Raster
	fail    map[string]bool
}

func newFakeExports() *fakeExports {
	return &fakeExports{written: make(map[string]*raster.Raster), fail: make(map[string]bool)}
}

func (f *fakeExports) Write(_ context.Context, r *raster.Raster, opts domain.ExportOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := opts.Folder + "/" + opts.Name
	if f.fail[key] {
		return errors.New("bucket unavailable")
	}
	f.written[key] = r
	return nil
}

func (f *fakeExports) get(key string) *raster.Raster {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[key]
}

type fakeReports struct {
	mu      sync.Mutex
	reports []domain.CorrelationReport
}

func (f *fakeReports) PublishReport(_ context.Context, r domain.CorrelationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	units   []domain.UnitResult
	reports []domain.CorrelationReport
	runIDs  map[string]bool
}

func (f *fakeLedger) RecordUnit(_ context.Context, runID string, res domain.UnitResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runIDs == nil {
		f.runIDs = make(map[string]bool)
	}
	f.runIDs[runID] = true
	f.units = append(f.units, res)
	return nil
}

func (f *fakeLedger) RecordReport(_ context.Context, _ string, r domain.CorrelationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

type fakeVisual struct {
	mu     sync.Mutex
	layers []string
	charts []domain.Chart
}

func (f *fakeVisual) ShowLayer(_ context.Context, name string, _ *raster.Raster, _ domain.VisParams) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.layers = append(f.layers, name)
}

func (f *fakeVisual) ShowChart(_ context.Context, c domain.Chart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charts = append(f.charts, c)
}

// --- fixtures ---

// The fixtures use a 3x3 one-degree LST grid and a 6x6 half-degree reflectance
// grid over the same extent, so every LST cell covers exactly 2x2 reflectance pixels.

func lstGrid(t *testing.T) raster.Grid {
	t.Helper()
	g, err := raster.NewGrid(raster.CRSGeographic, 0, 3, 1, 3, 3)
	require.NoError(t, err)
	return g
}

func reflectanceGrid(t *testing.T) raster.Grid {
	t.Helper()
	g, err := raster.NewGrid(raster.CRSGeographic, 0, 3, 0.5, 6, 6)
	require.NoError(t, err)
	return g
}

func testRegion(t *testing.T) *raster.Region {
	t.Helper()
	r, err := raster.NewRegion(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{4, 4}})
	require.NoError(t, err)
	return r
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// modisScene encodes Celsius values and QC codes as stored MOD11A2 samples.
func modisScene(t *testing.T, at time.Time, celsius []float64, qc []float64) raster.Scene {
	t.Helper()
	g := lstGrid(t)
	raw := make([]float64, len(celsius))
	for i, c := range celsius {
		raw[i] = (c + 273.15) / 0.02
	}
	if qc == nil {
		qc = make([]float64, len(celsius))
	}
	lst, err := raster.FromValues(g, raw)
	require.NoError(t, err)
	q, err := raster.FromValues(g, qc)
	require.NoError(t, err)
	return raster.Scene{
		ID:     "MOD11A2_" + at.Format("2006002"),
		Sensor: domain.ModisLST().ID,
		Time:   at,
		Bands:  map[string]*raster.Raster{"LST_Day_1km": lst, "QC_Day": q},
	}
}

// landsat5Scene encodes a per-LST-cell NDVI as stored Landsat 5 red and NIR samples.
// Red reflectance is held at 0.1 and NIR solves (nir-red)/(nir+red) = ndvi.
func landsat5Scene(t *testing.T, at time.Time, ndviPerCell func(cell int) float64) raster.Scene {
	t.Helper()
	g := reflectanceGrid(t)
	encode := func(refl float64) float64 { return (refl + 0.2) / 0.0000275 }

	red := make([]float64, g.Len())
	nir := make([]float64, g.Len())
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			i := g.Index(col, row)
			ndvi := ndviPerCell((row/2)*3 + col/2)
			red[i] = encode(0.1)
			nir[i] = encode(0.1 * (1 + ndvi) / (1 - ndvi))
		}
	}
	redR, err := raster.FromValues(g, red)
	require.NoError(t, err)
	nirR, err := raster.FromValues(g, nir)
	require.NoError(t, err)
	return raster.Scene{
		ID:     "LT05_" + at.Format("20060102"),
		Sensor: domain.Landsat5().ID,
		Time:   at,
		Bands: map[string]*raster.Raster{
			"SR_B3":    redR,
			"SR_B4":    nirR,
			"QA_PIXEL": raster.Full(g, 0),
		},
	}
}

func seq(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

type harness struct {
	imagery *fakeImagery
	exports *fakeExports
	reports *fakeReports
	ledger  *fakeLedger
	visual  *fakeVisual
	metrics *observability.Metrics
	opts    pipeline.Options
	regions fakeRegions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	opts := pipeline.DefaultOptions()
	opts.StartYear, opts.EndYear = 2004, 2004
	opts.CorrelationYears = []int{2004}
	opts.Scale = 1
	opts.RetryAttempts = 1
	opts.Workers = 3

	return &harness{
		imagery: newFakeImagery(),
		exports: newFakeExports(),
		reports: &fakeReports{},
		ledger:  &fakeLedger{},
		visual:  &fakeVisual{},
		metrics: observability.NewMetricsForTesting(),
		opts:    opts,
		regions: fakeRegions{region: testRegion(t)},
	}
}

func (h *harness) pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Imagery: h.imagery,
		Regions: h.regions,
		Exports: h.exports,
		Reports: h.reports,
		Visual:  h.visual,
		Ledger:  h.ledger,
		Logger:  slog.New(slog.DiscardHandler),
		Metrics: h.metrics,
	}, h.opts)
}

// seedArchive loads a 2004 archive: two summer MODIS scenes with an LST ramp of 20+i
// (cell 4 QC-rejected in the second), one uniform 30 degree winter scene, and one summer
// Landsat 5 scene whose NDVI falls as LST rises.
func (h *harness) seedArchive(t *testing.T) {
	t.Helper()
	ramp := seq(9, func(i int) float64 { return 20 + float64(i) })
	qc := make([]float64, 9)
	qc[4] = 2

	modis := domain.ModisLST().ID
	h.imagery.add(modis,
		modisScene(t, date(2004, time.March, 5), ramp, nil),
		modisScene(t, date(2004, time.April, 6), ramp, qc),
		modisScene(t, date(2004, time.January, 9), seq(9, func(int) float64 { return 30 }), nil),
		modisScene(t, date(2004, time.December, 18), seq(9, func(int) float64 { return 99 }), nil),
	)
	h.imagery.add(domain.Landsat5().ID,
		landsat5Scene(t, date(2004, time.May, 2), func(cell int) float64 { return 0.8 - 0.05*float64(cell) }),
	)
}
