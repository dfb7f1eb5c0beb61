package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// Options is the analysis policy for one run.
type Options struct {
	Pipelines        []string
	StartYear        int
	EndYear          int
	CorrelationYears []int

	Scale           float64 // sampling scale for every region statistic, in grid units
	ExportMaxPixels int64
	SeasonalFolder  string
	UTFVIFolder     string
	SampleSize      int
	SampleSeed      uint64
	Workers         int
	RetryAttempts   int

	LSTSensor domain.Sensor
	Families  domain.FamilyTable
	Aligner   raster.Aligner
}

// DefaultOptions returns the reference analysis policy.
func DefaultOptions() Options {
	return Options{
		Pipelines:        []string{domain.PipelineSeasonal, domain.PipelineUTFVI, domain.PipelineCorrelation},
		StartYear:        2004,
		EndYear:          2024,
		CorrelationYears: []int{2004, 2014, 2024},
		Scale:            1000,
		ExportMaxPixels:  1e13,
		SeasonalFolder:   "Seasonal_LST",
		UTFVIFolder:      "UTFVI",
		SampleSize:       500,
		SampleSeed:       1,
		Workers:          4,
		RetryAttempts:    3,
		LSTSensor:        domain.ModisLST(),
		Families:         domain.DefaultFamilyTable(),
		Aligner:          raster.NewAligner(raster.DefaultMaxPixels),
	}
}

// Deps are the collaborators a Pipeline talks to. Imagery, Regions, and Exports are
// required; the rest are optional.
type Deps struct {
	Imagery domain.ImagerySource
	Regions domain.RegionSource
	Exports domain.ExportSink
	Reports domain.ReportSink
	Visual  domain.Visualizer
	Ledger  domain.Ledger
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

// Pipeline runs the seasonal LST, UTFVI, and NDVI-LST correlation analyses.
type Pipeline struct {
	imagery domain.ImagerySource
	regions domain.RegionSource
	exports domain.ExportSink
	reports domain.ReportSink
	visual  domain.Visualizer
	ledger  domain.Ledger
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	retry   retrier
	runner  *Runner

	last atomic.Pointer[Report]
}

// New creates a Pipeline. A nil Visual discards display notifications, a nil Logger
// discards logs, and nil Metrics are recorded to an unregistered set.
func New(d Deps, opts Options) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewUnregisteredMetrics()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Visual == nil {
		d.Visual = discardVisualizer{}
	}
	return &Pipeline{
		imagery: d.Imagery,
		regions: d.Regions,
		exports: d.Exports,
		reports: d.Reports,
		visual:  d.Visual,
		ledger:  d.Ledger,
		logger:  d.Logger,
		metrics: d.Metrics,
		opts:    opts,
		retry:   retrier{attempts: opts.RetryAttempts, clock: d.Clock, logger: d.Logger, metrics: d.Metrics},
		runner:  NewRunner(opts.Workers, d.Ledger, d.Logger, d.Metrics, d.Clock),
	}
}

// CheckReadiness reports whether the pipeline has completed at least one unit.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.runner.CheckReadiness(ctx)
}

// LastReport returns the report of the most recent finished run.
func (p *Pipeline) LastReport() (Report, bool) {
	r := p.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Run loads the region and executes every enabled pipeline once over the configured
// years. Only a region that cannot be loaded fails the run; unit failures are reported.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var region *raster.Region
	err := p.retry.do(ctx, "region", func(ctx context.Context) error {
		var err error
		region, err = p.regions.Region(ctx)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("load region: %w", err)
	}

	runID := uuid.NewString()
	a := &analysis{Pipeline: p, runID: runID, region: region, composites: newCompositeCache()}
	report := p.runner.Run(ctx, runID, a.tasks())
	p.last.Store(&report)
	return report, nil
}

func (p *Pipeline) enabled(name string) bool {
	for _, n := range p.opts.Pipelines {
		if n == name {
			return true
		}
	}
	return false
}

// analysis is the state shared by the units of one run.
type analysis struct {
	*Pipeline
	runID      string
	region     *raster.Region
	composites *compositeCache
}

func (a *analysis) tasks() []Task {
	var tasks []Task
	for year := a.opts.StartYear; year <= a.opts.EndYear; year++ {
		for _, season := range domain.Seasons() {
			if a.enabled(domain.PipelineSeasonal) {
				tasks = append(tasks, a.seasonalTask(year, season))
			}
			if a.enabled(domain.PipelineUTFVI) {
				tasks = append(tasks, a.utfviTask(year, season))
			}
		}
	}
	if a.enabled(domain.PipelineCorrelation) {
		for _, year := range a.opts.CorrelationYears {
			tasks = append(tasks, a.correlationTask(year))
		}
	}
	return tasks
}

// lstComposite returns the QC-masked seasonal mean LST composite in degrees Celsius,
// clipped to the region. The composite is computed once per run and shared by the
// seasonal, UTFVI, and correlation units.
func (a *analysis) lstComposite(ctx context.Context, year int, season domain.Season) (*raster.Raster, error) {
	return a.composites.get(fmt.Sprintf("%s/%d", season.Name, year), func() (*raster.Raster, error) {
		sensor := a.opts.LSTSensor
		scenes, err := a.fetch(ctx, sensor, season.Years(year))
		if err != nil {
			return nil, err
		}
		if len(scenes) == 0 {
			return nil, domain.ErrNoScenes
		}
		ts, err := domain.LSTSeries(scenes, sensor)
		if err != nil {
			return nil, fmt.Errorf("prepare %s scenes: %w", sensor.ID, err)
		}
		start, end := season.Window(year)
		return raster.Composite(ts, start, end, a.region)
	})
}

func (a *analysis) fetch(ctx context.Context, sensor domain.Sensor, years domain.YearRange) ([]raster.Scene, error) {
	var scenes []raster.Scene
	err := a.retry.do(ctx, "fetch", func(ctx context.Context) error {
		var err error
		scenes, err = a.imagery.Fetch(ctx, sensor.ID, sensor.Bands(), years, a.region.Bound())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %d-%d: %w", sensor.ID, years.From, years.To, err)
	}
	return scenes, nil
}

func (a *analysis) export(ctx context.Context, r *raster.Raster, name, folder string) error {
	opts := domain.ExportOptions{
		Name:      name,
		Folder:    folder,
		Region:    a.region,
		Scale:     a.opts.Scale,
		MaxPixels: a.opts.ExportMaxPixels,
	}
	err := a.retry.do(ctx, "export", func(ctx context.Context) error {
		return a.exports.Write(ctx, r, opts)
	})
	if err != nil {
		a.metrics.Exports.WithLabelValues("error").Inc()
		return fmt.Errorf("export %s/%s: %w", folder, name, err)
	}
	a.metrics.Exports.WithLabelValues("success").Inc()
	return nil
}

// compositeCache memoizes one composite per key for the lifetime of a run.
type compositeCache struct {
	mu      sync.Mutex
	entries map[string]*compositeEntry
}

type compositeEntry struct {
	once sync.Once
	r    *raster.Raster
	err  error
}

func newCompositeCache() *compositeCache {
	return &compositeCache{entries: make(map[string]*compositeEntry)}
}

func (c *compositeCache) get(key string, build func() (*raster.Raster, error)) (*raster.Raster, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &compositeEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() { e.r, e.err = build() })
	return e.r, e.err
}

type discardVisualizer struct{}

func (discardVisualizer) ShowLayer(context.Context, string, *raster.Raster, domain.VisParams) {}
func (discardVisualizer) ShowChart(context.Context, domain.Chart)                            {}
