package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
)

// Task is one independent unit of work.
type Task struct {
	Unit domain.Unit
	Run  func(ctx context.Context) domain.UnitResult
}

// Report collects the outcome of every unit in a run, in task order.
type Report struct {
	RunID    string              `json:"run_id"`
	Started  time.Time           `json:"started"`
	Finished time.Time           `json:"finished"`
	Results  []domain.UnitResult `json:"results"`
}

// Count returns how many units ended with outcome.
func (r Report) Count(outcome domain.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Runner executes tasks on a bounded worker pool. A failed or skipped unit never
// stops its siblings.
type Runner struct {
	workers int
	ledger  domain.Ledger
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
}

// NewRunner creates a Runner. A nil ledger disables outcome recording.
func NewRunner(workers int, ledger domain.Ledger, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		workers: max(workers, 1),
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil once the runner has finished at least one unit.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no analysis unit has completed yet")
	}
	return nil
}

// Run executes tasks under runID and waits for all of them. Tasks not yet started
// when ctx is cancelled are reported as failed with the cancellation cause.
func (r *Runner) Run(ctx context.Context, runID string, tasks []Task) Report {
	report := Report{RunID: runID, Started: r.clock.Now().UTC(), Results: make([]domain.UnitResult, len(tasks))}

	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)
	r.logger.Info("run started", "run_id", runID, "units", len(tasks), "workers", r.workers)

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, task := range tasks {
		g.Go(func() error {
			report.Results[i] = r.runOne(ctx, runID, task)
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = r.clock.Now().UTC()
	r.logger.Info("run finished",
		"run_id", runID,
		"succeeded", report.Count(domain.OutcomeSucceeded),
		"skipped", report.Count(domain.OutcomeSkipped),
		"failed", report.Count(domain.OutcomeFailed),
		"duration", report.Finished.Sub(report.Started),
	)
	return report
}

func (r *Runner) runOne(ctx context.Context, runID string, task Task) domain.UnitResult {
	start := r.clock.Now()

	var res domain.UnitResult
	if err := ctx.Err(); err != nil {
		res = domain.Failed(task.Unit, err)
	} else {
		res = task.Run(ctx)
	}
	res.Unit = task.Unit
	res.Duration = r.clock.Since(start)

	r.observe(res)
	r.ready.Store(true)

	if r.ledger != nil {
		// The ledger write must land even when the run is being cancelled.
		if err := r.ledger.RecordUnit(context.WithoutCancel(ctx), runID, res); err != nil {
			r.logger.Error("record unit failed", "unit", task.Unit.String(), "error", err)
		}
	}
	return res
}

func (r *Runner) observe(res domain.UnitResult) {
	u := res.Unit
	attrs := []any{"pipeline", u.Pipeline, "year", u.Year}
	if u.Season != "" {
		attrs = append(attrs, "season", u.Season)
	}
	attrs = append(attrs, "outcome", string(res.Outcome), "duration", res.Duration)

	switch res.Outcome {
	case domain.OutcomeSucceeded:
		r.logger.Info("unit succeeded", append(attrs, "artifact", res.Artifact, "valid_pixels", res.ValidPixels)...)
		r.metrics.ValidPixelFraction.WithLabelValues(u.Pipeline).Observe(res.ValidFraction())
	case domain.OutcomeSkipped:
		r.logger.Warn("unit skipped", append(attrs, "reason", res.Detail)...)
	default:
		r.logger.Error("unit failed", append(attrs, "error", res.Detail)...)
	}

	r.metrics.Units.WithLabelValues(u.Pipeline, string(res.Outcome)).Inc()
	r.metrics.UnitDuration.WithLabelValues(u.Pipeline).Observe(res.Duration.Seconds())
}
