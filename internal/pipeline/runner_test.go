package pipeline_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/pipeline"
)

func TestRunner_BoundsConcurrencyAndKeepsOrder(t *testing.T) {
	ledger := &fakeLedger{}
	runner := pipeline.NewRunner(2, ledger, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), nil)

	var active, peak atomic.Int32
	tasks := make([]pipeline.Task, 6)
	for i := range tasks {
		u := domain.Unit{Pipeline: domain.PipelineSeasonal, Year: 2000 + i, Season: "Summer"}
		tasks[i] = pipeline.Task{Unit: u, Run: func(context.Context) domain.UnitResult {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			if u.Year%2 == 0 {
				return domain.Skipped(u, "no scenes")
			}
			return domain.UnitResult{Outcome: domain.OutcomeSucceeded}
		}}
	}

	report := runner.Run(context.Background(), "run-1", tasks)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	require.Len(t, report.Results, 6)
	for i, res := range report.Results {
		assert.Equal(t, 2000+i, res.Unit.Year)
	}
	assert.Equal(t, 3, report.Count(domain.OutcomeSkipped))
	assert.Equal(t, 3, report.Count(domain.OutcomeSucceeded))
	assert.Len(t, ledger.units, 6)
	assert.False(t, report.Finished.Before(report.Started))
	require.NoError(t, runner.CheckReadiness(context.Background()))
}

func TestRunner_EmptyRunNotReady(t *testing.T) {
	runner := pipeline.NewRunner(1, nil, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), nil)
	report := runner.Run(context.Background(), "run-2", nil)
	assert.Empty(t, report.Results)
	require.Error(t, runner.CheckReadiness(context.Background()))
}
