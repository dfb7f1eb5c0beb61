package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/lst-pipeline/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// retrier re-runs collaborator calls with exponential backoff.
type retrier struct {
	attempts int
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// do calls fn until it succeeds, attempts are exhausted, or ctx is cancelled.
// The last error is returned.
func (r retrier) do(ctx context.Context, call string, fn func(context.Context) error) error {
	attempts := max(r.attempts, 1)
	backoff := initialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= attempts {
			return err
		}

		r.logger.Warn("collaborator call failed, retrying",
			"call", call, "attempt", attempt, "backoff", backoff, "error", err)
		r.metrics.Retries.WithLabelValues(call).Inc()
		if !sleepWithContext(ctx, r.clock, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
