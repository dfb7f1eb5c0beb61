// Package ledger persists run outcomes to SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS unit_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT    NOT NULL,
	pipeline     TEXT    NOT NULL,
	year         INTEGER NOT NULL,
	season       TEXT    NOT NULL DEFAULT '',
	outcome      TEXT    NOT NULL,
	detail       TEXT    NOT NULL DEFAULT '',
	artifact     TEXT    NOT NULL DEFAULT '',
	valid_pixels INTEGER NOT NULL DEFAULT 0,
	pixels       INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	recorded_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_unit_results_run ON unit_results (run_id);

CREATE TABLE IF NOT EXISTS correlation_reports (
	run_id       TEXT    NOT NULL,
	year         INTEGER NOT NULL,
	sensors      TEXT    NOT NULL,
	scale        REAL    NOT NULL,
	pearson_r    REAL    NOT NULL,
	r_squared    REAL    NOT NULL,
	slope        REAL    NOT NULL,
	intercept    REAL    NOT NULL,
	pixel_count  INTEGER NOT NULL,
	samples      TEXT    NOT NULL,
	generated_at TEXT    NOT NULL,
	PRIMARY KEY (run_id, year)
);
`

// Ledger records unit outcomes and correlation reports keyed by run ID.
// It implements domain.Ledger.
type Ledger struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the ledger database at path and applies the schema.
func Open(path string, clock clockwork.Clock) (*Ledger, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, clock: clock}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordUnit stores one unit outcome.
func (l *Ledger) RecordUnit(ctx context.Context, runID string, res domain.UnitResult) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO unit_results
			(run_id, pipeline, year, season, outcome, detail, artifact, valid_pixels, pixels, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Unit.Pipeline, res.Unit.Year, res.Unit.Season, string(res.Outcome), res.Detail,
		res.Artifact, res.ValidPixels, res.Pixels, res.Duration.Milliseconds(),
		l.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record unit %s: %w", res.Unit, err)
	}
	return nil
}

// RecordReport stores a correlation report, replacing an earlier one for the same run and year.
func (l *Ledger) RecordReport(ctx context.Context, runID string, r domain.CorrelationReport) error {
	samples, err := json.Marshal(r.Samples)
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO correlation_reports
			(run_id, year, sensors, scale, pearson_r, r_squared, slope, intercept, pixel_count, samples, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Year, strings.Join(r.Sensors, ","), r.Scale, r.PearsonR, r.RSquared, r.Slope, r.Intercept,
		r.PixelCount, string(samples), r.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record correlation report %d: %w", r.Year, err)
	}
	return nil
}

// Units returns the recorded outcomes of a run in insertion order.
func (l *Ledger) Units(ctx context.Context, runID string) ([]domain.UnitResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT pipeline, year, season, outcome, detail, artifact, valid_pixels, pixels, duration_ms
		FROM unit_results
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var out []domain.UnitResult
	for rows.Next() {
		var res domain.UnitResult
		var outcome string
		var durationMS int64
		if err := rows.Scan(&res.Unit.Pipeline, &res.Unit.Year, &res.Unit.Season, &outcome, &res.Detail,
			&res.Artifact, &res.ValidPixels, &res.Pixels, &durationMS); err != nil {
			return nil, fmt.Errorf("scan unit row: %w", err)
		}
		res.Outcome = domain.Outcome(outcome)
		res.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, res)
	}
	return out, rows.Err()
}

// Reports returns the correlation reports of a run ordered by year.
func (l *Ledger) Reports(ctx context.Context, runID string) ([]domain.CorrelationReport, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT year, sensors, scale, pearson_r, r_squared, slope, intercept, pixel_count, samples, generated_at
		FROM correlation_reports
		WHERE run_id = ?
		ORDER BY year`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []domain.CorrelationReport
	for rows.Next() {
		var r domain.CorrelationReport
		var sensors, samples, generatedAt string
		if err := rows.Scan(&r.Year, &sensors, &r.Scale, &r.PearsonR, &r.RSquared, &r.Slope, &r.Intercept,
			&r.PixelCount, &samples, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if sensors != "" {
			r.Sensors = strings.Split(sensors, ",")
		}
		var pairs []stats.Pair
		if err := json.Unmarshal([]byte(samples), &pairs); err != nil {
			return nil, fmt.Errorf("decode samples for %d: %w", r.Year, err)
		}
		r.Samples = pairs
		if r.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
			return nil, fmt.Errorf("parse generated_at for %d: %w", r.Year, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunID returns the run with the most recently recorded unit.
func (l *Ledger) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := l.db.QueryRowContext(ctx, `SELECT run_id FROM unit_results ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}
