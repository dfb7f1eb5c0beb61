// Command validate checks the integrity of a finished analysis run: every unit in the
// ledger is recorded once, every exported raster decodes and agrees with its ledger
// entry, UTFVI rasters are centered on the regional mean, and correlation reports are
// internally consistent.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -ledger data/ledger.db \
//	  -export-dir data/exports \
//	  -run 7f0c...   (defaults to the latest run)
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/lst-pipeline/internal/adapter/ledger"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/scenefs"
	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
)

// utfviTolerance bounds the mean of a valid UTFVI raster. It is zero when the analysis
// scale matches the LST grid and drifts slightly when statistics are resampled.
const utfviTolerance = 1e-3

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	ledgerPath := flag.String("ledger", "data/ledger.db", "path to the run ledger")
	exportDir := flag.String("export-dir", "", "directory of exported rasters; empty skips export checks")
	runID := flag.String("run", "", "run ID to validate (default: latest)")
	flag.Parse()

	os.Exit(run(*ledgerPath, *exportDir, *runID))
}

func run(ledgerPath, exportDir, runID string) int {
	ctx := context.Background()

	store, err := ledger.Open(ledgerPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer store.Close()

	if runID == "" {
		if runID, err = store.LatestRunID(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		if runID == "" {
			fmt.Fprintln(os.Stderr, "FATAL: ledger has no runs")
			return 1
		}
	}

	units, err := store.Units(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load units: %v\n", err)
		return 1
	}
	reports, err := store.Reports(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load reports: %v\n", err)
		return 1
	}

	fmt.Printf("=== LST Run Validation: %s ===\n\n", runID)

	phases := []*phase{
		validateUnits(units),
		validateReports(units, reports),
	}
	if exportDir != "" {
		exporter := scenefs.NewExporter(exportDir, observability.NewLogger("error", "text"))
		phases = append(phases, validateExports(units, exporter))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Units: %d succeeded, %d skipped, %d failed; %d correlation reports\n",
		count(units, domain.OutcomeSucceeded), count(units, domain.OutcomeSkipped),
		count(units, domain.OutcomeFailed), len(reports))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func count(units []domain.UnitResult, o domain.Outcome) int {
	n := 0
	for _, u := range units {
		if u.Outcome == o {
			n++
		}
	}
	return n
}

func validateUnits(units []domain.UnitResult) *phase {
	p := &phase{name: "Ledger completeness"}
	if len(units) == 0 {
		p.errorf("run recorded no units")
	}
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		key := u.Unit.String()
		if seen[key] {
			p.errorf("%s recorded more than once", key)
		}
		seen[key] = true

		switch u.Outcome {
		case domain.OutcomeFailed:
			p.errorf("%s failed: %s", key, u.Detail)
		case domain.OutcomeSucceeded:
			if u.Artifact == "" {
				p.errorf("%s succeeded without an artifact", key)
			}
			if u.ValidPixels <= 0 || u.ValidPixels > u.Pixels {
				p.errorf("%s: %d valid of %d pixels", key, u.ValidPixels, u.Pixels)
			}
		case domain.OutcomeSkipped:
			if u.Detail == "" {
				p.errorf("%s skipped without a reason", key)
			}
		default:
			p.errorf("%s: unknown outcome %q", key, u.Outcome)
		}
	}
	return p
}

func validateReports(units []domain.UnitResult, reports []domain.CorrelationReport) *phase {
	p := &phase{name: "Correlation reports"}
	byYear := make(map[int]domain.CorrelationReport, len(reports))
	for _, r := range reports {
		byYear[r.Year] = r
	}
	for _, u := range units {
		if u.Unit.Pipeline != domain.PipelineCorrelation || u.Outcome != domain.OutcomeSucceeded {
			continue
		}
		r, ok := byYear[u.Unit.Year]
		if !ok {
			p.errorf("correlation %d succeeded but no report was recorded", u.Unit.Year)
			continue
		}
		if r.PearsonR < -1 || r.PearsonR > 1 {
			p.errorf("correlation %d: r=%g outside [-1, 1]", r.Year, r.PearsonR)
		}
		if math.Abs(r.RSquared-r.PearsonR*r.PearsonR) > 1e-9 {
			p.errorf("correlation %d: R²=%g does not match r=%g", r.Year, r.RSquared, r.PearsonR)
		}
		if len(r.Samples) > r.PixelCount {
			p.errorf("correlation %d: %d samples from %d pixels", r.Year, len(r.Samples), r.PixelCount)
		}
		if len(r.Sensors) == 0 {
			p.errorf("correlation %d: no sensors recorded", r.Year)
		}
	}
	return p
}

func validateExports(units []domain.UnitResult, exporter *scenefs.Exporter) *phase {
	p := &phase{name: "Exported rasters"}
	for _, u := range units {
		if u.Outcome != domain.OutcomeSucceeded || u.Unit.Pipeline == domain.PipelineCorrelation {
			continue
		}
		folder, name, ok := strings.Cut(u.Artifact, "/")
		if !ok {
			p.errorf("%s: artifact %q is not folder/name", u.Unit, u.Artifact)
			continue
		}
		r, err := exporter.Read(folder, name)
		if err != nil {
			p.errorf("%s: %v", u.Unit, err)
			continue
		}
		if got := r.ValidCount(); got == 0 || got > u.ValidPixels {
			p.errorf("%s: export has %d valid pixels, ledger recorded %d", u.Unit, got, u.ValidPixels)
		}
		if u.Unit.Pipeline != domain.PipelineUTFVI {
			continue
		}
		values := make([]float64, 0, len(r.Data))
		for i, v := range r.Data {
			if r.Valid[i] {
				values = append(values, v)
			}
		}
		if mean := stat.Mean(values, nil); math.Abs(mean) > utfviTolerance {
			p.errorf("%s: UTFVI mean %g is not centered on zero", u.Unit, mean)
		}
	}
	return p
}
