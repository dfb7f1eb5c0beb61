package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/lst-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/lst-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/ledger"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/scenefs"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/visual"
	"github.com/couchcryptid/lst-pipeline/internal/config"
	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/pipeline"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := ledger.Open(cfg.LedgerPath, nil)
	if err != nil {
		logger.Error("failed to open ledger", "path", cfg.LedgerPath, "error", err)
		return 1
	}

	// Rasters and reports go to Kafka when enabled; otherwise rasters land in EXPORT_DIR
	// and reports are kept in the ledger only.
	var (
		exports domain.ExportSink
		reports domain.ReportSink
		writer  *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, nil)
		exports, reports = writer, writer
		logger.Info("kafka export enabled", "brokers", cfg.KafkaBrokers, "export_topic", cfg.KafkaExportTopic, "report_topic", cfg.KafkaReportTopic)
	} else {
		exports = scenefs.NewExporter(cfg.ExportDir, logger)
		logger.Info("kafka export disabled", "export_dir", cfg.ExportDir)
	}

	opts := pipeline.DefaultOptions()
	opts.Pipelines = cfg.Pipelines
	opts.StartYear, opts.EndYear = cfg.StartYear, cfg.EndYear
	opts.CorrelationYears = cfg.CorrelationYears
	opts.Scale = cfg.AnalysisScale
	opts.ExportMaxPixels = cfg.ExportMaxPixels
	opts.SeasonalFolder = cfg.ExportFolderLST
	opts.UTFVIFolder = cfg.ExportFolderUTFVI
	opts.SampleSize = cfg.ScatterSampleSize
	opts.SampleSeed = cfg.SampleSeed
	opts.Workers = cfg.Workers
	opts.RetryAttempts = cfg.RetryAttempts
	opts.LSTSensor = domain.ModisLST().WithQCThreshold(cfg.QCMaxAccepted)
	opts.Aligner = raster.NewAligner(cfg.MaxPixelsPerCell)

	p := pipeline.New(pipeline.Deps{
		Imagery: scenefs.NewArchive(cfg.SceneDir, logger),
		Regions: scenefs.NewRegionFile(cfg.RegionPath),
		Exports: exports,
		Reports: reports,
		Visual:  visual.NewLogger(logger),
		Ledger:  store,
		Logger:  logger,
		Metrics: metrics,
	}, opts)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the analysis once.
	exitCode := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("analysis started",
			"pipelines", cfg.Pipelines, "start_year", cfg.StartYear, "end_year", cfg.EndYear, "workers", cfg.Workers)
		report, err := p.Run(ctx)
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
			return
		}
		if failed := report.Count(domain.OutcomeFailed); failed > 0 {
			logger.Warn("analysis finished with failed units", "run_id", report.RunID, "failed", failed)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("interrupted, waiting for running units")
		<-done
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("ledger close error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}
