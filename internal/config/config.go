package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Collaborators.
	SceneDir   string
	RegionPath string
	ExportDir  string
	LedgerPath string

	// Analysis policy.
	Pipelines         []string
	StartYear         int
	EndYear           int
	CorrelationYears  []int
	AnalysisScale     float64
	MaxPixelsPerCell  int
	ExportMaxPixels   int64
	ExportFolderLST   string
	ExportFolderUTFVI string
	ScatterSampleSize int
	SampleSeed        uint64
	QCMaxAccepted     int

	// Execution.
	Workers       int
	RetryAttempts int

	// Kafka export and report transport.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaExportTopic string
	KafkaReportTopic string
}

var knownPipelines = map[string]bool{
	domain.PipelineSeasonal:    true,
	domain.PipelineUTFVI:       true,
	domain.PipelineCorrelation: true,
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		SceneDir:          sharedcfg.EnvOrDefault("SCENE_DIR", "data/scenes"),
		RegionPath:        sharedcfg.EnvOrDefault("REGION_PATH", "data/region.geojson"),
		ExportDir:         sharedcfg.EnvOrDefault("EXPORT_DIR", "data/exports"),
		LedgerPath:        sharedcfg.EnvOrDefault("LEDGER_PATH", "data/ledger.db"),
		Pipelines:         splitList(sharedcfg.EnvOrDefault("PIPELINES", "seasonal,utfvi,correlation")),
		ExportFolderLST:   sharedcfg.EnvOrDefault("EXPORT_FOLDER_SEASONAL", "Seasonal_LST"),
		ExportFolderUTFVI: sharedcfg.EnvOrDefault("EXPORT_FOLDER_UTFVI", "UTFVI"),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaExportTopic:  sharedcfg.EnvOrDefault("KAFKA_EXPORT_TOPIC", "lst-exports"),
		KafkaReportTopic:  sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "lst-correlation-reports"),
	}
	if cfg.StartYear, err = parseInt("START_YEAR", 2004); err != nil {
		return nil, err
	}
	if cfg.EndYear, err = parseInt("END_YEAR", 2024); err != nil {
		return nil, err
	}
	if cfg.MaxPixelsPerCell, err = parsePositiveInt("MAX_PIXELS_PER_CELL", 1024); err != nil {
		return nil, err
	}
	if cfg.ScatterSampleSize, err = parsePositiveInt("SCATTER_SAMPLE_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parsePositiveInt("WORKERS", runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = parsePositiveInt("RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.QCMaxAccepted, err = parseInt("QC_MAX_ACCEPTED", 1); err != nil {
		return nil, err
	}
	if cfg.AnalysisScale, err = parseScale(); err != nil {
		return nil, err
	}
	if cfg.ExportMaxPixels, err = parseExportMaxPixels(); err != nil {
		return nil, err
	}
	if cfg.SampleSeed, err = parseSeed(); err != nil {
		return nil, err
	}
	if cfg.CorrelationYears, err = domain.ParseYears(sharedcfg.EnvOrDefault("CORRELATION_YEARS", "2004,2014,2024")); err != nil {
		return nil, fmt.Errorf("invalid CORRELATION_YEARS: %w", err)
	}

	cfg.KafkaEnabled = os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Enabled reports whether the named pipeline should run.
func (c *Config) Enabled(pipeline string) bool {
	for _, p := range c.Pipelines {
		if p == pipeline {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if len(c.Pipelines) == 0 {
		return errors.New("PIPELINES is required")
	}
	for _, p := range c.Pipelines {
		if !knownPipelines[p] {
			return fmt.Errorf("PIPELINES: unknown pipeline %q", p)
		}
	}
	if c.EndYear < c.StartYear {
		return fmt.Errorf("END_YEAR %d is before START_YEAR %d", c.EndYear, c.StartYear)
	}
	if c.Enabled(domain.PipelineCorrelation) && len(c.CorrelationYears) == 0 {
		return errors.New("CORRELATION_YEARS is required when the correlation pipeline is enabled")
	}
	if c.QCMaxAccepted < -1 || c.QCMaxAccepted > 3 {
		return fmt.Errorf("QC_MAX_ACCEPTED %d must be between -1 and 3", c.QCMaxAccepted)
	}
	if c.SceneDir == "" {
		return errors.New("SCENE_DIR is required")
	}
	if c.RegionPath == "" {
		return errors.New("REGION_PATH is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	n, err := parseInt(key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func parseScale() (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("ANALYSIS_SCALE", "1000"), 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid ANALYSIS_SCALE")
	}
	return v, nil
}

func parseExportMaxPixels() (int64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EXPORT_MAX_PIXELS", "1e13"), 64)
	if err != nil || v < 1 {
		return 0, errors.New("invalid EXPORT_MAX_PIXELS")
	}
	return int64(v), nil
}

func parseSeed() (uint64, error) {
	v, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SAMPLE_SEED", "1"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid SAMPLE_SEED")
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
