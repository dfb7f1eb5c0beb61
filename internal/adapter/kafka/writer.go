package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/lst-pipeline/internal/config"
	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// maxMessageBytes bounds one produced batch; a 1 km regional raster fits well below it.
const maxMessageBytes = 16 << 20

// Writer publishes exported rasters and correlation reports to Kafka.
// It implements domain.ExportSink and domain.ReportSink.
type Writer struct {
	exports messageWriter
	reports messageWriter
	logger  *slog.Logger
	clock   clockwork.Clock
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates producers for the configured export and report topics.
// A nil clock stamps exports with the wall clock.
func NewWriter(cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.KafkaBrokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchBytes:   maxMessageBytes,
		}
	}
	return &Writer{
		exports: newWriter(cfg.KafkaExportTopic),
		reports: newWriter(cfg.KafkaReportTopic),
		logger:  logger,
		clock:   clock,
	}
}

// Write implements domain.ExportSink.
func (w *Writer) Write(ctx context.Context, r *raster.Raster, opts domain.ExportOptions) error {
	out, err := domain.PrepareExport(r, opts)
	if err != nil {
		return err
	}
	msg, err := serializeRaster(out, opts, w.clock.Now().UTC())
	if err != nil {
		return err
	}
	if err := w.exports.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish export %s: %w", msg.Key, err)
	}
	w.logger.Debug("raster published", "artifact", string(msg.Key), "bytes", len(msg.Value))
	return nil
}

// PublishReport implements domain.ReportSink.
func (w *Writer) PublishReport(ctx context.Context, report domain.CorrelationReport) error {
	msg, err := serializeReport(report)
	if err != nil {
		return err
	}
	if err := w.reports.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish correlation report %d: %w", report.Year, err)
	}
	return nil
}

// Close flushes and closes both producers.
func (w *Writer) Close() error {
	errExports := w.exports.Close()
	errReports := w.reports.Close()
	if errExports != nil {
		return errExports
	}
	return errReports
}

// RasterMessage is the JSON payload of an exported raster. Values are row-major from
// the top-left pixel; invalid pixels are null.
type RasterMessage struct {
	Name        string     `json:"name"`
	Folder      string     `json:"folder"`
	CRS         string     `json:"crs"`
	OriginX     float64    `json:"origin_x"`
	OriginY     float64    `json:"origin_y"`
	Scale       float64    `json:"scale"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	ValidPixels int        `json:"valid_pixels"`
	Values      []*float64 `json:"values"`
}

func serializeRaster(r *raster.Raster, opts domain.ExportOptions, exportedAt time.Time) (kafkago.Message, error) {
	values := make([]*float64, len(r.Data))
	for i := range r.Data {
		if r.Valid[i] {
			values[i] = &r.Data[i]
		}
	}
	payload := RasterMessage{
		Name:        opts.Name,
		Folder:      opts.Folder,
		CRS:         r.Grid.CRS,
		OriginX:     r.Grid.OriginX,
		OriginY:     r.Grid.OriginY,
		Scale:       r.Grid.Scale,
		Width:       r.Grid.Width,
		Height:      r.Grid.Height,
		ValidPixels: r.ValidCount(),
		Values:      values,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize raster %s: %w", opts.Name, err)
	}
	return kafkago.Message{
		Key:   []byte(opts.Folder + "/" + opts.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "folder", Value: []byte(opts.Folder)},
			{Key: "exported_at", Value: []byte(exportedAt.Format(time.RFC3339))},
		},
	}, nil
}

func serializeReport(report domain.CorrelationReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize correlation report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(report.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_type", Value: []byte("ndvi_lst_correlation")},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
