// Package visual reports display requests as structured log records.
package visual

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// Logger implements domain.Visualizer by logging a summary of each layer and chart.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// ShowLayer logs the layer's stretch and the value range of its valid pixels.
func (l *Logger) ShowLayer(ctx context.Context, name string, r *raster.Raster, vis domain.VisParams) {
	attrs := []slog.Attr{
		slog.String("layer", name),
		slog.Float64("vis_min", vis.Min),
		slog.Float64("vis_max", vis.Max),
		slog.Any("palette", vis.Palette),
		slog.Int("valid_pixels", r.ValidCount()),
	}
	if lo, hi, ok := r.Range(); ok {
		attrs = append(attrs, slog.Float64("data_min", lo), slog.Float64("data_max", hi))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "map layer", attrs...)
}

// ShowChart logs the chart's sample count and trend line.
func (l *Logger) ShowChart(ctx context.Context, chart domain.Chart) {
	attrs := []slog.Attr{
		slog.String("chart", chart.Title),
		slog.String("x", chart.XLabel),
		slog.String("y", chart.YLabel),
		slog.Int("points", len(chart.Points)),
	}
	if chart.Trendline != nil && chart.Trendline.Valid {
		attrs = append(attrs,
			slog.Float64("slope", chart.Trendline.Slope),
			slog.Float64("intercept", chart.Trendline.Intercept),
		)
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "scatter chart", attrs...)
}
