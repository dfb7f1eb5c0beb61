package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/stats"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestShowLayer(t *testing.T) {
	var buf bytes.Buffer
	v := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	g, err := raster.NewGrid(raster.CRSGeographic, 0, 2, 1, 2, 1)
	require.NoError(t, err)
	r, err := raster.FromValues(g, []float64{22.5, 38})
	require.NoError(t, err)

	v.ShowLayer(context.Background(), "Summer LST 2004", r, domain.VisParams{Min: 20, Max: 45, Palette: []string{"blue", "red"}})

	line := decode(t, &buf)
	assert.Equal(t, "map layer", line["msg"])
	assert.Equal(t, "Summer LST 2004", line["layer"])
	assert.InDelta(t, 22.5, line["data_min"], 0)
	assert.InDelta(t, 38, line["data_max"], 0)
	assert.InDelta(t, 2, line["valid_pixels"], 0)
}

func TestShowChart(t *testing.T) {
	var buf bytes.Buffer
	v := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	v.ShowChart(context.Background(), domain.Chart{
		Title:     "NDVI vs LST (2014)",
		Points:    []stats.Pair{{X: 0.1, Y: 40}, {X: 0.5, Y: 33}},
		Trendline: &stats.Fit{Slope: -17.5, Intercept: 41.75, Valid: true},
	})

	line := decode(t, &buf)
	assert.Equal(t, "scatter chart", line["msg"])
	assert.InDelta(t, 2, line["points"], 0)
	assert.InDelta(t, -17.5, line["slope"], 0)
}
