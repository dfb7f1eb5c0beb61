//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/ledger"
	"github.com/couchcryptid/lst-pipeline/internal/adapter/scenefs"
	"github.com/couchcryptid/lst-pipeline/internal/config"
	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/pipeline"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/synthetic"
)

const (
	testExportTopic = "test-exports"
	testReportTopic = "test-reports"
)

type received struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

func readMessages(ctx context.Context, t *testing.T, broker, topic string, n int) []received {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-%s-%d", topic, time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
		MaxBytes:    32 << 20,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	out := make([]received, 0, n)
	for len(out) < n {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		cancel()
		require.NoError(t, err, "read from %s", topic)

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, received{Key: string(msg.Key), Value: msg.Value, Headers: headers})
	}
	return out
}

// TestPipelineEndToEnd runs every analysis over a generated archive and publishes
// rasters and the correlation report to a real broker.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testExportTopic)
	createTopic(t, broker, testReportTopic)

	dir := t.TempDir()
	archive := scenefs.NewArchive(filepath.Join(dir, "scenes"), discardLogger())

	gen := synthetic.DefaultOptions()
	gen.Bounds = orb.Bound{Min: orb.Point{77.0, 28.5}, Max: orb.Point{77.1, 28.6}}
	gen.StartYear, gen.EndYear = 2004, 2004
	gen.LandsatScale = 250
	_, err := synthetic.Generate(gen, archive)
	require.NoError(t, err)

	region, err := raster.NewRegion(gen.Bounds)
	require.NoError(t, err)
	regionPath := filepath.Join(dir, "region.geojson")
	require.NoError(t, scenefs.WriteRegion(regionPath, region, "test city"))

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaExportTopic: testExportTopic,
		KafkaReportTopic: testReportTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger(), nil)
	t.Cleanup(func() { _ = writer.Close() })

	store, err := ledger.Open(filepath.Join(dir, "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	opts := pipeline.DefaultOptions()
	opts.StartYear, opts.EndYear = 2004, 2004
	opts.CorrelationYears = []int{2004}

	p := pipeline.New(pipeline.Deps{
		Imagery: archive,
		Regions: scenefs.NewRegionFile(regionPath),
		Exports: writer,
		Reports: writer,
		Ledger:  store,
		Logger:  discardLogger(),
		Metrics: observability.NewMetricsForTesting(),
	}, opts)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	assert.Equal(t, 5, report.Count(domain.OutcomeSucceeded), "%+v", report.Results)

	exports := readMessages(ctx, t, broker, testExportTopic, 4)
	keys := make([]string, 0, len(exports))
	for _, m := range exports {
		keys = append(keys, m.Key)
		assert.Contains(t, m.Headers, "exported_at")

		var msg kafka.RasterMessage
		require.NoError(t, json.Unmarshal(m.Value, &msg))
		assert.Equal(t, raster.CRSModisSinusoidal, msg.CRS)
		assert.Positive(t, msg.ValidPixels)
		assert.Len(t, msg.Values, msg.Width*msg.Height)
	}
	assert.ElementsMatch(t, []string{
		"Seasonal_LST/Summer_LST_2004",
		"Seasonal_LST/Winter_LST_2004",
		"UTFVI/UTFVI_Summer_2004",
		"UTFVI/UTFVI_Winter_2004",
	}, keys)

	reports := readMessages(ctx, t, broker, testReportTopic, 1)
	assert.Equal(t, "2004", reports[0].Key)
	assert.Equal(t, "ndvi_lst_correlation", reports[0].Headers["report_type"])

	var corr domain.CorrelationReport
	require.NoError(t, json.Unmarshal(reports[0].Value, &corr))
	assert.Equal(t, []string{domain.Landsat5().ID}, corr.Sensors)
	assert.Negative(t, corr.PearsonR, "urban core should be hot and sparsely vegetated")
	assert.Negative(t, corr.Slope)
	assert.NotEmpty(t, corr.Samples)

	units, err := store.Units(ctx, report.RunID)
	require.NoError(t, err)
	assert.Len(t, units, 5)
}
