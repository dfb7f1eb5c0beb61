package scenefs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// Exporter writes exported rasters to <dir>/<folder>/<name>.msgpack.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// NewExporter creates an Exporter rooted at dir.
func NewExporter(dir string, logger *slog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Write implements domain.ExportSink.
func (e *Exporter) Write(ctx context.Context, r *raster.Raster, opts domain.ExportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := domain.PrepareExport(r, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := EncodeRaster(&buf, opts.Name, opts.Folder, out); err != nil {
		return fmt.Errorf("encode export %s: %w", opts.Name, err)
	}
	path := e.path(opts.Folder, opts.Name)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	e.logger.Debug("raster exported", "path", path, "valid_pixels", out.ValidCount())
	return nil
}

// Read loads a raster previously written by Write.
func (e *Exporter) Read(folder, name string) (*raster.Raster, error) {
	f, err := os.Open(e.path(folder, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeRaster(f)
}

func (e *Exporter) path(folder, name string) string {
	return filepath.Join(e.dir, folder, name+sceneExt)
}
