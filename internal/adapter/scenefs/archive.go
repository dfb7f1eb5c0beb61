package scenefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

const sceneExt = ".msgpack"

// Archive is a directory of msgpack scene files, one subdirectory per sensor.
type Archive struct {
	dir    string
	logger *slog.Logger
}

// NewArchive opens the scene archive rooted at dir.
func NewArchive(dir string, logger *slog.Logger) *Archive {
	return &Archive{dir: dir, logger: logger}
}

// sensorDir maps a catalogue ID such as LANDSAT/LC08/C02/T1_L2 to a directory name.
func (a *Archive) sensorDir(sensorID string) string {
	return filepath.Join(a.dir, strings.ReplaceAll(sensorID, "/", "_"))
}

// Fetch implements domain.ImagerySource. Scenes are returned in acquisition order.
// A sensor with no directory has no scenes.
func (a *Archive) Fetch(ctx context.Context, sensorID string, bands []string, years domain.YearRange, bounds orb.Bound) ([]raster.Scene, error) {
	dir := a.sensorDir(sensorID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var scenes []raster.Scene
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != sceneExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scene, ok, err := a.load(filepath.Join(dir, e.Name()), bands, years, bounds)
		if err != nil {
			return nil, err
		}
		if ok {
			scenes = append(scenes, scene)
		}
	}

	slices.SortStableFunc(scenes, func(x, y raster.Scene) int { return x.Time.Compare(y.Time) })
	a.logger.Debug("scenes fetched", "sensor", sensorID, "from", years.From, "to", years.To, "count", len(scenes))
	return scenes, nil
}

// load decodes one scene file if it falls in years and its footprint intersects bounds.
func (a *Archive) load(path string, bands []string, years domain.YearRange, bounds orb.Bound) (raster.Scene, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return raster.Scene{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	hdr, err := sceneHeader(data)
	if err != nil {
		return raster.Scene{}, false, fmt.Errorf("%s: %w", path, err)
	}
	if !years.Contains(hdr.Time) {
		return raster.Scene{}, false, nil
	}
	g, err := hdr.Grid.grid()
	if err != nil {
		return raster.Scene{}, false, fmt.Errorf("%s: %w", path, err)
	}
	footprint, err := g.LonLatBound()
	if err != nil {
		return raster.Scene{}, false, fmt.Errorf("%s: %w", path, err)
	}
	if !footprint.Intersects(bounds) {
		return raster.Scene{}, false, nil
	}

	scene, err := DecodeScene(bytes.NewReader(data), bands...)
	if err != nil {
		return raster.Scene{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return scene, true, nil
}

// WriteScene stores scene under its sensor directory, replacing any scene with the same ID.
func (a *Archive) WriteScene(scene raster.Scene) error {
	if scene.ID == "" || scene.Sensor == "" {
		return errors.New("scene ID and sensor are required")
	}
	var buf bytes.Buffer
	if err := EncodeScene(&buf, scene); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(a.sensorDir(scene.Sensor), scene.ID+sceneExt), buf.Bytes())
}

// writeFileAtomic writes data to a temporary sibling and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
