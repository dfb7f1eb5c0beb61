package scenefs

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

type gridRecord struct {
	CRS     string  `msgpack:"crs"`
	OriginX float64 `msgpack:"origin_x"`
	OriginY float64 `msgpack:"origin_y"`
	Scale   float64 `msgpack:"scale"`
	Width   int     `msgpack:"width"`
	Height  int     `msgpack:"height"`
}

type bandRecord struct {
	Name string    `msgpack:"name"`
	Fill float64   `msgpack:"fill"`
	Data []float64 `msgpack:"data"`
}

// sceneRecord is the on-disk form of one scene: every band shares the scene grid.
type sceneRecord struct {
	ID     string       `msgpack:"id"`
	Sensor string       `msgpack:"sensor"`
	Time   time.Time    `msgpack:"time"`
	Grid   gridRecord   `msgpack:"grid"`
	Bands  []bandRecord `msgpack:"bands"`
}

// rasterRecord is the on-disk form of one exported raster.
type rasterRecord struct {
	Name   string     `msgpack:"name"`
	Folder string     `msgpack:"folder"`
	Grid   gridRecord `msgpack:"grid"`
	Band   bandRecord `msgpack:"band"`
}

func toGridRecord(g raster.Grid) gridRecord {
	return gridRecord{CRS: g.CRS, OriginX: g.OriginX, OriginY: g.OriginY, Scale: g.Scale, Width: g.Width, Height: g.Height}
}

func (g gridRecord) grid() (raster.Grid, error) {
	return raster.NewGrid(g.CRS, g.OriginX, g.OriginY, g.Scale, g.Width, g.Height)
}

// encodeBand writes invalid samples as NaN, which no valid sample can equal.
func encodeBand(name string, r *raster.Raster) bandRecord {
	fill := math.NaN()
	data := make([]float64, len(r.Data))
	for i, v := range r.Data {
		if r.Valid[i] {
			data[i] = v
		} else {
			data[i] = fill
		}
	}
	return bandRecord{Name: name, Fill: fill, Data: data}
}

// decodeBand marks NaN samples and samples equal to the band's fill value invalid.
func decodeBand(b bandRecord, g raster.Grid) (*raster.Raster, error) {
	valid := make([]bool, len(b.Data))
	for i, v := range b.Data {
		valid[i] = v != b.Fill && !math.IsNaN(v)
	}
	r, err := raster.FromMasked(g, b.Data, valid)
	if err != nil {
		return nil, fmt.Errorf("band %s: %w", b.Name, err)
	}
	return r, nil
}

// EncodeScene writes scene in the archive format. All bands must share one grid.
func EncodeScene(w io.Writer, scene raster.Scene) error {
	names := make([]string, 0, len(scene.Bands))
	for name := range scene.Bands {
		names = append(names, name)
	}
	if len(names) == 0 {
		return fmt.Errorf("scene %s has no bands", scene.ID)
	}
	slices.Sort(names)

	g := scene.Bands[names[0]].Grid
	rec := sceneRecord{ID: scene.ID, Sensor: scene.Sensor, Time: scene.Time.UTC(), Grid: toGridRecord(g)}
	for _, name := range names {
		band := scene.Bands[name]
		if !band.Grid.Equal(g) {
			return fmt.Errorf("scene %s band %s: %w", scene.ID, name, raster.ErrGridMismatch)
		}
		rec.Bands = append(rec.Bands, encodeBand(name, band))
	}
	return msgpack.NewEncoder(w).Encode(&rec)
}

// DecodeScene reads one archived scene, keeping only the named bands (all bands when
// names is empty).
func DecodeScene(r io.Reader, names ...string) (raster.Scene, error) {
	var rec sceneRecord
	if err := msgpack.NewDecoder(r).Decode(&rec); err != nil {
		return raster.Scene{}, fmt.Errorf("decode scene: %w", err)
	}
	g, err := rec.Grid.grid()
	if err != nil {
		return raster.Scene{}, fmt.Errorf("scene %s: %w", rec.ID, err)
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	scene := raster.Scene{ID: rec.ID, Sensor: rec.Sensor, Time: rec.Time.UTC(), Bands: make(map[string]*raster.Raster)}
	for _, b := range rec.Bands {
		if len(want) > 0 && !want[b.Name] {
			continue
		}
		band, err := decodeBand(b, g)
		if err != nil {
			return raster.Scene{}, fmt.Errorf("scene %s: %w", rec.ID, err)
		}
		scene.Bands[b.Name] = band
	}
	for _, n := range names {
		if _, ok := scene.Bands[n]; !ok {
			return raster.Scene{}, fmt.Errorf("scene %s: missing band %q", rec.ID, n)
		}
	}
	return scene, nil
}

// EncodeRaster writes an exported raster.
func EncodeRaster(w io.Writer, name, folder string, r *raster.Raster) error {
	rec := rasterRecord{Name: name, Folder: folder, Grid: toGridRecord(r.Grid), Band: encodeBand(name, r)}
	return msgpack.NewEncoder(w).Encode(&rec)
}

// DecodeRaster reads a raster written by EncodeRaster.
func DecodeRaster(r io.Reader) (*raster.Raster, error) {
	var rec rasterRecord
	if err := msgpack.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}
	g, err := rec.Grid.grid()
	if err != nil {
		return nil, err
	}
	return decodeBand(rec.Band, g)
}

// sceneHeader decodes only the identifying fields of an archived scene.
func sceneHeader(data []byte) (sceneRecord, error) {
	var rec struct {
		ID     string     `msgpack:"id"`
		Sensor string     `msgpack:"sensor"`
		Time   time.Time  `msgpack:"time"`
		Grid   gridRecord `msgpack:"grid"`
	}
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return sceneRecord{}, fmt.Errorf("decode scene header: %w", err)
	}
	return sceneRecord{ID: rec.ID, Sensor: rec.Sensor, Time: rec.Time.UTC(), Grid: rec.Grid}, nil
}
