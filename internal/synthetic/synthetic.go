// Package synthetic generates a reproducible scene archive with an urban heat island:
// land surface temperature peaks at the region's center where vegetation is sparsest.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/lst-pipeline/internal/domain"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// SceneWriter stores generated scenes.
type SceneWriter interface {
	WriteScene(scene raster.Scene) error
}

// Options controls the generated archive.
type Options struct {
	Bounds        orb.Bound // lon/lat extent
	StartYear     int       // first analysis year; the prior December is included for Winter
	EndYear       int
	ModisScale    float64 // metres, sinusoidal
	LandsatScale  float64 // metres, Web Mercator
	ModisInterval int     // days between LST composites
	Seed          uint64
	CloudFraction float64 // share of pixels flagged per scene
}

// DefaultOptions returns a small archive over a 0.4 degree square.
func DefaultOptions() Options {
	return Options{
		Bounds:        orb.Bound{Min: orb.Point{77.0, 28.5}, Max: orb.Point{77.4, 28.9}},
		StartYear:     2004,
		EndYear:       2024,
		ModisScale:    1000,
		LandsatScale:  500,
		ModisInterval: 8,
		Seed:          1,
		CloudFraction: 0.1,
	}
}

// Summary counts what Generate wrote.
type Summary struct {
	ModisScenes   int
	LandsatScenes int
}

// Generate writes MODIS LST scenes every ModisInterval days from December of the year
// before StartYear through EndYear, and Landsat surface reflectance scenes every 16 days
// over each year's March to May window using the sensor family for that year.
func Generate(opts Options, w SceneWriter) (Summary, error) {
	var sum Summary
	if opts.EndYear < opts.StartYear {
		return sum, fmt.Errorf("end year %d before start year %d", opts.EndYear, opts.StartYear)
	}
	modisGrid, err := gridFor(opts.Bounds, raster.CRSModisSinusoidal, opts.ModisScale)
	if err != nil {
		return sum, err
	}
	landsatGrid, err := gridFor(opts.Bounds, raster.CRSWebMercator, opts.LandsatScale)
	if err != nil {
		return sum, err
	}

	g := generator{opts: opts, rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5eed))}

	modis := domain.ModisLST()
	interval := max(opts.ModisInterval, 1)
	end := time.Date(opts.EndYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	for t := time.Date(opts.StartYear-1, time.December, 1, 0, 0, 0, 0, time.UTC); t.Before(end); t = t.AddDate(0, 0, interval) {
		scene, err := g.modisScene(modis, modisGrid, t)
		if err != nil {
			return sum, err
		}
		if err := w.WriteScene(scene); err != nil {
			return sum, fmt.Errorf("write %s: %w", scene.ID, err)
		}
		sum.ModisScenes++
	}

	families := domain.DefaultFamilyTable()
	for year := opts.StartYear; year <= opts.EndYear; year++ {
		sensors, err := families.Lookup(year)
		if err != nil {
			return sum, err
		}
		start, stop := domain.Summer.Window(year)
		for i, sensor := range sensors {
			// Sensors of a merged family are offset by 8 days, as Landsat 8 and 9 are.
			for t := start.AddDate(0, 0, 8*i); t.Before(stop); t = t.AddDate(0, 0, 16) {
				scene, err := g.landsatScene(sensor, landsatGrid, t)
				if err != nil {
					return sum, err
				}
				if err := w.WriteScene(scene); err != nil {
					return sum, fmt.Errorf("write %s: %w", scene.ID, err)
				}
				sum.LandsatScenes++
			}
		}
	}
	return sum, nil
}

// gridFor covers a lon/lat bound with a crs grid snapped to multiples of scale.
func gridFor(b orb.Bound, crs string, scale float64) (raster.Grid, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		x, y, err := raster.FromLonLat(crs, p[0], p[1])
		if err != nil {
			return raster.Grid{}, err
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	originX := math.Floor(minX/scale) * scale
	originY := math.Ceil(maxY/scale) * scale
	width := int(math.Ceil((maxX - originX) / scale))
	height := int(math.Ceil((originY - minY) / scale))
	return raster.NewGrid(crs, originX, originY, scale, max(width, 1), max(height, 1))
}

type generator struct {
	opts Options
	rng  *rand.Rand
}

// urbanity is 1 at the region center and decays to about 0 at its edge.
func (g *generator) urbanity(lon, lat float64) float64 {
	c := g.opts.Bounds.Center()
	halfW := (g.opts.Bounds.Max[0] - g.opts.Bounds.Min[0]) / 2
	halfH := (g.opts.Bounds.Max[1] - g.opts.Bounds.Min[1]) / 2
	dx := (lon - c[0]) / halfW
	dy := (lat - c[1]) / halfH
	return math.Exp(-2.5 * (dx*dx + dy*dy))
}

// seasonalBase is the rural land surface temperature in degrees Celsius on day t,
// warming slowly across the years.
func seasonalBase(t time.Time) float64 {
	doy := float64(t.YearDay())
	annual := 27 + 12*math.Sin(2*math.Pi*(doy-105)/365.25)
	trend := 0.03 * float64(t.Year()-2000)
	return annual + trend
}

func (g *generator) each(grid raster.Grid, f func(i int, lon, lat float64)) error {
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			x, y := grid.PixelCenter(col, row)
			lon, lat, err := raster.ToLonLat(grid.CRS, x, y)
			if err != nil {
				return err
			}
			f(grid.Index(col, row), lon, lat)
		}
	}
	return nil
}

func (g *generator) modisScene(sensor domain.Sensor, grid raster.Grid, t time.Time) (raster.Scene, error) {
	lst := make([]float64, grid.Len())
	qc := make([]float64, grid.Len())
	base := seasonalBase(t)
	err := g.each(grid, func(i int, lon, lat float64) {
		celsius := base + 6*g.urbanity(lon, lat) + g.rng.NormFloat64()*0.8
		lst[i] = math.Round((celsius - sensor.Thermal.Offset) / sensor.Thermal.Scale)
		switch r := g.rng.Float64(); {
		case r < g.opts.CloudFraction:
			qc[i] = 2 // retrieved, cloud affected
		case r < g.opts.CloudFraction*2:
			qc[i] = 1 // average quality
		}
	})
	if err != nil {
		return raster.Scene{}, err
	}
	return scene(sensor, fmt.Sprintf("MOD11A2_A%s", t.Format("2006002")), t, grid, map[string][]float64{
		sensor.Thermal.Name: lst,
		sensor.QualityBand:  qc,
	})
}

func (g *generator) landsatScene(sensor domain.Sensor, grid raster.Grid, t time.Time) (raster.Scene, error) {
	red := make([]float64, grid.Len())
	nir := make([]float64, grid.Len())
	qa := make([]float64, grid.Len())
	cloudBit := sensor.CloudBits[len(sensor.CloudBits)-1]
	err := g.each(grid, func(i int, lon, lat float64) {
		ndvi := 0.65 - 0.5*g.urbanity(lon, lat) + g.rng.NormFloat64()*0.03
		ndvi = math.Max(-0.2, math.Min(0.9, ndvi))
		redRefl := 0.06 + 0.04*g.rng.Float64()
		nirRefl := redRefl * (1 + ndvi) / (1 - ndvi)
		red[i] = math.Round((redRefl - sensor.Red.Offset) / sensor.Red.Scale)
		nir[i] = math.Round((nirRefl - sensor.NIR.Offset) / sensor.NIR.Scale)
		if g.rng.Float64() < g.opts.CloudFraction {
			qa[i] = float64(uint64(1) << cloudBit)
		}
	})
	if err != nil {
		return raster.Scene{}, err
	}
	id := fmt.Sprintf("%s_%s", sensor.Family, t.Format("20060102"))
	return scene(sensor, id, t, grid, map[string][]float64{
		sensor.Red.Name:    red,
		sensor.NIR.Name:    nir,
		sensor.QualityBand: qa,
	})
}

func scene(sensor domain.Sensor, id string, t time.Time, grid raster.Grid, bands map[string][]float64) (raster.Scene, error) {
	s := raster.Scene{ID: id, Sensor: sensor.ID, Time: t, Bands: make(map[string]*raster.Raster, len(bands))}
	for name, data := range bands {
		r, err := raster.FromValues(grid, data)
		if err != nil {
			return raster.Scene{}, fmt.Errorf("%s band %s: %w", id, name, err)
		}
		s.Bands[name] = r
	}
	return s, nil
}
