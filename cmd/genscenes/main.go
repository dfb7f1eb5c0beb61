// Command genscenes writes a synthetic scene archive and study region that the
// lstpipeline service can analyze without access to a real imagery catalog.
//
// Usage:
//
//	go run ./cmd/genscenes \
//	  -scene-dir data/scenes \
//	  -region data/region.geojson \
//	  -bbox 77.0,28.5,77.4,28.9 \
//	  -start-year 2004 -end-year 2024
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/lst-pipeline/internal/adapter/scenefs"
	"github.com/couchcryptid/lst-pipeline/internal/observability"
	"github.com/couchcryptid/lst-pipeline/internal/raster"
	"github.com/couchcryptid/lst-pipeline/internal/synthetic"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := synthetic.DefaultOptions()

	sceneDir := flag.String("scene-dir", "data/scenes", "directory to write scene files into")
	regionPath := flag.String("region", "data/region.geojson", "output path for the GeoJSON study region")
	regionName := flag.String("name", "synthetic city", "name property of the region feature")
	bbox := flag.String("bbox", formatBound(defaults.Bounds), "region as minLon,minLat,maxLon,maxLat")
	startYear := flag.Int("start-year", defaults.StartYear, "first analysis year")
	endYear := flag.Int("end-year", defaults.EndYear, "last analysis year")
	landsatScale := flag.Float64("landsat-scale", defaults.LandsatScale, "reflectance pixel size in Web Mercator metres")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	clouds := flag.Float64("clouds", defaults.CloudFraction, "fraction of pixels flagged per scene")
	flag.Parse()

	bounds, err := parseBound(*bbox)
	if err != nil {
		flag.Usage()
		return err
	}

	opts := defaults
	opts.Bounds = bounds
	opts.StartYear, opts.EndYear = *startYear, *endYear
	opts.LandsatScale = *landsatScale
	opts.Seed = *seed
	opts.CloudFraction = *clouds

	logger := observability.NewLogger("info", "text")
	archive := scenefs.NewArchive(*sceneDir, logger)

	sum, err := synthetic.Generate(opts, archive)
	if err != nil {
		return fmt.Errorf("generate scenes: %w", err)
	}

	region, err := raster.NewRegion(bounds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*regionPath), 0o755); err != nil {
		return err
	}
	if err := scenefs.WriteRegion(*regionPath, region, *regionName); err != nil {
		return fmt.Errorf("write region: %w", err)
	}

	logger.Info("archive written",
		"scene_dir", *sceneDir,
		"region", *regionPath,
		"modis_scenes", sum.ModisScenes,
		"landsat_scenes", sum.LandsatScenes,
	)
	return nil
}

func parseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min must be below max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func formatBound(b orb.Bound) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}
