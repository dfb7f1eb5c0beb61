package scenefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// RegionFile serves the area of interest from a GeoJSON file holding a
// FeatureCollection, a Feature, or a bare polygonal geometry in lon/lat.
type RegionFile struct {
	path string
}

// NewRegionFile creates a RegionFile for path.
func NewRegionFile(path string) *RegionFile {
	return &RegionFile{path: path}
}

// Region implements domain.RegionSource.
func (f *RegionFile) Region(ctx context.Context) (*raster.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read region: %w", err)
	}
	region, err := ParseRegion(data)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", f.path, err)
	}
	return region, nil
}

// ParseRegion decodes GeoJSON into a Region.
func ParseRegion(data []byte) (*raster.Region, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var geom orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse feature collection: %w", err)
		}
		var c orb.Collection
		for _, feat := range fc.Features {
			c = append(c, feat.Geometry)
		}
		geom = c
	case "Feature":
		feat, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse feature: %w", err)
		}
		geom = feat.Geometry
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse geometry: %w", err)
		}
		geom = g.Geometry()
	}
	return raster.NewRegion(geom)
}

// WriteRegion stores region as a single-feature GeoJSON FeatureCollection.
func WriteRegion(path string, region *raster.Region, name string) error {
	fc := geojson.NewFeatureCollection()
	feat := geojson.NewFeature(region.Geometry())
	feat.Properties["name"] = name
	fc.Append(feat)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	return writeFileAtomic(path, data)
}
