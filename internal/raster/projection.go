package raster

import (
	"errors"
	"fmt"
	"math"
)

// Supported coordinate reference systems.
const (
	CRSGeographic      = "EPSG:4326"
	CRSWebMercator     = "EPSG:3857"
	CRSModisSinusoidal = "SR-ORG:6974"
)

// ErrUnsupportedCRS is returned for coordinate reference systems without a projection here.
var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

const (
	mercatorRadius   = 6378137.0
	sinusoidalRadius = 6371007.181
	maxMercatorLat   = 85.051128779806604
)

func isSupportedCRS(crs string) bool {
	switch crs {
	case CRSGeographic, CRSWebMercator, CRSModisSinusoidal:
		return true
	}
	return false
}

// ToLonLat converts CRS coordinates to geographic longitude and latitude in degrees.
func ToLonLat(crs string, x, y float64) (lon, lat float64, err error) {
	switch crs {
	case CRSGeographic:
		return x, y, nil
	case CRSWebMercator:
		lon = x / mercatorRadius * 180 / math.Pi
		lat = (2*math.Atan(math.Exp(y/mercatorRadius)) - math.Pi/2) * 180 / math.Pi
		return lon, lat, nil
	case CRSModisSinusoidal:
		phi := y / sinusoidalRadius
		c := math.Cos(phi)
		if math.Abs(c) < 1e-12 {
			return 0, phi * 180 / math.Pi, nil
		}
		return x / (sinusoidalRadius * c) * 180 / math.Pi, phi * 180 / math.Pi, nil
	}
	return 0, 0, fmt.Errorf("%q: %w", crs, ErrUnsupportedCRS)
}

// FromLonLat converts geographic longitude and latitude in degrees to CRS coordinates.
func FromLonLat(crs string, lon, lat float64) (x, y float64, err error) {
	switch crs {
	case CRSGeographic:
		return lon, lat, nil
	case CRSWebMercator:
		lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
		x = lon * math.Pi / 180 * mercatorRadius
		y = math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * mercatorRadius
		return x, y, nil
	case CRSModisSinusoidal:
		phi := lat * math.Pi / 180
		return sinusoidalRadius * lon * math.Pi / 180 * math.Cos(phi), sinusoidalRadius * phi, nil
	}
	return 0, 0, fmt.Errorf("%q: %w", crs, ErrUnsupportedCRS)
}

// Transform converts a point between two supported coordinate reference systems.
func Transform(from, to string, x, y float64) (float64, float64, error) {
	if from == to {
		if !isSupportedCRS(from) {
			return 0, 0, fmt.Errorf("%q: %w", from, ErrUnsupportedCRS)
		}
		return x, y, nil
	}
	lon, lat, err := ToLonLat(from, x, y)
	if err != nil {
		return 0, 0, err
	}
	return FromLonLat(to, lon, lat)
}
