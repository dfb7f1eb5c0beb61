package domain

import "github.com/couchcryptid/lst-pipeline/internal/raster"

// BandSpec names a stored channel and the linear rescale from its integer
// encoding to physical units: physical = stored*Scale + Offset.
type BandSpec struct {
	Name   string
	Scale  float64
	Offset float64
}

// Apply converts a stored band to physical units.
func (b BandSpec) Apply(r *raster.Raster) *raster.Raster {
	if b.Scale == 1 && b.Offset == 0 {
		return r
	}
	return raster.ScaleOffset(r, b.Scale, b.Offset)
}

// Sensor describes one imagery product: its catalogue ID, the bands the pipelines
// read, and how its quality band is decoded.
type Sensor struct {
	ID     string
	Family string

	Thermal BandSpec // LST products only
	Red     BandSpec // surface reflectance products only
	NIR     BandSpec // surface reflectance products only

	QualityBand string
	QC          *raster.QCBitfield // packed-field quality decoding
	CloudBits   raster.CloudBits   // per-bit flag decoding
}

// Bands returns the stored band names to fetch for the sensor.
func (s Sensor) Bands() []string {
	var names []string
	for _, b := range []BandSpec{s.Thermal, s.Red, s.NIR} {
		if b.Name != "" {
			names = append(names, b.Name)
		}
	}
	if s.QualityBand != "" {
		names = append(names, s.QualityBand)
	}
	return names
}

// QualityMask decodes the sensor's quality band into a validity mask.
func (s Sensor) QualityMask(qa *raster.Raster) raster.Mask {
	if s.QC != nil {
		return raster.QualityMask(qa, *s.QC)
	}
	return raster.CloudMask(qa, s.CloudBits)
}

// Landsat Collection 2 surface reflectance rescale.
const (
	landsatSRScale  = 0.0000275
	landsatSROffset = -0.2
)

// ModisLST is the MOD11A2 8-day 1 km daytime land surface temperature product.
// Kelvin*50 is stored; the rescale yields degrees Celsius.
func ModisLST() Sensor {
	qc := raster.MandatoryQA
	return Sensor{
		ID:          "MODIS/061/MOD11A2",
		Family:      "MODIS",
		Thermal:     BandSpec{Name: "LST_Day_1km", Scale: 0.02, Offset: -273.15},
		QualityBand: "QC_Day",
		QC:          &qc,
	}
}

// Landsat5 is Landsat 5 TM Collection 2 Level 2 surface reflectance.
func Landsat5() Sensor {
	return Sensor{
		ID:          "LANDSAT/LT05/C02/T1_L2",
		Family:      "Landsat-TM",
		Red:         BandSpec{Name: "SR_B3", Scale: landsatSRScale, Offset: landsatSROffset},
		NIR:         BandSpec{Name: "SR_B4", Scale: landsatSRScale, Offset: landsatSROffset},
		QualityBand: "QA_PIXEL",
		CloudBits:   raster.CloudBits{1, 5, 7},
	}
}

// Landsat8 is Landsat 8 OLI Collection 2 Level 2 surface reflectance.
func Landsat8() Sensor {
	return Sensor{
		ID:          "LANDSAT/LC08/C02/T1_L2",
		Family:      "Landsat-OLI",
		Red:         BandSpec{Name: "SR_B4", Scale: landsatSRScale, Offset: landsatSROffset},
		NIR:         BandSpec{Name: "SR_B5", Scale: landsatSRScale, Offset: landsatSROffset},
		QualityBand: "QA_PIXEL",
		CloudBits:   raster.CloudBits{1, 3, 4},
	}
}

// Landsat9 is Landsat 9 OLI-2 Collection 2 Level 2 surface reflectance.
func Landsat9() Sensor {
	s := Landsat8()
	s.ID = "LANDSAT/LC09/C02/T1_L2"
	return s
}

// WithQCThreshold returns a copy of s whose packed QC field accepts values up to maxAccepted.
// Sensors decoded by cloud bits are returned unchanged.
func (s Sensor) WithQCThreshold(maxAccepted int) Sensor {
	if s.QC == nil {
		return s
	}
	qc := *s.QC
	qc.MaxAccepted = maxAccepted
	s.QC = &qc
	return s
}
