package domain

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/lst-pipeline/internal/raster"
)

// ErrNoScenes is returned when a collection holds no scene to derive a grid from.
var ErrNoScenes = errors.New("no scenes")

// PrepareLST masks a thermal scene by its quality band and converts it to degrees Celsius.
func PrepareLST(scene raster.Scene, sensor Sensor) (raster.Observation, error) {
	lst, err := scene.Band(sensor.Thermal.Name)
	if err != nil {
		return raster.Observation{}, err
	}
	qa, err := scene.Band(sensor.QualityBand)
	if err != nil {
		return raster.Observation{}, err
	}
	masked, err := raster.ApplyMask(lst, sensor.QualityMask(qa))
	if err != nil {
		return raster.Observation{}, fmt.Errorf("mask scene %s: %w", scene.ID, err)
	}
	return raster.Observation{Time: scene.Time, Raster: sensor.Thermal.Apply(masked)}, nil
}

// PrepareReflectance cloud-masks a surface reflectance scene and returns its red
// and near-infrared bands in reflectance units.
func PrepareReflectance(scene raster.Scene, sensor Sensor) (red, nir raster.Observation, err error) {
	qa, err := scene.Band(sensor.QualityBand)
	if err != nil {
		return red, nir, err
	}
	mask := sensor.QualityMask(qa)

	prep := func(spec BandSpec) (raster.Observation, error) {
		band, err := scene.Band(spec.Name)
		if err != nil {
			return raster.Observation{}, err
		}
		masked, err := raster.ApplyMask(band, mask)
		if err != nil {
			return raster.Observation{}, fmt.Errorf("mask scene %s: %w", scene.ID, err)
		}
		return raster.Observation{Time: scene.Time, Raster: spec.Apply(masked)}, nil
	}

	if red, err = prep(sensor.Red); err != nil {
		return red, nir, err
	}
	nir, err = prep(sensor.NIR)
	return red, nir, err
}

// LSTSeries prepares every scene as an LST observation.
func LSTSeries(scenes []raster.Scene, sensor Sensor) (raster.TimeSeries, error) {
	if len(scenes) == 0 {
		return raster.TimeSeries{}, ErrNoScenes
	}
	obs := make([]raster.Observation, 0, len(scenes))
	for _, s := range scenes {
		o, err := PrepareLST(s, sensor)
		if err != nil {
			return raster.TimeSeries{}, err
		}
		obs = append(obs, o)
	}
	return raster.NewTimeSeries(obs[0].Raster.Grid, obs)
}

// ReflectanceSeries prepares every scene and splits it into red and NIR series.
func ReflectanceSeries(scenes []raster.Scene, sensor Sensor) (red, nir raster.TimeSeries, err error) {
	if len(scenes) == 0 {
		return red, nir, ErrNoScenes
	}
	redObs := make([]raster.Observation, 0, len(scenes))
	nirObs := make([]raster.Observation, 0, len(scenes))
	for _, s := range scenes {
		r, n, err := PrepareReflectance(s, sensor)
		if err != nil {
			return red, nir, err
		}
		redObs = append(redObs, r)
		nirObs = append(nirObs, n)
	}
	g := redObs[0].Raster.Grid
	if red, err = raster.NewTimeSeries(g, redObs); err != nil {
		return red, nir, err
	}
	nir, err = raster.NewTimeSeries(g, nirObs)
	return red, nir, err
}
