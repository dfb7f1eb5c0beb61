// Package raster implements in-memory single-band rasters with validity masks and
// the operations the thermal analysis pipelines are built from.
//
// # Validity
//
// Every Raster carries a per-pixel validity flag. Operations follow two rules:
//
//   - Combining rasters produces a valid pixel only where every input pixel is valid.
//   - A result that is not a finite number (division by zero, overflow) is stored as
//     an invalid pixel, never as a numeric sentinel.
//
// # Grids
//
// A Grid is a north-up pixel array anchored at its upper-left corner. Pixel edge length
// (Scale) is expressed in the units of the grid's CRS: metres for the MODIS sinusoidal
// and Web Mercator grids, degrees for geographic grids.
//
// # Quality bits
//
// MODIS LST QC integers pack the mandatory QA flag in bits 0-1:
//
//	0 good | 1 average | 2 not produced (cloud) | 3 not produced (other)
//
// Landsat Collection 2 QA_PIXEL integers use one bit per condition; a pixel is dropped
// when any configured bit (fill, dilated cloud, cloud, cloud shadow) is set.
package raster
