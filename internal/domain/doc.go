// Package domain models the thermal analysis: seasons, sensors, scene preparation,
// units of work, and the collaborators the pipelines talk to.
//
// # Products
//
// Land surface temperature comes from MODIS MOD11A2 (8-day, 1 km):
//
//	LST_Day_1km  uint16, Kelvin * 50      -> °C = v*0.02 - 273.15
//	QC_Day       uint8, bits 0-1 mandatory QA (0 good, 1 average, 2-3 rejected)
//
// Vegetation comes from Landsat Collection 2 Level 2 surface reflectance (30 m):
//
//	SR_Bn        uint16                    -> reflectance = v*0.0000275 - 0.2
//	QA_PIXEL     uint16, one bit per flag
//	  Landsat 5:    bits 1, 5, 7 rejected
//	  Landsat 8/9:  bits 1 (dilated cloud), 3 (cloud), 4 (cloud shadow) rejected
//
// Red/NIR are SR_B3/SR_B4 on Landsat 5 and SR_B4/SR_B5 on Landsat 8/9.
//
// # Seasons
//
// Summer is [Mar 1, Jun 1) of the analysis year. Winter is [Dec 1 of the prior year,
// Mar 1), so the 2004 winter composite includes December 2003.
//
// # Indices
//
//	NDVI  = (NIR - Red) / (NIR + Red)          unitless, [-1, 1]
//	UTFVI = (Ts - Tmean) / Tmean               unitless, typically [-0.1, 0.1]
//
// Tmean is the regional mean of the seasonal LST composite at the analysis scale.
package domain
