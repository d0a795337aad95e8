/*
Copyright © 2018 the AMET authors.
This file is part of AMET.

AMET is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AMET is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AMET.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package amet calculates the atmospheric meridional energy transport (AMET)
// from EC-Earth model output.
//
// Each model leg is processed as a single pass over its 3-hourly time steps:
// the fields are loaded, a barotropic wind correction is applied so that the
// vertically integrated mass flux is conserved, the corrected energy fluxes
// are integrated over the atmospheric column and split into internal, latent,
// geopotential and kinetic components, and the results are averaged into
// monthly means that are written to NetCDF files both on the full grid and
// as zonal integrals.
package amet

import "time"

// Version gives the version number.
const Version = "1.0.0"

// Constants holds the physical constants used in the calculations.
type Constants struct {
	G  float64 // gravitational acceleration [m / s2]
	R  float64 // radius of the earth [m]
	Cp float64 // heat capacity of air [J/(kg K)]
	Lv float64 // latent heat of vaporization [J/kg]
}

// DefaultConstants are the constants used for EC-Earth output. The earth is
// taken to be a perfect sphere.
var DefaultConstants = Constants{
	G:  9.80616,
	R:  6371009,
	Cp: 1004.64,
	Lv: 2264670,
}

// teraWatt converts W to TW.
const teraWatt = 1.e12

// stepsPerDay is the number of 3-hourly output records in a day.
const stepsPerDay = 8

// stepDuration is the output frequency of the raw model fields.
const stepDuration = 3 * time.Hour
