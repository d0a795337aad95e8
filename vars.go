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

package amet

import "strings"

// varInfo describes a variable that is read from the model output or
// written to an output file.
type varInfo struct {
	longName string
	units    string

	// aliases are the names the variable may have in the model output,
	// compared without regard to case. CDO without a parameter table
	// names variables after their GRIB code.
	aliases []string
}

// Names of the model-level fields used in the energy calculation.
const (
	varU    = "U"
	varV    = "V"
	varT    = "T"
	varZ    = "Z"
	varQ    = "Q"
	varSP   = "SP"
	varLNSP = "LNSP"
)

// levelVars are the fields on model or pressure levels, in the order in
// which they are checked for completeness.
var levelVars = []string{varU, varV, varT, varZ, varQ}

// Names of the transport components.
const (
	CompTotal        = "E"
	CompInternal     = "E_cpT"
	CompLatent       = "E_Lvq"
	CompGeopotential = "E_gz"
	CompKinetic      = "E_uv2"
	CompVC           = "E_vc"
	CompUC           = "E_uc"
	CompUCWind       = "uc"
	CompVCWind       = "vc"
)

// EnergyComponents are the components that are energy transports
// rather than winds.
var EnergyComponents = []string{CompTotal, CompInternal, CompLatent, CompGeopotential, CompKinetic, CompVC, CompUC}

// ComponentNames are all the components produced for each time step.
var ComponentNames = append(append([]string{}, EnergyComponents...), CompUCWind, CompVCWind)

// landSurfaceVars and surfaceVars are the instantaneous surface exports.
var (
	landSurfaceVars = []string{"asn", "rsn", "sde", "sot1", "sot2", "sot3", "sot4",
		"sro", "ssro", "vsw1", "vsw2", "vsw3", "vsw4"}
	surfaceVars = []string{"CP", "LSP", "MSL", "PT", "SLHF", "SP", "SRO", "SSHF",
		"SSR", "STR", "T2M", "TCC", "TSR", "TTR", "U10M", "V10M"}
)

const teraWattUnits = "tera watt"

var varTable = map[string]varInfo{
	varU:    {"U component of wind", "m/s", []string{"u", "var131"}},
	varV:    {"V component of wind", "m/s", []string{"v", "var132"}},
	varT:    {"temperature", "K", []string{"t", "var130"}},
	varZ:    {"geopotential", "m2/s2", []string{"z", "var129"}},
	varQ:    {"specific humidity", "kg/kg", []string{"q", "var133"}},
	varLNSP: {"logarithm of surface pressure", "1", []string{"lnsp", "var152"}},

	CompTotal:        {"atmospheric meridional energy transport", teraWattUnits, nil},
	CompInternal:     {"atmospheric meridional internal energy transport", teraWattUnits, nil},
	CompLatent:       {"atmospheric meridional latent heat transport", teraWattUnits, nil},
	CompGeopotential: {"atmospheric meridional geopotential transport", teraWattUnits, nil},
	CompKinetic:      {"atmospheric meridional kinetic energy transport", teraWattUnits, nil},
	CompVC:           {"atmospheric meridional energy transport by the meridional barotropic correction", teraWattUnits, nil},
	CompUC:           {"atmospheric meridional energy transport by the zonal barotropic correction", teraWattUnits, nil},
	CompUCWind:       {"zonal barotropic correction wind", "m/s", nil},
	CompVCWind:       {"meridional barotropic correction wind", "m/s", nil},

	"sro":  {"surface runoff", "m", []string{"var8"}},
	"ssro": {"sub-surface runoff", "m", []string{"var9"}},
	"asn":  {"snow albedo", "0 - 1", []string{"var32"}},
	"rsn":  {"snow density", "kg/m3", []string{"var33"}},
	"sde":  {"snow depth", "m", []string{"sd", "var141"}},
	"vsw1": {"volumetric soil water layer 1", "m3/m3", []string{"swvl1", "var39"}},
	"vsw2": {"volumetric soil water layer 2", "m3/m3", []string{"swvl2", "var40"}},
	"vsw3": {"volumetric soil water layer 3", "m3/m3", []string{"swvl3", "var41"}},
	"vsw4": {"volumetric soil water layer 4", "m3/m3", []string{"swvl4", "var42"}},
	"sot1": {"soil temperature level 1", "K", []string{"stl1", "var139"}},
	"sot2": {"soil temperature level 2", "K", []string{"stl2", "var170"}},
	"sot3": {"soil temperature level 3", "K", []string{"stl3", "var183"}},
	"sot4": {"soil temperature level 4", "K", []string{"stl4", "var236"}},

	"PT":   {"potential temperature", "K", []string{"var3"}},
	"T2M":  {"2 metre temperature", "K", []string{"2t", "var167"}},
	"U10M": {"10 metre U wind component", "m/s", []string{"10u", "var165"}},
	"V10M": {"10 metre V wind component", "m/s", []string{"10v", "var166"}},
	"SLHF": {"surface latent heat flux", "J/m2", []string{"var147"}},
	varSP:  {"surface pressure", "Pa", []string{"var134"}},
	"MSL":  {"mean sea level pressure", "Pa", []string{"var151"}},
	"LSP":  {"large-scale precipitation", "m", []string{"var142"}},
	"CP":   {"convective precipitation", "m", []string{"var143"}},
	"TCC":  {"total cloud cover", "0 - 1", []string{"var164"}},
	"SSHF": {"surface sensible heat flux", "J/m2", []string{"var146"}},
	"SSR":  {"surface net solar radiation", "J/m2", []string{"var176"}},
	"STR":  {"surface net thermal radiation", "J/m2", []string{"var177"}},
	"TSR":  {"top net solar radiation", "J/m2", []string{"var178"}},
	"TTR":  {"top net thermal radiation", "J/m2", []string{"var179"}},
	"SRO":  {"surface runoff", "m", []string{"sro", "var8"}},
}

// matches reports whether the variable name found in a file refers to
// the variable with the given name.
func matches(name, found string) bool {
	if strings.EqualFold(name, found) {
		return true
	}
	for _, a := range varTable[name].aliases {
		if strings.EqualFold(a, found) {
			return true
		}
	}
	return false
}

// coordinate variable names
const (
	timeDim = "time"
	latDim  = "latitude"
	lonDim  = "longitude"
	levDim  = "level"
)

var coordAliases = map[string][]string{
	latDim: {"lat", "latitude"},
	lonDim: {"lon", "longitude"},
	levDim: {"plev", "lev", "level", "pressure", "isobaricInhPa"},
}
