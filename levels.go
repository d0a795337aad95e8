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

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// VerticalCoordinate describes the vertical discretization of the
// atmospheric fields.
type VerticalCoordinate interface {
	// NumLevels returns the number of full levels.
	NumLevels() int

	// Thickness fills dp with the pressure thickness [Pa] of each
	// level in a column with surface pressure sp [Pa].
	Thickness(sp float64, dp []float64)

	// LevelName returns a human-readable name for level k.
	LevelName(k int) string
}

// PressureLevels is a set of isobaric levels [Pa], ordered from the
// surface to the top of the atmosphere.
//
// Each level is weighted by the thickness of the layer it represents.
// Interior layer interfaces lie midway between adjacent levels. The
// lowest level extends down to the surface and the highest level extends
// up to the top of the atmosphere (0 Pa), so the level thicknesses of a
// column sum to its surface pressure. Interfaces are limited to the
// surface pressure, so levels below ground receive zero weight.
type PressureLevels []float64

// NewPressureLevels checks that the given levels [Pa] are positive and
// strictly decreasing.
func NewPressureLevels(p []float64) (PressureLevels, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("amet: no pressure levels")
	}
	for k, v := range p {
		if !(v > 0) {
			return nil, fmt.Errorf("amet: invalid pressure level %g Pa", v)
		}
		if k > 0 && v >= p[k-1] {
			return nil, fmt.Errorf("amet: pressure levels must decrease from the surface upward; %g follows %g", v, p[k-1])
		}
	}
	return PressureLevels(p), nil
}

// NumLevels implements VerticalCoordinate.
func (p PressureLevels) NumLevels() int { return len(p) }

// LevelName implements VerticalCoordinate.
func (p PressureLevels) LevelName(k int) string { return hPaName(p[k]) }

// Thickness implements VerticalCoordinate.
func (p PressureLevels) Thickness(sp float64, dp []float64) {
	lower := sp
	for k := range p {
		upper := 0.
		if k < len(p)-1 {
			upper = (p[k] + p[k+1]) / 2
		}
		dp[k] = math.Max(math.Min(lower, sp)-math.Min(upper, sp), 0)
		lower = upper
	}
}

// Index returns the index of the level closest to pressure v [Pa]
// if it is within 1 Pa, and false otherwise.
func (p PressureLevels) Index(v float64) (int, bool) {
	for k, pk := range p {
		if math.Abs(pk-v) < 1 {
			return k, true
		}
	}
	return -1, false
}

func hPaName(pa float64) string {
	return fmt.Sprintf("%g hPa", pa/100)
}

// HybridLevels are hybrid sigma-pressure model levels. The pressure at
// half level k+1/2 is A[k] + B[k]*sp, and the half levels are ordered from
// the top of the atmosphere to the surface.
type HybridLevels struct {
	A, B []float64
}

// NumLevels implements VerticalCoordinate.
func (h HybridLevels) NumLevels() int { return len(h.A) - 1 }

// LevelName implements VerticalCoordinate.
func (h HybridLevels) LevelName(k int) string { return fmt.Sprintf("model level %d", k+1) }

// Thickness implements VerticalCoordinate.
func (h HybridLevels) Thickness(sp float64, dp []float64) {
	for k := 0; k < h.NumLevels(); k++ {
		dp[k] = (h.A[k+1] + h.B[k+1]*sp) - (h.A[k] + h.B[k]*sp)
	}
}

// ECEarthL91 returns the half-level coefficients of the 91-level
// vertical grid of the EC-Earth atmosphere.
func ECEarthL91() HybridLevels {
	return HybridLevels{
		A: append([]float64(nil), l91A...),
		B: append([]float64(nil), l91B...),
	}
}

// l91A is in Pa.
var l91A = []float64{
	0.0, 2.00004, 3.980832, 7.387186, 12.908319, 21.413612, 33.952858, 51.746601, 76.167656,
	108.715561, 150.986023, 204.637451, 271.356506, 352.824493, 450.685791, 566.519226,
	701.813354, 857.945801, 1036.166504, 1237.585449, 1463.16394, 1713.709595, 1989.87439,
	2292.155518, 2620.898438, 2976.302246, 3358.425781, 3767.196045, 4202.416504,
	4663.776367, 5150.859863, 5663.15625, 6199.839355, 6759.727051, 7341.469727, 7942.92627,
	8564.624023, 9208.305664, 9873.560547, 10558.881836, 11262.484375, 11982.662109,
	12713.897461, 13453.225586, 14192.009766, 14922.685547, 15638.053711, 16329.560547,
	16990.623047, 17613.28125, 18191.029297, 18716.96875, 19184.544922, 19587.513672,
	19919.796875, 20175.394531, 20348.916016, 20434.158203, 20426.21875, 20319.011719,
	20107.03125, 19785.357422, 19348.775391, 18798.822266, 18141.296875, 17385.595703,
	16544.585938, 15633.566406, 14665.645508, 13653.219727, 12608.383789, 11543.166992,
	10471.310547, 9405.222656, 8356.25293, 7335.164551, 6353.920898, 5422.802734,
	4550.21582, 3743.464355, 3010.146973, 2356.202637, 1784.854614, 1297.656128, 895.193542,
	576.314148, 336.772369, 162.043427, 54.208336, 6.575628, 0.00316, 0.0,
}

var l91B = []float64{
	0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
	0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
	0.0, 1.4e-05, 5.5e-05, 0.000131, 0.000279, 0.000548, 0.001, 0.001701, 0.002765,
	0.004267, 0.006322, 0.009035, 0.012508, 0.01686, 0.022189, 0.02861, 0.036227, 0.045146,
	0.055474, 0.067316, 0.080777, 0.095964, 0.112979, 0.131935, 0.152934, 0.176091, 0.20152,
	0.229315, 0.259554, 0.291993, 0.326329, 0.362203, 0.399205, 0.436906, 0.475016, 0.51328,
	0.551458, 0.589317, 0.626559, 0.662934, 0.698224, 0.732224, 0.764679, 0.795385,
	0.824185, 0.85095, 0.875518, 0.897767, 0.917651, 0.935157, 0.950274, 0.963007, 0.973466,
	0.982238, 0.989153, 0.994204, 0.99763, 1.0,
}

// LayerThickness calculates the pressure thickness of every level in every
// column of a grid with surface pressure sp (lat, lon). The returned array
// has dimensions (level, lat, lon).
func LayerThickness(levels VerticalCoordinate, sp *sparse.DenseArray) *sparse.DenseArray {
	nk := levels.NumLevels()
	nxy := len(sp.Elements)
	dp := sparse.ZerosDense(append([]int{nk}, sp.Shape...)...)
	col := make([]float64, nk)
	for c, spc := range sp.Elements {
		levels.Thickness(spc, col)
		for k, v := range col {
			dp.Elements[k*nxy+c] = v
		}
	}
	return dp
}

// Integrate calculates the mass-weighted vertical integral of field
// (level, lat, lon) over every column of a grid with surface pressure sp
// (lat, lon): the sum over levels of field*dp/g.
func Integrate(levels VerticalCoordinate, sp, field *sparse.DenseArray, g float64) *sparse.DenseArray {
	return integrate(LayerThickness(levels, sp), g, func(i int) float64 { return field.Elements[i] })
}

// IntegrateProduct is like Integrate but integrates the product of
// several fields with the same shape.
func IntegrateProduct(levels VerticalCoordinate, sp *sparse.DenseArray, g float64, fields ...*sparse.DenseArray) *sparse.DenseArray {
	return integrate(LayerThickness(levels, sp), g, func(i int) float64 {
		v := 1.
		for _, f := range fields {
			v *= f.Elements[i]
		}
		return v
	})
}

// integrate sums f*dp/g over the levels of each column. f is called with
// the flat index of a (level, lat, lon) array with the same shape as dp.
// The returned array has dimensions (lat, lon).
func integrate(dp *sparse.DenseArray, g float64, f func(i int) float64) *sparse.DenseArray {
	nk := dp.Shape[0]
	o := sparse.ZerosDense(dp.Shape[1:]...)
	nxy := len(o.Elements)
	for c := 0; c < nxy; c++ {
		var sum float64
		for k := 0; k < nk; k++ {
			i := k*nxy + c
			sum += f(i) * dp.Elements[i]
		}
		o.Elements[c] = sum / g
	}
	return o
}

// retainLevels returns the indices of the requested pressure levels [Pa]
// in the pressure axis p, and the first requested level that is missing.
func retainLevels(p PressureLevels, want []float64) (idx []int, missing float64, ok bool) {
	for _, w := range want {
		k, found := p.Index(w)
		if !found {
			return nil, w, false
		}
		idx = append(idx, k)
	}
	sort.Ints(idx)
	return idx, 0, true
}
