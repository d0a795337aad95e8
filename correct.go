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
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Correction is the barotropic wind correction of one time step.
type Correction struct {
	// UC is the zonal correction wind [m/s] (lat, lon).
	UC *sparse.DenseArray

	// VC is the meridional correction wind [m/s] (lat, lon). It is
	// uniform along each latitude.
	VC *sparse.DenseArray

	// ResidualBefore and ResidualAfter are the zonally integrated
	// column mass flux divergence before and after the correction,
	// relative to the total absolute divergence before the correction.
	ResidualBefore, ResidualAfter float64

	// ColumnResidual is the area-integrated absolute column mass flux
	// divergence after the correction, relative to the same quantity
	// before the correction. On a grid with an even number of longitudes
	// the part of the divergence that alternates in sign from column to
	// column cannot be removed by a centred-difference zonal flux and
	// remains here.
	ColumnResidual float64

	// dp is the layer thickness [Pa] (level, lat, lon).
	dp *sparse.DenseArray
}

// Correct calculates the barotropic wind correction that removes the net
// column mass transport across every latitude. The meridional correction
// cancels the zonally integrated meridional mass flux of each latitude
// band, and the zonal correction is the periodic zonal mass flux whose
// divergence cancels the divergence that remains in each column. The
// correction is uniform in the vertical.
//
// If the relative residual after the correction exceeds tolerance, the
// correction is returned together with a *ConservationToleranceError.
// A residual that is not a number, for example because of missing input
// values, always exceeds the tolerance.
func Correct(g *Grid, levels VerticalCoordinate, snap *FieldSnapshot, c Constants, tolerance float64) (*Correction, error) {
	dp := LayerThickness(levels, snap.SP)
	fu := integrate(dp, c.G, func(i int) float64 { return snap.U.Elements[i] })
	fv := integrate(dp, c.G, func(i int) float64 { return snap.V.Elements[i] })
	m := integrate(dp, c.G, func(int) float64 { return 1 })
	before := g.Divergence(fu, fv)

	corr := &Correction{UC: g.zeros(), VC: g.zeros(), dp: dp}

	fvc := fv.Copy()
	for j := 0; j < g.Nlat(); j++ {
		mass := floats.Sum(g.row(m, j))
		if mass <= 0 {
			continue
		}
		vc := -floats.Sum(g.row(fv, j)) / mass
		floats.AddConst(vc, g.row(corr.VC, j))
		floats.AddScaled(g.row(fvc, j), vc, g.row(m, j))
	}

	mid := g.Divergence(fu, fvc)
	fuc := fu.Copy()
	nlon := g.Nlon()
	for j := 0; j < g.Nlat(); j++ {
		if g.Dx[j] == 0 {
			continue
		}
		flux := zonalFlux(g.row(mid, j), g.Dx[j])
		for i := 0; i < nlon; i++ {
			k := j*nlon + i
			if m.Elements[k] <= 0 {
				continue
			}
			uc := flux[i] / m.Elements[k]
			corr.UC.Elements[k] = uc
			fuc.Elements[k] += uc * m.Elements[k]
		}
	}
	after := g.Divergence(fuc, fvc)

	corr.ResidualBefore = g.bandResidual(before, before)
	corr.ResidualAfter = g.bandResidual(after, before)
	corr.ColumnResidual = g.columnResidual(after, before)
	if !(corr.ResidualAfter <= tolerance) {
		return corr, &ConservationToleranceError{
			Time:      snap.Time,
			Residual:  corr.ResidualAfter,
			Tolerance: tolerance,
		}
	}
	return corr, nil
}

// bandResidual returns the sum over latitude bands of the absolute
// area-integrated divergence div of each band, relative to the
// area-integrated absolute divergence ref.
func (g *Grid) bandResidual(div, ref *sparse.DenseArray) float64 {
	var num, den float64
	for j := 0; j < g.Nlat(); j++ {
		a := g.CellArea(j)
		num += math.Abs(floats.Sum(g.row(div, j))) * a
		for _, v := range g.row(ref, j) {
			den += math.Abs(v) * a
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// columnResidual returns the area-integrated absolute divergence div
// relative to the area-integrated absolute divergence ref.
func (g *Grid) columnResidual(div, ref *sparse.DenseArray) float64 {
	var num, den float64
	for j := 0; j < g.Nlat(); j++ {
		a := g.CellArea(j)
		num += floats.Norm(g.row(div, j), 1) * a
		den += floats.Norm(g.row(ref, j), 1) * a
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// zonalFlux returns the mass flux f along a periodic row of grid spacing
// dx whose centred difference cancels div:
//
//	(f[i+1] - f[i-1]) / (2 dx) = -div[i].
//
// The difference couples every second column, so the row splits into one
// cycle of columns when its length is odd and two when it is even. The
// part of div with a nonzero mean over the columns that a cycle is driven
// by has no solution and is left out, which gives the least-squares flux.
// Each cycle of f has zero mean.
func zonalFlux(div []float64, dx float64) []float64 {
	n := len(div)
	f := make([]float64, n)
	cycles := 1
	if n%2 == 0 {
		cycles = 2
	}
	length := n / cycles
	for c := 0; c < cycles; c++ {
		var mean float64
		for s, i := 0, c; s < length; s, i = s+1, (i+2)%n {
			mean += div[(i+1)%n]
		}
		mean /= float64(length)

		var sum float64
		i := c
		for s := 1; s < length; s++ {
			next := (i + 2) % n
			f[next] = f[i] - 2*dx*(div[(i+1)%n]-mean)
			sum += f[next]
			i = next
		}
		sum /= float64(length)
		for s, i := 0, c; s < length; s, i = s+1, (i+2)%n {
			f[i] -= sum
		}
	}
	return f
}
