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

import "github.com/ctessum/sparse"

// Components holds the transport components of one time step or of a
// monthly mean, keyed by component name. Energy transports [TW] are
// integrated over the column and over the zonal width of the grid cell.
type Components map[string]*sparse.DenseArray

// Decompose calculates the meridional energy transport of a time step and
// its components, all from the wind corrected by corr.
//
// The corrected wind v' = v + vc carries the energy
// e' = cp T + Lv q + z + (u'² + v'²)/2, with u' = u + uc. E_cpT, E_Lvq,
// E_gz and E_uv2 are the transports of its four parts by v', so that they
// add up to the total E. E_vc and E_uc are the parts of E that the
// meridional and zonal correction winds are responsible for: E minus the
// transport of the uncorrected energy by the uncorrected wind equals
// E_vc + E_uc.
func Decompose(g *Grid, levels VerticalCoordinate, snap *FieldSnapshot, corr *Correction, c Constants) Components {
	dp := corr.dp
	if dp == nil {
		dp = LayerThickness(levels, snap.SP)
	}
	out := make(Components, len(ComponentNames))
	for _, name := range EnergyComponents {
		out[name] = g.zeros()
	}
	out[CompUCWind] = corr.UC.Copy()
	out[CompVCWind] = corr.VC.Copy()

	total := out[CompTotal].Elements
	cpT := out[CompInternal].Elements
	lvq := out[CompLatent].Elements
	gz := out[CompGeopotential].Elements
	uv2 := out[CompKinetic].Elements
	evc := out[CompVC].Elements
	euc := out[CompUC].Elements

	nk := dp.Shape[0]
	nlon := g.Nlon()
	nxy := len(total)
	for col := 0; col < nxy; col++ {
		uc := corr.UC.Elements[col]
		vc := corr.VC.Elements[col]
		for k := 0; k < nk; k++ {
			i := k*nxy + col
			u, v := snap.U.Elements[i], snap.V.Elements[i]
			uu, vv := u+uc, v+vc
			w := dp.Elements[i]

			internal := c.Cp * snap.T.Elements[i]
			latent := c.Lv * snap.Q.Elements[i]
			geo := snap.Z.Elements[i]
			e := internal + latent + geo + (uu*uu+vv*vv)/2

			total[col] += vv * e * w
			cpT[col] += vv * internal * w
			lvq[col] += vv * latent * w
			gz[col] += vv * geo * w
			uv2[col] += vv * (uu*uu + vv*vv) / 2 * w
			evc[col] += (vc*e + v*(vv*vv-v*v)/2) * w
			euc[col] += v * (uu*uu - u*u) / 2 * w
		}
		f := g.Dx[col/nlon] / c.G / teraWatt
		total[col] *= f
		cpT[col] *= f
		lvq[col] *= f
		gz[col] *= f
		uv2[col] *= f
		evc[col] *= f
		euc[col] *= f
	}
	return out
}

// Sum returns the sum of the named components.
func (cs Components) Sum(names ...string) *sparse.DenseArray {
	var o *sparse.DenseArray
	for _, n := range names {
		if o == nil {
			o = sparse.ZerosDense(cs[n].Shape...)
		}
		o.AddDense(cs[n])
	}
	return o
}
