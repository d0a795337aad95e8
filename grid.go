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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Grid is a regular or Gaussian latitude-longitude grid. Latitudes are
// ordered from north to south. A Grid is not modified after it is created.
type Grid struct {
	Lat []float64 // degrees north
	Lon []float64 // degrees east

	// Dx is the zonal grid spacing at each latitude [m].
	Dx []float64

	// Dy is the meridional grid spacing [m].
	Dy float64
}

// NewGrid creates a grid from latitude and longitude coordinates in
// degrees, using earth radius r [m].
func NewGrid(lat, lon []float64, r float64) (*Grid, error) {
	if len(lat) < 2 || len(lon) < 3 {
		return nil, fmt.Errorf("amet: grid must have at least 2 latitudes and 3 longitudes; got %d and %d",
			len(lat), len(lon))
	}
	if lat[0] < lat[len(lat)-1] {
		return nil, fmt.Errorf("amet: latitude must be ordered from north to south")
	}
	g := &Grid{
		Lat: lat,
		Lon: lon,
		Dx:  make([]float64, len(lat)),
		Dy:  math.Pi * r / float64(len(lat)-1),
	}
	for j, la := range lat {
		if math.Abs(la) >= 90 {
			continue
		}
		g.Dx[j] = 2 * math.Pi * r * math.Cos(la*math.Pi/180) / float64(len(lon))
	}
	return g, nil
}

// Nlat returns the number of latitudes.
func (g *Grid) Nlat() int { return len(g.Lat) }

// Nlon returns the number of longitudes.
func (g *Grid) Nlon() int { return len(g.Lon) }

// CellArea returns the area of a grid cell at latitude index j [m2].
func (g *Grid) CellArea(j int) float64 { return g.Dx[j] * g.Dy }

// zeros returns a (lat, lon) array.
func (g *Grid) zeros() *sparse.DenseArray {
	return sparse.ZerosDense(g.Nlat(), g.Nlon())
}

// row returns the values of a (lat, lon) field at latitude index j.
// The returned slice shares memory with the field.
func (g *Grid) row(field *sparse.DenseArray, j int) []float64 {
	n := g.Nlon()
	return field.Elements[j*n : (j+1)*n]
}

// ZonalSum integrates a (lat, lon) field over all longitudes, returning
// an array with one value per latitude.
func (g *Grid) ZonalSum(field *sparse.DenseArray) *sparse.DenseArray {
	o := sparse.ZerosDense(g.Nlat())
	for j := 0; j < g.Nlat(); j++ {
		o.Elements[j] = floats.Sum(g.row(field, j))
	}
	return o
}

// ZonalMean averages a (lat, lon) field over all longitudes.
func (g *Grid) ZonalMean(field *sparse.DenseArray) *sparse.DenseArray {
	o := g.ZonalSum(field)
	floats.Scale(1/float64(g.Nlon()), o.Elements)
	return o
}

// GlobalIntegral returns the area-weighted sum of a (lat, lon) field.
func (g *Grid) GlobalIntegral(field *sparse.DenseArray) float64 {
	var sum float64
	for j := 0; j < g.Nlat(); j++ {
		sum += floats.Sum(g.row(field, j)) * g.CellArea(j)
	}
	return sum
}

// Divergence calculates the horizontal divergence of the vector field
// (fu, fv) using centered differences. The field is periodic in
// longitude and one-sided differences are used at the polar rows.
// Because latitude runs from north to south, the sign of the meridional
// term is reversed.
func (g *Grid) Divergence(fu, fv *sparse.DenseArray) *sparse.DenseArray {
	nlat, nlon := g.Nlat(), g.Nlon()
	div := g.zeros()
	for j := 0; j < nlat; j++ {
		for i := 0; i < nlon; i++ {
			var du, dv float64
			if g.Dx[j] > 0 { // Dx vanishes on a grid row located at a pole.
				east, west := (i+1)%nlon, (i-1+nlon)%nlon
				du = (fu.Get(j, east) - fu.Get(j, west)) / (2 * g.Dx[j])
			}

			switch j {
			case 0:
				dv = -(fv.Get(j+1, i) - fv.Get(j, i)) / (2 * g.Dy)
			case nlat - 1:
				dv = -(fv.Get(j, i) - fv.Get(j-1, i)) / (2 * g.Dy)
			default:
				dv = -(fv.Get(j+1, i) - fv.Get(j-1, i)) / (2 * g.Dy)
			}
			div.Set(du+dv, j, i)
		}
	}
	return div
}
