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
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// legFixture describes a synthetic leg of model output on a coarse grid.
type legFixture struct {
	exp   string
	leg   int
	steps int

	// token is the time token of the file names; 200001 if empty.
	token string

	// startHour is the first time step in hours since 2000-01-01.
	startHour float64

	// missingT500 removes the 500 hPa level from temperature.
	missingT500 bool

	// southToNorth stores latitudes in increasing order.
	southToNorth bool

	// frozenClock gives every record the same time.
	frozenClock bool

	// gapV marks V at 500 hPa in one cell of the second record with
	// the _FillValue.
	gapV bool
}

// fillValue is the _FillValue of the fixture wind.
const fillValue = 1e20

var (
	fixtureLat  = []float64{90, 60, 30, 0, -30, -60, -90}
	fixtureLon  = []float64{0, 45, 90, 135, 180, 225, 270, 315}
	fixturePlev = []float64{850, 500, 200} // hPa
)

// fixtureField returns the value of a synthetic field.
func fixtureField(name string, step, k int, lat, lon float64) float64 {
	phi, lam := lat*math.Pi/180, lon*math.Pi/180
	s := float64(step)
	switch name {
	case "U":
		return 10*math.Cos(phi) + 3*math.Sin(lam+0.1*s) + float64(k)
	case "V":
		return 2 + math.Sin(phi) + math.Cos(phi)*math.Sin(2*lam) + 0.5*float64(k) + 0.1*s
	case "T":
		return 290 - 30*float64(k) - 20*math.Abs(math.Sin(phi))
	case "Z":
		return 9.80616 * (1500 + 4000*float64(k)*float64(k))
	case "Q":
		return 0.01 * math.Cos(phi) / float64(k+1)
	case "SP":
		return 100000 + 800*math.Cos(lam) - 1000*math.Abs(math.Sin(phi))
	case "T2M":
		return 288 - 30*math.Abs(math.Sin(phi))
	case "sro":
		return 0.001 * math.Cos(phi)
	}
	panic(name)
}

// write writes the leg to rundir and returns the leg directory.
func (fx legFixture) write(t *testing.T, rundir string) string {
	t.Helper()
	dir := LegDir(rundir, fx.exp, fx.leg)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	token := fx.token
	if token == "" {
		token = "200001"
	}
	fx.writeFile(t, filepath.Join(dir, "ICMGG"+fx.exp+"+"+token), []string{"Q", "SP", "T2M", "sro"})
	fx.writeFile(t, filepath.Join(dir, "ICMSH"+fx.exp+"+"+token), []string{"T", "U", "V", "Z"})
	return dir
}

func (fx legFixture) writeFile(t *testing.T, path string, vars []string) {
	t.Helper()
	lat := append([]float64(nil), fixtureLat...)
	if fx.southToNorth {
		for i, j := 0, len(lat)-1; i < j; i, j = i+1, j-1 {
			lat[i], lat[j] = lat[j], lat[i]
		}
	}
	nlat, nlon, nlev := len(lat), len(fixtureLon), len(fixturePlev)
	h := cdf.NewHeader([]string{"time", "lat", "lon", "plev", "plev_t"}, []int{0, nlat, nlon, nlev, nlev - 1})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since 2000-01-01 00:00:00")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("plev", []string{"plev"}, []float64{0})
	h.AddAttribute("plev", "units", "hPa")
	h.AddVariable("plev_t", []string{"plev_t"}, []float64{0})
	h.AddAttribute("plev_t", "units", "hPa")
	for _, v := range vars {
		switch v {
		case "SP", "T2M", "sro":
			h.AddVariable(v, []string{"time", "lat", "lon"}, []float32{0})
		case "T":
			if fx.missingT500 {
				h.AddVariable(v, []string{"time", "plev_t", "lat", "lon"}, []float32{0})
				break
			}
			fallthrough
		default:
			h.AddVariable(v, []string{"time", "plev", "lat", "lon"}, []float32{0})
		}
	}
	if fx.gapV {
		h.AddAttribute("V", "_FillValue", []float32{fillValue})
	}
	h.Define()
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}
	check := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	check(writeVar(f, "lat", lat, nil, nil))
	check(writeVar(f, "lon", fixtureLon, nil, nil))
	check(writeVar(f, "plev", fixturePlev, nil, nil))
	check(writeVar(f, "plev_t", []float64{850, 200}, nil, nil))
	for rec := 0; rec < fx.steps; rec++ {
		hour := fx.startHour + 3*float64(rec)
		if fx.frozenClock {
			hour = fx.startHour
		}
		check(writeVar(f, "time", []float64{hour}, []int{rec}, []int{rec}))
		for _, v := range vars {
			levels := []int{0, 1, 2}
			switch v {
			case "SP", "T2M", "sro":
				levels = []int{-1}
			case "T":
				if fx.missingT500 {
					levels = []int{0, 2}
				}
			}
			var vals []float32
			for _, k := range levels {
				for _, la := range lat {
					for _, lo := range fixtureLon {
						vals = append(vals, float32(fixtureField(v, rec, k, la, lo)))
					}
				}
			}
			if fx.gapV && v == "V" && rec == 1 {
				vals[1*nlat*nlon+3*nlon+2] = fillValue
			}
			begin := []int{rec, 0, 0}
			end := []int{rec, nlat - 1, nlon - 1}
			if levels[0] >= 0 {
				begin = []int{rec, 0, 0, 0}
				end = []int{rec, len(levels) - 1, nlat - 1, nlon - 1}
			}
			check(writeVar(f, v, vals, begin, end))
		}
	}
	check(cdf.UpdateNumRecs(w))
}

// testGrid returns the fixture grid.
func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(fixtureLat, fixtureLon, DefaultConstants.R)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// testSnapshot returns the fixture fields of a time step on pressure levels.
func testSnapshot(t *testing.T, g *Grid, step int) (*FieldSnapshot, PressureLevels) {
	t.Helper()
	levels, err := NewPressureLevels([]float64{85000, 50000, 20000})
	if err != nil {
		t.Fatal(err)
	}
	nlat, nlon := g.Nlat(), g.Nlon()
	snap := &FieldSnapshot{SP: g.zeros(), Surface: map[string]*sparse.DenseArray{}}
	for _, f := range []struct {
		name string
		dst  **sparse.DenseArray
	}{{"U", &snap.U}, {"V", &snap.V}, {"T", &snap.T}, {"Z", &snap.Z}, {"Q", &snap.Q}} {
		a := sparse.ZerosDense(len(levels), nlat, nlon)
		for k := range levels {
			for j, la := range g.Lat {
				for i, lo := range g.Lon {
					a.Set(fixtureField(f.name, step, k, la, lo), k, j, i)
				}
			}
		}
		*f.dst = a
	}
	for j, la := range g.Lat {
		for i, lo := range g.Lon {
			snap.SP.Set(fixtureField("SP", step, 0, la, lo), j, i)
		}
	}
	return snap, levels
}

func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	if a == b {
		return false
	}
	return 2*math.Abs(a-b)/(math.Abs(a)+math.Abs(b)) > tolerance
}

func arrayCompare(have, want *sparse.DenseArray, tolerance float64, name string, t *testing.T) {
	t.Helper()
	if !reflect.DeepEqual(want.Shape, have.Shape) {
		t.Errorf("%s: want shape %v but have shape %v", name, want.Shape, have.Shape)
		return
	}
	for i, wantv := range want.Elements {
		if havev := have.Elements[i]; different(havev, wantv, tolerance) {
			t.Errorf("%s, element %d: want %g but have %g", name, i, wantv, havev)
		}
	}
}
