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

package ametutil

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blue-action/amet"
	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/require"
)

var (
	testLat  = []float64{90, 45, 0, -45, -90}
	testLon  = []float64{0, 90, 180, 270}
	testPlev = []float64{850, 500, 200}
)

// writeLeg writes a synthetic leg of EC-Earth output with the given
// number of 3-hourly steps starting on 1 January 2000 and returns the
// leg directory.
func writeLeg(t *testing.T, rundir, exp string, leg, steps int) string {
	t.Helper()
	dir := amet.LegDir(rundir, exp, leg)
	require.NoError(t, os.MkdirAll(dir, os.ModePerm))
	token := "200001"
	writeLegFile(t, filepath.Join(dir, "ICMGG"+exp+"+"+token), []string{"Q", "SP"}, steps)
	writeLegFile(t, filepath.Join(dir, "ICMSH"+exp+"+"+token), []string{"T", "U", "V", "Z"}, steps)
	return dir
}

func testField(name string, step, k int, lat, lon float64) float32 {
	phi, lam := lat*math.Pi/180, lon*math.Pi/180
	var v float64
	switch name {
	case "U":
		v = 10*math.Cos(phi) + 2*math.Sin(lam) + float64(k)
	case "V":
		v = 1 + math.Sin(phi) + math.Cos(phi)*math.Cos(lam) + 0.1*float64(step)
	case "T":
		v = 285 - 25*float64(k)
	case "Z":
		v = 9.8 * (1500 + 4000*float64(k*k))
	case "Q":
		v = 0.01 * math.Cos(phi) / float64(k+1)
	case "SP":
		v = 100000 + 500*math.Cos(lam)
	}
	return float32(v)
}

func writeLegFile(t *testing.T, path string, vars []string, steps int) {
	t.Helper()
	nlat, nlon, nlev := len(testLat), len(testLon), len(testPlev)
	h := cdf.NewHeader([]string{"time", "lat", "lon", "plev"}, []int{0, nlat, nlon, nlev})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since 2000-01-01 00:00:00")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("plev", []string{"plev"}, []float64{0})
	h.AddAttribute("plev", "units", "hPa")
	for _, v := range vars {
		if v == "SP" {
			h.AddVariable(v, []string{"time", "lat", "lon"}, []float32{0})
			continue
		}
		h.AddVariable(v, []string{"time", "plev", "lat", "lon"}, []float32{0})
	}
	h.Define()
	w, err := os.Create(path)
	require.NoError(t, err)
	defer w.Close()
	f, err := cdf.Create(w, h)
	require.NoError(t, err)

	write := func(name string, vals interface{}, begin, end []int) {
		t.Helper()
		wr := f.Writer(name, begin, end)
		require.NotNil(t, wr, name)
		n, err := wr.Write(vals)
		if err == io.EOF && n == reflect.ValueOf(vals).Len() {
			err = nil // the values filled the range exactly
		}
		require.NoError(t, err, name)
	}
	write("lat", testLat, nil, nil)
	write("lon", testLon, nil, nil)
	write("plev", testPlev, nil, nil)
	for rec := 0; rec < steps; rec++ {
		write("time", []float64{3 * float64(rec)}, []int{rec}, []int{rec})
		for _, v := range vars {
			nk := nlev
			begin, end := []int{rec, 0, 0, 0}, []int{rec, nlev - 1, nlat - 1, nlon - 1}
			if v == "SP" {
				nk = 1
				begin, end = []int{rec, 0, 0}, []int{rec, nlat - 1, nlon - 1}
			}
			var vals []float32
			for k := 0; k < nk; k++ {
				for _, la := range testLat {
					for _, lo := range testLon {
						vals = append(vals, testField(v, rec, k, la, lo))
					}
				}
			}
			write(v, vals, begin, end)
		}
	}
	require.NoError(t, cdf.UpdateNumRecs(w))
}
