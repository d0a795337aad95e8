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
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Kinds of output files.
const (
	KindPoint       = "E_point"
	KindZonal       = "E_zonal_int"
	KindLandSurface = "land_surface"
	KindLevels      = "levels"
	KindSurface     = "surface"
)

// OutputName returns the name of an output file. token is the
// MonthlyMean.Token for the monthly means and the leg time token for the
// 3-hourly exports.
func OutputName(exp, token, kind string) string {
	return fmt.Sprintf("AMET_EC-earth_model_daily_%s_%s_%s.nc", exp, token, kind)
}

// WriteMonthly writes the monthly mean m to a gridded file and a zonal
// integral file in directory dir, replacing any existing files, and
// returns the paths of the files.
func WriteMonthly(dir, exp string, m *MonthlyMean, g *Grid) ([]string, error) {
	global := [][2]string{
		{"experiment", exp},
		{"month", m.Label()},
		{"partial_month", fmt.Sprint(m.Partial)},
		{"leg", fmt.Sprintf("%03d", m.Leg)},
	}

	point := filepath.Join(dir, OutputName(exp, m.Token(), KindPoint))
	h := cdf.NewHeader([]string{latDim, lonDim}, []int{g.Nlat(), g.Nlon()})
	h.AddAttribute("", "description", "Monthly mean meridional energy transport and each component at each grid point")
	names := addComponents(h, m, m.Point, global, []string{latDim, lonDim})
	h.Define()
	err := writeFile(point, h, func(f *cdf.File) error {
		if err := writeVar(f, latDim, toFloat32(g.Lat), nil, nil); err != nil {
			return err
		}
		if err := writeVar(f, lonDim, toFloat32(g.Lon), nil, nil); err != nil {
			return err
		}
		for _, name := range names {
			if err := writeVar(f, name, m.Point[name].Elements, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zonal := filepath.Join(dir, OutputName(exp, m.Token(), KindZonal))
	h = cdf.NewHeader([]string{latDim}, []int{g.Nlat()})
	h.AddAttribute("", "description", "Monthly mean zonal integral of meridional energy transport and each component")
	names = addComponents(h, m, m.Zonal, global, []string{latDim})
	h.Define()
	err = writeFile(zonal, h, func(f *cdf.File) error {
		if err := writeVar(f, latDim, toFloat32(g.Lat), nil, nil); err != nil {
			return err
		}
		for _, name := range names {
			if err := writeVar(f, name, m.Zonal[name].Elements, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []string{point, zonal}, nil
}

// addComponents adds the global attributes, the coordinates and the
// components to a header and returns the sorted component names.
func addComponents(h *cdf.Header, m *MonthlyMean, cs Components, global [][2]string, dims []string) []string {
	for _, a := range global {
		h.AddAttribute("", a[0], a[1])
	}
	h.AddAttribute("", "samples", []int32{int32(m.Samples)})
	for _, d := range dims {
		h.AddVariable(d, []string{d}, []float32{0})
		h.AddAttribute(d, "units", coordUnits[d])
	}

	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(cs))
	for n := range cs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		addVariable(h, name, dims)
	}
	return names
}

var coordUnits = map[string]string{
	latDim: "degree_north",
	lonDim: "degree_east",
}

func addVariable(h *cdf.Header, name string, dims []string) {
	h.AddVariable(name, dims, []float64{0})
	info := varTable[name]
	h.AddAttribute(name, "long_name", info.longName)
	h.AddAttribute(name, "units", info.units)
}

// writeFile creates the file at path, replacing any existing file, and
// calls write to write the variables.
func writeFile(path string, h *cdf.Header, write func(*cdf.File) error) error {
	w, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err = write(f); err != nil {
		w.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		w.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err = w.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// writeVar writes vals ([]float32 or []float64) to the part of variable
// name between the corners begin and end, both inclusive. Nil corners
// write the whole variable.
func writeVar(f *cdf.File, name string, vals interface{}, begin, end []int) error {
	w := f.Writer(name, begin, end)
	if w == nil {
		return fmt.Errorf("variable %s not in file", name)
	}
	n, err := w.Write(vals)
	// The writer reports io.EOF when the values fill the range exactly.
	if err == io.EOF && n == reflect.ValueOf(vals).Len() {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("writing variable %s: %w", name, err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	o := make([]float32, len(v))
	for i, e := range v {
		o[i] = float32(e)
	}
	return o
}

// ExportWriter writes the 3-hourly exports of a leg, one record per time
// step: the land surface fields, the level fields at the retained pressure
// levels and the surface fields.
type ExportWriter struct {
	src   *Source
	base  time.Time
	files []*exportFile
	rec   int
}

type exportFile struct {
	path string
	w    *os.File
	f    *cdf.File
	vars []string
}

// NewExportWriter creates the export files of the leg read by src in
// directory dir, replacing any existing files.
func NewExportWriter(dir string, src *Source, log logrus.FieldLogger) (*ExportWriter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &ExportWriter{src: src}
	if len(src.Times) > 0 {
		t0 := src.Times[0]
		e.base = time.Date(t0.Year(), t0.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	present := make(map[string]bool)
	for _, name := range src.Exports {
		present[name] = true
	}
	for _, group := range []struct {
		kind, description string
		vars              []string
	}{
		{KindLandSurface, "Subdaily surface and land parameters from EC-Earth", landSurfaceVars},
		{KindLevels, "Subdaily fields at selected pressure levels from EC-Earth", levelVars},
		{KindSurface, "Subdaily surface and near-surface fields from EC-Earth", surfaceVars},
	} {
		var vars []string
		for _, v := range group.vars {
			if group.kind == KindLevels || present[v] {
				vars = append(vars, v)
			}
		}
		if group.kind == KindLevels && len(src.Retained) == 0 {
			vars = nil
		}
		if len(vars) == 0 {
			log.WithField("file", group.kind).Warn("no variables to export; skipping file")
			continue
		}
		sort.Strings(vars)
		path := filepath.Join(dir, OutputName(src.Leg.Exp, src.Leg.TimeToken, group.kind))
		ef, err := e.create(path, group.kind, group.description, vars)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.files = append(e.files, ef)
	}
	return e, nil
}

func (e *ExportWriter) create(path, kind, description string, vars []string) (*exportFile, error) {
	g := e.src.Grid
	dims := []string{timeDim, latDim, lonDim}
	lengths := []int{0, g.Nlat(), g.Nlon()}
	varDims := []string{timeDim, latDim, lonDim}
	if kind == KindLevels {
		dims = append(dims, levDim)
		lengths = append(lengths, len(e.src.Retained))
		varDims = []string{timeDim, levDim, latDim, lonDim}
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "description", description)
	h.AddAttribute("", "experiment", e.src.Leg.Exp)
	h.AddVariable(timeDim, []string{timeDim}, []float64{0})
	h.AddAttribute(timeDim, "units", "hours since "+e.base.Format("2006-01-02 15:04:05"))
	h.AddAttribute(timeDim, "calendar", "proleptic_gregorian")
	for _, d := range []string{latDim, lonDim} {
		h.AddVariable(d, []string{d}, []float32{0})
		h.AddAttribute(d, "units", coordUnits[d])
	}
	if kind == KindLevels {
		h.AddVariable(levDim, []string{levDim}, []float64{0})
		h.AddAttribute(levDim, "units", "hPa")
	}
	for _, v := range vars {
		addVariable(h, v, varDims)
	}
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	ef := &exportFile{path: path, w: w, vars: vars}
	if ef.f, err = cdf.Create(w, h); err != nil {
		w.Close()
		return nil, &WriteError{Path: path, Err: err}
	}
	err = writeVar(ef.f, latDim, toFloat32(g.Lat), nil, nil)
	if err == nil {
		err = writeVar(ef.f, lonDim, toFloat32(g.Lon), nil, nil)
	}
	if err == nil && kind == KindLevels {
		hPa := make([]float64, len(e.src.Retained))
		for i, p := range e.src.Retained {
			hPa[i] = p / 100
		}
		err = writeVar(ef.f, levDim, hPa, nil, nil)
	}
	if err != nil {
		w.Close()
		return nil, &WriteError{Path: path, Err: err}
	}
	return ef, nil
}

// Write appends the exports of a time step.
func (e *ExportWriter) Write(snap *FieldSnapshot) error {
	var levels map[string]*sparse.DenseArray
	for _, ef := range e.files {
		hours := snap.Time.Sub(e.base).Hours()
		if err := writeVar(ef.f, timeDim, []float64{hours}, []int{e.rec}, []int{e.rec}); err != nil {
			return &WriteError{Path: ef.path, Err: err}
		}
		for _, v := range ef.vars {
			var data *sparse.DenseArray
			if d, ok := snap.Surface[v]; ok {
				data = d
			} else {
				if levels == nil {
					levels = e.src.AtRetainedLevels(snap)
				}
				data = levels[v]
			}
			begin := make([]int, len(data.Shape)+1)
			end := make([]int, len(data.Shape)+1)
			begin[0], end[0] = e.rec, e.rec
			for i, n := range data.Shape {
				end[i+1] = n - 1
			}
			if err := writeVar(ef.f, v, data.Elements, begin, end); err != nil {
				return &WriteError{Path: ef.path, Err: err}
			}
		}
	}
	e.rec++
	return nil
}

// Files returns the paths of the export files.
func (e *ExportWriter) Files() []string {
	paths := make([]string, len(e.files))
	for i, ef := range e.files {
		paths[i] = ef.path
	}
	return paths
}

// Close updates the record count of each export file and closes it.
func (e *ExportWriter) Close() error {
	var err error
	for _, ef := range e.files {
		if ef.w == nil {
			continue
		}
		if e2 := cdf.UpdateNumRecs(ef.w); e2 != nil && err == nil {
			err = &WriteError{Path: ef.path, Err: e2}
		}
		if e2 := ef.w.Close(); e2 != nil && err == nil {
			err = &WriteError{Path: ef.path, Err: e2}
		}
		ef.w = nil
	}
	return err
}
