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
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ncReader is a read-only view of the variables in a NetCDF file.
type ncReader interface {
	// Variables returns the names of the variables in the file.
	Variables() []string

	// Dimensions returns the dimension names of variable v.
	Dimensions(v string) []string

	// Shape returns the length of each dimension of variable v,
	// including the number of records actually stored in the file.
	Shape(v string) ([]int, error)

	// Attribute returns attribute a of variable v.
	Attribute(v, a string) (interface{}, bool)

	// Read reads record rec of variable v. If v is not a record
	// variable or rec is negative, the whole variable is read.
	// Scaled integer variables are unpacked.
	Read(v string, rec int) (*sparse.DenseArray, error)

	Close() error
}

var (
	cdfMagic  = []byte("CDF")
	hdf5Magic = []byte("\x89HDF")
)

// openNC opens a NetCDF file, choosing the reader from the file signature:
// classic and 64-bit offset files are read with the cdf package and
// NetCDF-4 files are read with the native HDF5 reader.
func openNC(path string) (ncReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	magic := make([]byte, 4)
	if _, err = io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("amet: reading signature of %s: %w", path, err)
	}
	switch {
	case bytes.HasPrefix(magic, cdfMagic):
		return openCDF(f)
	case bytes.Equal(magic, hdf5Magic):
		f.Close()
		return openHDF(path)
	default:
		f.Close()
		return nil, fmt.Errorf("amet: %s is not a NetCDF file; GRIB files must be converted first", path)
	}
}

type cdfReader struct {
	f    *os.File
	nc   *cdf.File
	nrec int
}

func openCDF(f *os.File) (*cdfReader, error) {
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("amet: opening %s: %w", f.Name(), err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &cdfReader{
		f:    f,
		nc:   nc,
		nrec: int(nc.Header.NumRecs(fi.Size())),
	}, nil
}

func (r *cdfReader) Variables() []string { return r.nc.Header.Variables() }
func (r *cdfReader) Dimensions(v string) []string { return r.nc.Header.Dimensions(v) }
func (r *cdfReader) Close() error { return r.f.Close() }

func (r *cdfReader) Shape(v string) ([]int, error) {
	l := r.nc.Header.Lengths(v)
	if l == nil {
		return nil, fmt.Errorf("amet: variable %s not in %s", v, r.f.Name())
	}
	shape := append([]int(nil), l...)
	if r.nc.Header.IsRecordVariable(v) {
		shape[0] = r.nrec
	}
	return shape, nil
}

func (r *cdfReader) Attribute(v, a string) (interface{}, bool) {
	val := r.nc.Header.GetAttribute(v, a)
	return val, val != nil
}

func (r *cdfReader) Read(v string, rec int) (*sparse.DenseArray, error) {
	shape, err := r.Shape(v)
	if err != nil {
		return nil, err
	}
	var begin, end []int
	if r.nc.Header.IsRecordVariable(v) {
		if rec < 0 {
			return r.readRecords(v, shape)
		}
		if rec >= shape[0] {
			return nil, fmt.Errorf("amet: record %d of %s out of range [0, %d)", rec, v, shape[0])
		}
		shape = shape[1:]
		begin, end = make([]int, len(shape)+1), make([]int, len(shape)+1)
		begin[0], end[0] = rec, rec
		for i, n := range shape {
			end[i+1] = n - 1
		}
	}
	nread := 1
	for _, n := range shape {
		nread *= n
	}
	rd := r.nc.Reader(v, begin, end)
	buf := rd.Zero(nread)
	if _, err := rd.Read(buf); err != nil {
		return nil, fmt.Errorf("amet: reading variable %s from %s: %w", v, r.f.Name(), err)
	}
	vals, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("amet: variable %s: %w", v, err)
	}
	return unpack(r, v, shape, vals), nil
}

// readRecords reads every record of v.
func (r *cdfReader) readRecords(v string, shape []int) (*sparse.DenseArray, error) {
	o := sparse.ZerosDense(shape...)
	n := product(shape[1:])
	for rec := 0; rec < shape[0]; rec++ {
		d, err := r.Read(v, rec)
		if err != nil {
			return nil, err
		}
		copy(o.Elements[rec*n:(rec+1)*n], d.Elements)
	}
	return o, nil
}

type hdfReader struct {
	path    string
	g       api.Group
	getters map[string]api.VarGetter
}

func openHDF(path string) (*hdfReader, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("amet: opening %s: %w", path, err)
	}
	return &hdfReader{path: path, g: g, getters: make(map[string]api.VarGetter)}, nil
}

func (r *hdfReader) Variables() []string { return r.g.ListVariables() }

func (r *hdfReader) Close() error {
	r.g.Close()
	return nil
}

func (r *hdfReader) getter(v string) (api.VarGetter, error) {
	if vg, ok := r.getters[v]; ok {
		return vg, nil
	}
	vg, err := r.g.GetVarGetter(v)
	if err != nil {
		return nil, fmt.Errorf("amet: variable %s not in %s: %w", v, r.path, err)
	}
	r.getters[v] = vg
	return vg, nil
}

func (r *hdfReader) Dimensions(v string) []string {
	vg, err := r.getter(v)
	if err != nil {
		return nil
	}
	return vg.Dimensions()
}

func (r *hdfReader) Attribute(v, a string) (interface{}, bool) {
	vg, err := r.getter(v)
	if err != nil {
		return nil, false
	}
	return vg.Attributes().Get(a)
}

func (r *hdfReader) Shape(v string) ([]int, error) {
	vg, err := r.getter(v)
	if err != nil {
		return nil, err
	}
	n := int(vg.Len())
	if len(vg.Dimensions()) <= 1 || n == 0 {
		return []int{n}, nil
	}
	first, err := vg.GetSlice(0, 1)
	if err != nil {
		return nil, fmt.Errorf("amet: reading variable %s from %s: %w", v, r.path, err)
	}
	shape := nestedShape(reflect.ValueOf(first))
	shape[0] = n
	return shape, nil
}

// isRecord reports whether the outermost dimension of v is time.
func (r *hdfReader) isRecord(v string) bool {
	dims := r.Dimensions(v)
	return len(dims) > 1 && dims[0] == timeDim
}

func (r *hdfReader) Read(v string, rec int) (*sparse.DenseArray, error) {
	vg, err := r.getter(v)
	if err != nil {
		return nil, err
	}
	var data interface{}
	record := rec >= 0 && r.isRecord(v)
	if record {
		if int64(rec) >= vg.Len() {
			return nil, fmt.Errorf("amet: record %d of %s out of range [0, %d)", rec, v, vg.Len())
		}
		data, err = vg.GetSlice(int64(rec), int64(rec)+1)
	} else {
		data, err = vg.Values()
	}
	if err != nil {
		return nil, fmt.Errorf("amet: reading variable %s from %s: %w", v, r.path, err)
	}
	rv := reflect.ValueOf(data)
	shape := nestedShape(rv)
	if record {
		shape = shape[1:]
	}
	vals := make([]float64, 0, product(shape))
	vals, err = flatten(vals, rv)
	if err != nil {
		return nil, fmt.Errorf("amet: variable %s: %w", v, err)
	}
	return unpack(r, v, shape, vals), nil
}

// nestedShape returns the lengths of the nested slices in v, following
// the first element at each depth.
func nestedShape(v reflect.Value) []int {
	var shape []int
	for v.Kind() == reflect.Slice {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	if len(shape) == 0 {
		shape = []int{1}
	}
	return shape
}

// flatten appends the numeric values in the nested slices v to dst in
// row-major order.
func flatten(dst []float64, v reflect.Value) ([]float64, error) {
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() > 0 && v.Index(0).Kind() != reflect.Slice {
			vals, err := toFloat64(v.Interface())
			if err != nil {
				return nil, err
			}
			return append(dst, vals...), nil
		}
		var err error
		for i := 0; i < v.Len(); i++ {
			if dst, err = flatten(dst, v.Index(i)); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case reflect.Float32, reflect.Float64:
		return append(dst, v.Float()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(dst, float64(v.Int())), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(dst, float64(v.Uint())), nil
	default:
		return nil, fmt.Errorf("unsupported data type %s", v.Type())
	}
}

// toFloat64 converts a numeric slice to float64.
func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
}

// unpack applies the scale_factor and add_offset attributes of v, if
// present, and returns the values as an array with the given shape.
// Values equal to the _FillValue or missing_value attribute become NaN.
func unpack(r ncReader, v string, shape []int, vals []float64) *sparse.DenseArray {
	var fill []float64
	for _, name := range []string{"_FillValue", "missing_value"} {
		if a, ok := r.Attribute(v, name); ok {
			if f, ok := attrFloat(a); ok {
				fill = append(fill, f)
			}
		}
	}
	scale, offset := 1., 0.
	if a, ok := r.Attribute(v, "scale_factor"); ok {
		if f, ok := attrFloat(a); ok {
			scale = f
		}
	}
	if a, ok := r.Attribute(v, "add_offset"); ok {
		if f, ok := attrFloat(a); ok {
			offset = f
		}
	}
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	data := sparse.ZerosDense(shape...)
	for i, val := range vals {
		data.Elements[i] = val*scale + offset
		for _, f := range fill {
			if val == f || float64(float32(val)) == float64(float32(f)) {
				data.Elements[i] = math.NaN()
			}
		}
	}
	return data
}

// attrFloat returns the first value of a numeric attribute.
func attrFloat(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

// attrString returns the value of a text attribute.
func attrString(r ncReader, v, a string) string {
	val, ok := r.Attribute(v, a)
	if !ok {
		return ""
	}
	switch s := val.(type) {
	case string:
		return s
	case []byte:
		return string(bytes.TrimRight(s, "\x00"))
	}
	return ""
}

func product(shape []int) int {
	n := 1
	for _, v := range shape {
		n *= v
	}
	return n
}
