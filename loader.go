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
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// FieldSnapshot holds the fields of one time step.
type FieldSnapshot struct {
	Time time.Time

	// U, V, T, Z and Q are on the vertical levels of the Source
	// (level, lat, lon).
	U, V, T, Z, Q *sparse.DenseArray

	// SP is the surface pressure [Pa] (lat, lon).
	SP *sparse.DenseArray

	// Surface holds the surface export variables that are present in
	// the model output, keyed by output variable name.
	Surface map[string]*sparse.DenseArray
}

// field returns the level field with the given name.
func (s *FieldSnapshot) field(name string) *sparse.DenseArray {
	switch name {
	case varU:
		return s.U
	case varV:
		return s.V
	case varT:
		return s.T
	case varZ:
		return s.Z
	case varQ:
		return s.Q
	}
	return nil
}

// NextSnapshot is a function that returns the next time step each time it
// is called and io.EOF after the last one.
type NextSnapshot func() (*FieldSnapshot, error)

// DefaultRetainedLevels are the pressure levels [Pa] at which the level
// fields are exported.
var DefaultRetainedLevels = []float64{85000, 50000, 20000}

// Leg identifies the raw output files of one model leg.
type Leg struct {
	Number    int
	Exp       string
	Dir       string
	TimeToken string

	// GG and SH are the paths of the grid-point and the spectral
	// output files.
	GG, SH string
}

// LegDir returns the directory holding the raw output of a leg.
func LegDir(rundir, exp string, leg int) string {
	return filepath.Join(rundir, exp, "output", "ifs", fmt.Sprintf("%03d", leg))
}

var legNumberRE = regexp.MustCompile(`leg_number=(\d+)`)

// FindLeg locates the raw output files of leg number leg of experiment exp
// in run directory rundir. If the experiment has an ece.info file, the leg
// must be listed in it.
func FindLeg(rundir, exp string, leg int) (*Leg, error) {
	info := filepath.Join(rundir, exp, "ece.info")
	b, err := os.ReadFile(info)
	switch {
	case err == nil:
		if !legListed(string(b), leg) {
			return nil, &InputNotFoundError{
				Dir:     filepath.Dir(info),
				Pattern: fmt.Sprintf("ece.info entry leg_number=%d", leg),
			}
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("amet: reading %s: %w", info, err)
	}

	dir := LegDir(rundir, exp, leg)
	ggPrefix := "ICMGG" + exp + "+"
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, &InputNotFoundError{Dir: dir, Pattern: ggPrefix + "*"}
	}
	files, err := filepath.Glob(filepath.Join(dir, globEscape(ggPrefix)+"*"))
	if err != nil {
		return nil, fmt.Errorf("amet: searching %s: %w", dir, err)
	}
	sort.Strings(files)
	for _, gg := range files {
		token := trimExt(strings.TrimPrefix(filepath.Base(gg), ggPrefix))
		if token == "" {
			continue
		}
		shPrefix := "ICMSH" + exp + "+" + token
		sh, ok := findFile(dir, shPrefix, filepath.Ext(gg), "", ".nc", ".nc4")
		if !ok {
			return nil, &InputNotFoundError{Dir: dir, Pattern: shPrefix + "*"}
		}
		return &Leg{
			Number:    leg,
			Exp:       exp,
			Dir:       dir,
			TimeToken: token,
			GG:        gg,
			SH:        sh,
		}, nil
	}
	return nil, &InputNotFoundError{Dir: dir, Pattern: ggPrefix + "*"}
}

func legListed(info string, leg int) bool {
	for _, m := range legNumberRE.FindAllStringSubmatch(info, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n == leg {
			return true
		}
	}
	return false
}

func trimExt(name string) string {
	for _, ext := range []string{".nc4", ".nc"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// findFile returns the first existing regular file named prefix+ext.
func findFile(dir, prefix string, exts ...string) (string, bool) {
	for _, ext := range exts {
		p := filepath.Join(dir, prefix+ext)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// Source reads the time steps of one leg. It is not safe for concurrent use.
type Source struct {
	Leg    *Leg
	Grid   *Grid
	Levels VerticalCoordinate
	Times  []time.Time

	// Retained are the pressure levels [Pa] at which the level fields
	// are exported.
	Retained []float64

	// Exports are the names of the surface export variables that are
	// present in the model output, in sorted order.
	Exports []string

	files   []ncReader
	vars    map[string]fieldRef
	lnsp    bool
	flipLat bool
	log     logrus.FieldLogger
}

// fieldRef points to a variable in one of the files of a leg.
type fieldRef struct {
	r    ncReader
	file string
	name string

	// levelIdx holds the index in the file of each level of the
	// vertical coordinate.
	levelIdx []int
}

// OpenLeg opens the files of a leg and checks that every variable needed
// for the energy calculation is present, including every retained
// pressure level. c.R is used for the grid geometry.
func OpenLeg(leg *Leg, c Constants, retain []float64, log logrus.FieldLogger) (*Source, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Source{
		Leg:      leg,
		Retained: retain,
		vars:     make(map[string]fieldRef),
		log:      log,
	}
	for _, path := range []string{leg.GG, leg.SH} {
		r, err := openNC(path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.files = append(s.files, r)
	}
	if err := s.init(c); err != nil {
		s.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"time":    leg.TimeToken,
		"records": len(s.Times),
		"nlat":    s.Grid.Nlat(),
		"nlon":    s.Grid.Nlon(),
		"levels":  s.Levels.NumLevels(),
	}).Debug("opened leg")
	return s, nil
}

func (s *Source) init(c Constants) error {
	lat, err := s.coordinate(latDim)
	if err != nil {
		return err
	}
	lon, err := s.coordinate(lonDim)
	if err != nil {
		return err
	}
	if lat[0] < lat[len(lat)-1] {
		s.flipLat = true
		for i, j := 0, len(lat)-1; i < j; i, j = i+1, j-1 {
			lat[i], lat[j] = lat[j], lat[i]
		}
	}
	if s.Grid, err = NewGrid(lat, lon, c.R); err != nil {
		return err
	}
	if err = s.readTimes(); err != nil {
		return err
	}
	if err = s.initLevels(); err != nil {
		return err
	}
	if ref, ok := s.find(varSP); ok {
		s.vars[varSP] = ref
	} else if ref, ok := s.find(varLNSP); ok {
		s.vars[varSP] = ref
		s.lnsp = true
	} else {
		return &DataIncompleteError{File: s.Leg.GG + ", " + s.Leg.SH, Variable: varSP}
	}
	for _, name := range append(append([]string{}, landSurfaceVars...), surfaceVars...) {
		ref, ok := s.find(name)
		if !ok {
			s.log.WithField("variable", name).Warn("export variable not in model output; skipping")
			continue
		}
		s.vars["export:"+name] = ref
		s.Exports = append(s.Exports, name)
	}
	sort.Strings(s.Exports)
	for name, ref := range s.vars {
		shape, err := ref.r.Shape(ref.name)
		if err != nil {
			return err
		}
		if shape[0] < len(s.Times) {
			return fmt.Errorf("amet: variable %s in %s has %d records; want %d",
				strings.TrimPrefix(name, "export:"), ref.file, shape[0], len(s.Times))
		}
	}
	return nil
}

// find searches the files of the leg for the named variable.
func (s *Source) find(name string) (fieldRef, bool) {
	paths := []string{s.Leg.GG, s.Leg.SH}
	for i, r := range s.files {
		for _, v := range r.Variables() {
			if matches(name, v) {
				return fieldRef{r: r, file: paths[i], name: v}, true
			}
		}
	}
	return fieldRef{}, false
}

// coordinate reads a one-dimensional coordinate variable.
func (s *Source) coordinate(dim string) ([]float64, error) {
	for _, r := range s.files {
		for _, v := range r.Variables() {
			for _, a := range coordAliases[dim] {
				if v == a {
					d, err := r.Read(v, -1)
					if err != nil {
						return nil, err
					}
					return d.Elements, nil
				}
			}
		}
	}
	return nil, &DataIncompleteError{File: s.Leg.GG, Variable: dim}
}

func (s *Source) readTimes() error {
	r := s.files[0]
	d, err := r.Read(timeDim, -1)
	if err != nil {
		return &DataIncompleteError{File: s.Leg.GG, Variable: timeDim}
	}
	base, unit, err := parseTimeUnits(attrString(r, timeDim, "units"))
	if err != nil {
		return fmt.Errorf("amet: %s: %w", s.Leg.GG, err)
	}
	s.Times = make([]time.Time, len(d.Elements))
	for i, v := range d.Elements {
		s.Times[i] = base.Add(time.Duration(math.Round(v*unit.Seconds())) * time.Second)
	}
	return nil
}

// parseTimeUnits parses CF time units of the form
// "hours since 2000-01-01 00:00:00".
func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	f := strings.Fields(units)
	if len(f) < 3 || f[1] != "since" {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}
	var unit time.Duration
	switch strings.ToLower(f[0]) {
	case "days", "day", "d":
		unit = 24 * time.Hour
	case "hours", "hour", "h":
		unit = time.Hour
	case "minutes", "minute", "min":
		unit = time.Minute
	case "seconds", "second", "s":
		unit = time.Second
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}
	date := strings.SplitN(f[2], "T", 2)
	var y, m, d, hh, mm int
	var ss float64
	if n, _ := fmt.Sscanf(date[0], "%d-%d-%d", &y, &m, &d); n != 3 {
		return time.Time{}, 0, fmt.Errorf("invalid reference date in time units %q", units)
	}
	clock := ""
	if len(date) == 2 {
		clock = date[1]
	} else if len(f) > 3 {
		clock = f[3]
	}
	if clock != "" {
		if n, _ := fmt.Sscanf(strings.TrimSuffix(clock, "Z"), "%d:%d:%g", &hh, &mm, &ss); n < 2 {
			return time.Time{}, 0, fmt.Errorf("invalid reference time in time units %q", units)
		}
	}
	t := time.Date(y, time.Month(m), d, hh, mm, 0, 0, time.UTC)
	return t.Add(time.Duration(ss * float64(time.Second))), unit, nil
}

// initLevels chooses the vertical coordinate and checks that every level
// field is defined on all of its levels.
func (s *Source) initLevels() error {
	for _, name := range levelVars {
		ref, ok := s.find(name)
		if !ok {
			return &DataIncompleteError{File: s.Leg.GG + ", " + s.Leg.SH, Variable: name}
		}
		s.vars[name] = ref
	}
	u := s.vars[varU]
	if a, ok := s.find("hyai"); ok {
		b, ok := s.find("hybi")
		if !ok {
			return &DataIncompleteError{File: a.file, Variable: "hybi"}
		}
		return s.initHybrid(a, b)
	}

	pu, err := s.pressureAxis(u)
	if err != nil {
		return err
	}
	axis := append([]float64(nil), pu...)
	sort.Sort(sort.Reverse(sort.Float64Slice(axis)))
	levels, err := NewPressureLevels(axis)
	if err != nil {
		return fmt.Errorf("amet: %s: %w", u.file, err)
	}
	s.Levels = levels
	for _, name := range levelVars {
		ref := s.vars[name]
		p, err := s.pressureAxis(ref)
		if err != nil {
			return err
		}
		pl := PressureLevels(p)
		if _, missing, ok := retainLevels(pl, s.Retained); !ok {
			return &DataIncompleteError{File: ref.file, Variable: name, Level: hPaName(missing)}
		}
		ref.levelIdx = make([]int, len(levels))
		for k, want := range levels {
			i, ok := pl.Index(want)
			if !ok {
				return &DataIncompleteError{File: ref.file, Variable: name, Level: hPaName(want)}
			}
			ref.levelIdx[k] = i
		}
		s.vars[name] = ref
	}
	return nil
}

// pressureAxis reads the pressure levels [Pa] of a level field.
func (s *Source) pressureAxis(ref fieldRef) ([]float64, error) {
	dims := ref.r.Dimensions(ref.name)
	if len(dims) != 4 {
		return nil, fmt.Errorf("amet: variable %s in %s has dimensions %v; want (time, level, lat, lon)",
			ref.name, ref.file, dims)
	}
	d, err := ref.r.Read(dims[1], -1)
	if err != nil {
		return nil, &DataIncompleteError{File: ref.file, Variable: dims[1]}
	}
	p := append([]float64(nil), d.Elements...)
	units := strings.ToLower(attrString(ref.r, dims[1], "units"))
	var pmax float64
	for _, v := range p {
		pmax = math.Max(pmax, v)
	}
	if units == "hpa" || units == "mbar" || units == "millibars" || (units == "" && pmax <= 1100) {
		for i := range p {
			p[i] *= 100
		}
	}
	return p, nil
}

func (s *Source) initHybrid(a, b fieldRef) error {
	ad, err := a.r.Read(a.name, -1)
	if err != nil {
		return err
	}
	bd, err := b.r.Read(b.name, -1)
	if err != nil {
		return err
	}
	h := HybridLevels{A: ad.Elements, B: bd.Elements}
	if len(h.A) != len(h.B) || len(h.A) < 2 {
		return fmt.Errorf("amet: %s: hybrid coefficients hyai and hybi have lengths %d and %d",
			a.file, len(h.A), len(h.B))
	}
	for _, name := range levelVars {
		ref := s.vars[name]
		shape, err := ref.r.Shape(ref.name)
		if err != nil {
			return err
		}
		if len(shape) != 4 || shape[1] != h.NumLevels() {
			return fmt.Errorf("amet: variable %s in %s has shape %v; want %d model levels",
				ref.name, ref.file, shape, h.NumLevels())
		}
		ref.levelIdx = make([]int, h.NumLevels())
		for k := range ref.levelIdx {
			ref.levelIdx[k] = k
		}
		s.vars[name] = ref
	}
	s.Levels = h
	return nil
}

// Next returns a function that reads the time steps of the leg in order.
func (s *Source) Next() NextSnapshot {
	var i int
	return func() (*FieldSnapshot, error) {
		if i >= len(s.Times) {
			return nil, io.EOF
		}
		snap, err := s.read(i)
		i++
		return snap, err
	}
}

func (s *Source) read(rec int) (*FieldSnapshot, error) {
	snap := &FieldSnapshot{
		Time:    s.Times[rec],
		Surface: make(map[string]*sparse.DenseArray),
	}
	var err error
	for _, f := range []struct {
		name string
		dst  **sparse.DenseArray
	}{{varU, &snap.U}, {varV, &snap.V}, {varT, &snap.T}, {varZ, &snap.Z}, {varQ, &snap.Q}} {
		if *f.dst, err = s.readLevels(f.name, rec); err != nil {
			return nil, err
		}
	}
	if snap.SP, err = s.readSurface(varSP, rec); err != nil {
		return nil, err
	}
	if s.lnsp {
		for i, v := range snap.SP.Elements {
			snap.SP.Elements[i] = math.Exp(v)
		}
	}
	if err = s.checkMissing(snap); err != nil {
		return nil, err
	}
	for _, name := range s.Exports {
		if snap.Surface[name], err = s.readSurface("export:"+name, rec); err != nil {
			return nil, err
		}
	}
	s.log.WithField("time", snap.Time).Debug("read time step")
	return snap, nil
}

// checkMissing returns a *DataIncompleteError for the first missing
// (NaN) cell in the fields that the energy budget is calculated from.
func (s *Source) checkMissing(snap *FieldSnapshot) error {
	nxy := s.Grid.Nlat() * s.Grid.Nlon()
	for _, f := range []struct {
		name string
		data *sparse.DenseArray
	}{{varU, snap.U}, {varV, snap.V}, {varT, snap.T}, {varZ, snap.Z}, {varQ, snap.Q}} {
		for i, v := range f.data.Elements {
			if math.IsNaN(v) {
				ref := s.vars[f.name]
				return &DataIncompleteError{
					File:     ref.file,
					Variable: f.name,
					Level:    s.Levels.LevelName(i / nxy),
				}
			}
		}
	}
	for _, v := range snap.SP.Elements {
		if math.IsNaN(v) {
			return &DataIncompleteError{File: s.vars[varSP].file, Variable: varSP}
		}
	}
	return nil
}

// readLevels reads a level field and arranges it on the vertical
// coordinate of the Source.
func (s *Source) readLevels(name string, rec int) (*sparse.DenseArray, error) {
	ref := s.vars[name]
	d, err := ref.r.Read(ref.name, rec)
	if err != nil {
		return nil, err
	}
	nlat, nlon := s.Grid.Nlat(), s.Grid.Nlon()
	nxy := nlat * nlon
	if len(d.Elements)%nxy != 0 {
		return nil, fmt.Errorf("amet: variable %s in %s has %d values per record; want a multiple of %d",
			ref.name, ref.file, len(d.Elements), nxy)
	}
	o := sparse.ZerosDense(len(ref.levelIdx), nlat, nlon)
	for k, fk := range ref.levelIdx {
		s.copyLayer(o.Elements[k*nxy:(k+1)*nxy], d.Elements[fk*nxy:(fk+1)*nxy])
	}
	return o, nil
}

// readSurface reads a single-level field.
func (s *Source) readSurface(key string, rec int) (*sparse.DenseArray, error) {
	ref := s.vars[key]
	d, err := ref.r.Read(ref.name, rec)
	if err != nil {
		return nil, err
	}
	nlat, nlon := s.Grid.Nlat(), s.Grid.Nlon()
	if len(d.Elements) != nlat*nlon {
		return nil, fmt.Errorf("amet: variable %s in %s has %d values per record; want %d",
			ref.name, ref.file, len(d.Elements), nlat*nlon)
	}
	o := s.Grid.zeros()
	s.copyLayer(o.Elements, d.Elements)
	return o, nil
}

// copyLayer copies a (lat, lon) layer, reversing the latitudes if the
// file stores them from south to north.
func (s *Source) copyLayer(dst, src []float64) {
	if !s.flipLat {
		copy(dst, src)
		return
	}
	nlat, nlon := s.Grid.Nlat(), s.Grid.Nlon()
	for j := 0; j < nlat; j++ {
		copy(dst[j*nlon:(j+1)*nlon], src[(nlat-1-j)*nlon:(nlat-j)*nlon])
	}
}

// AtRetainedLevels returns the level fields of a time step at the
// retained pressure levels (level, lat, lon). Fields on hybrid levels are
// interpolated linearly in the logarithm of pressure.
func (s *Source) AtRetainedLevels(snap *FieldSnapshot) map[string]*sparse.DenseArray {
	o := make(map[string]*sparse.DenseArray, len(levelVars))
	for _, name := range levelVars {
		o[name] = s.retain(snap.field(name), snap.SP)
	}
	return o
}

func (s *Source) retain(f, sp *sparse.DenseArray) *sparse.DenseArray {
	nxy := len(sp.Elements)
	o := sparse.ZerosDense(append([]int{len(s.Retained)}, sp.Shape...)...)
	switch levels := s.Levels.(type) {
	case PressureLevels:
		for r, p := range s.Retained {
			k, _ := levels.Index(p)
			copy(o.Elements[r*nxy:(r+1)*nxy], f.Elements[k*nxy:(k+1)*nxy])
		}
	case HybridLevels:
		nk := levels.NumLevels()
		pf := make([]float64, nk)
		for c, spc := range sp.Elements {
			for k := 0; k < nk; k++ {
				pf[k] = (levels.A[k] + levels.B[k]*spc + levels.A[k+1] + levels.B[k+1]*spc) / 2
			}
			for r, p := range s.Retained {
				o.Elements[r*nxy+c] = interpLogP(pf, p, func(k int) float64 { return f.Elements[k*nxy+c] })
			}
		}
	}
	return o
}

// interpLogP interpolates linearly in ln(p) between full levels with
// increasing pressure pf. Values beyond the end levels are held constant.
func interpLogP(pf []float64, p float64, f func(k int) float64) float64 {
	n := len(pf)
	if p <= pf[0] {
		return f(0)
	}
	if p >= pf[n-1] {
		return f(n - 1)
	}
	k := sort.SearchFloat64s(pf, p)
	if pf[k] == p {
		return f(k)
	}
	w := math.Log(p/pf[k-1]) / math.Log(pf[k]/pf[k-1])
	return f(k-1)*(1-w) + f(k)*w
}

// Close closes the files of the leg.
func (s *Source) Close() error {
	var err error
	for _, r := range s.files {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
