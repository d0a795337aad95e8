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
	"time"

	"github.com/ctessum/sparse"
)

// MonthlyMean holds the mean transport components of one month.
type MonthlyMean struct {
	Year  int
	Month time.Month

	// Samples is the number of time steps in the mean.
	Samples int

	// Partial is true if the number of samples is not the number of
	// 3-hourly time steps in the month.
	Partial bool

	// Point holds the mean of each component at each grid point
	// (lat, lon).
	Point Components

	// Zonal holds the zonal integral of each energy transport
	// component and the zonal mean of each correction wind (lat).
	Zonal Components

	// Leg is the number of the leg the mean was calculated from.
	Leg int
}

// Token returns the part of the output file names that identifies the
// mean. It is YYYYMM for a complete month. A partial month also carries
// the leg number, because the legs that share a month each write their
// own partial mean.
func (m *MonthlyMean) Token() string {
	if !m.Partial {
		return m.Label()
	}
	return fmt.Sprintf("%s_leg%03d", m.Label(), m.Leg)
}

// Label returns the year and month formatted as YYYYMM.
func (m *MonthlyMean) Label() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

// Accumulator keeps the running sum of the transport components of
// the current month.
type Accumulator struct {
	grid  *Grid
	year  int
	month time.Month
	last  time.Time
	sum   Components
	n     int
}

// NewAccumulator returns an empty accumulator for the given grid.
func NewAccumulator(g *Grid) *Accumulator {
	return &Accumulator{grid: g}
}

// Add adds the components of the time step at time t. If t is in a later
// month than the previous time step, the previous month is finalized and
// returned. Time steps must be added in increasing time order.
func (a *Accumulator) Add(t time.Time, cs Components) (*MonthlyMean, error) {
	if a.n > 0 && !t.After(a.last) {
		return nil, fmt.Errorf("amet: time step %s does not follow %s", t.Format(time.RFC3339), a.last.Format(time.RFC3339))
	}
	var done *MonthlyMean
	if a.n > 0 && (t.Year() != a.year || t.Month() != a.month) {
		done = a.Flush()
	}
	if a.n == 0 {
		a.year, a.month = t.Year(), t.Month()
		a.sum = make(Components, len(cs))
		for name, v := range cs {
			a.sum[name] = sparse.ZerosDense(v.Shape...)
		}
	}
	// The running sums are only changed once every component matches.
	for name := range cs {
		if _, ok := a.sum[name]; !ok {
			return nil, fmt.Errorf("amet: component %s first appears at %s", name, t.Format(time.RFC3339))
		}
	}
	if len(cs) != len(a.sum) {
		return nil, fmt.Errorf("amet: time step %s has %d components; want %d",
			t.Format(time.RFC3339), len(cs), len(a.sum))
	}
	for name, v := range cs {
		a.sum[name].AddDense(v)
	}
	a.last = t
	a.n++
	return done, nil
}

// Flush finalizes and returns the current month, or nil if no time steps
// have been added since the last month was finalized.
func (a *Accumulator) Flush() *MonthlyMean {
	if a.n == 0 {
		return nil
	}
	m := &MonthlyMean{
		Year:    a.year,
		Month:   a.month,
		Samples: a.n,
		Partial: a.n != daysIn(a.year, a.month)*stepsPerDay,
		Point:   make(Components, len(a.sum)),
		Zonal:   make(Components, len(a.sum)),
	}
	for name, s := range a.sum {
		mean := arrayAverage(s, a.n)
		m.Point[name] = mean
		if isEnergy(name) {
			m.Zonal[name] = a.grid.ZonalSum(mean)
		} else {
			m.Zonal[name] = a.grid.ZonalMean(mean)
		}
	}
	a.sum = nil
	a.n = 0
	return m
}

func arrayAverage(s *sparse.DenseArray, n int) *sparse.DenseArray {
	nf := float64(n)
	for i, val := range s.Elements {
		s.Elements[i] = val / nf
	}
	return s
}

func isEnergy(name string) bool {
	for _, e := range EnergyComponents {
		if e == name {
			return true
		}
	}
	return false
}

// daysIn returns the number of days in a month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
