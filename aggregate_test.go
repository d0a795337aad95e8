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
	"testing"
	"time"
)

// constComponents returns components that all have value v everywhere.
func constComponents(g *Grid, v float64) Components {
	cs := make(Components)
	for _, name := range ComponentNames {
		a := g.zeros()
		for i := range a.Elements {
			a.Elements[i] = v
		}
		cs[name] = a
	}
	return cs
}

func TestAccumulatorConstant(t *testing.T) {
	g := testGrid(t)
	acc := NewAccumulator(g)
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		done, err := acc.Add(start.Add(time.Duration(i)*stepDuration), constComponents(g, 2.5))
		if err != nil {
			t.Fatal(err)
		}
		if done != nil {
			t.Fatalf("step %d: month finalized early", i)
		}
	}
	m := acc.Flush()
	if m == nil {
		t.Fatal("no month")
	}
	if m.Label() != "200001" || m.Samples != 5 || !m.Partial {
		t.Errorf("have %s, %d samples, partial=%v", m.Label(), m.Samples, m.Partial)
	}
	for _, name := range ComponentNames {
		for i, v := range m.Point[name].Elements {
			if v != 2.5 {
				t.Errorf("%s, element %d: %g; want 2.5", name, i, v)
			}
		}
	}
	if acc.Flush() != nil {
		t.Error("second flush should return nil")
	}
}

func TestAccumulatorMeanAndZonal(t *testing.T) {
	g := testGrid(t)
	acc := NewAccumulator(g)
	start := time.Date(2001, time.February, 1, 0, 0, 0, 0, time.UTC)
	n := daysIn(2001, time.February) * stepsPerDay
	var want float64
	for i := 0; i < n; i++ {
		cs := constComponents(g, float64(i))
		cs[CompTotal].Set(float64(2*i), 2, 3)
		if _, err := acc.Add(start.Add(time.Duration(i)*stepDuration), cs); err != nil {
			t.Fatal(err)
		}
		want += float64(i)
	}
	want /= float64(n)
	m := acc.Flush()
	if m.Partial || m.Samples != 224 {
		t.Errorf("partial=%v, samples=%d", m.Partial, m.Samples)
	}
	if different(m.Point[CompLatent].Get(1, 1), want, 1e-12) {
		t.Errorf("mean: have %g, want %g", m.Point[CompLatent].Get(1, 1), want)
	}
	if different(m.Point[CompTotal].Get(2, 3), 2*want, 1e-12) {
		t.Errorf("mean: have %g, want %g", m.Point[CompTotal].Get(2, 3), 2*want)
	}
	for _, name := range EnergyComponents {
		arrayCompare(m.Zonal[name], g.ZonalSum(m.Point[name]), 1e-12, "zonal "+name, t)
	}
	for _, name := range []string{CompUCWind, CompVCWind} {
		arrayCompare(m.Zonal[name], g.ZonalMean(m.Point[name]), 1e-12, "zonal "+name, t)
	}
	if have := m.Zonal[CompTotal].Get(2); different(have, 9*want, 1e-12) {
		t.Errorf("zonal integral: have %g, want %g", have, 9*want)
	}
}

func TestAccumulatorMonthBoundary(t *testing.T) {
	g := testGrid(t)
	acc := NewAccumulator(g)
	jan := time.Date(2000, time.January, 31, 18, 0, 0, 0, time.UTC)
	for i, v := range []float64{1, 3} {
		if done, err := acc.Add(jan.Add(time.Duration(i)*stepDuration), constComponents(g, v)); err != nil || done != nil {
			t.Fatalf("step %d: %v, %v", i, done, err)
		}
	}
	done, err := acc.Add(time.Date(2000, time.February, 1, 0, 0, 0, 0, time.UTC), constComponents(g, 10))
	if err != nil {
		t.Fatal(err)
	}
	if done == nil || done.Label() != "200001" || done.Samples != 2 {
		t.Fatalf("finalized month: %+v", done)
	}
	if v := done.Point[CompTotal].Get(0, 0); v != 2 {
		t.Errorf("January mean %g; want 2", v)
	}
	feb := acc.Flush()
	if feb.Label() != "200002" || feb.Samples != 1 || feb.Point[CompTotal].Get(0, 0) != 10 {
		t.Errorf("February: %s, %d samples", feb.Label(), feb.Samples)
	}
}

func TestAccumulatorOrder(t *testing.T) {
	g := testGrid(t)
	acc := NewAccumulator(g)
	t0 := time.Date(2000, time.March, 5, 0, 0, 0, 0, time.UTC)
	if _, err := acc.Add(t0, constComponents(g, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Add(t0, constComponents(g, 1)); err == nil {
		t.Error("repeated time step should fail")
	}
	if _, err := acc.Add(t0.Add(-stepDuration), constComponents(g, 1)); err == nil {
		t.Error("earlier time step should fail")
	}
}

func TestAccumulatorComponentsChange(t *testing.T) {
	g := testGrid(t)
	acc := NewAccumulator(g)
	t0 := time.Date(2000, time.March, 5, 0, 0, 0, 0, time.UTC)
	first := constComponents(g, 1)
	delete(first, CompUC)
	if _, err := acc.Add(t0, first); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Add(t0.Add(stepDuration), constComponents(g, 5)); err == nil {
		t.Error("a new component in the month should fail")
	}
	fewer := constComponents(g, 5)
	delete(fewer, CompUC)
	delete(fewer, CompLatent)
	if _, err := acc.Add(t0.Add(2*stepDuration), fewer); err == nil {
		t.Error("a missing component should fail")
	}
	m := acc.Flush()
	if m.Samples != 1 {
		t.Errorf("samples %d; want 1", m.Samples)
	}
	if _, ok := m.Point[CompUC]; ok {
		t.Errorf("%s should not be in the mean", CompUC)
	}
	for name, p := range m.Point {
		for i, v := range p.Elements {
			if v != 1 {
				t.Errorf("%s, element %d: %g; want 1", name, i, v)
				break
			}
		}
	}
}
