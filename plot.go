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
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotName returns the name of the zonal transport plot of a month.
func PlotName(exp, token string) string {
	return fmt.Sprintf("AMET_EC-earth_total_%s_%s.png", exp, token)
}

// PlotZonal plots the zonal integral of the total meridional energy
// transport and its main components against latitude and saves the plot
// as a PNG file in dir. It returns the path of the file.
func PlotZonal(dir, exp string, m *MonthlyMean, g *Grid) (string, error) {
	p, err := plot.New()
	if err != nil {
		return "", err
	}
	p.Title.Text = fmt.Sprintf("Atmospheric Meridional Energy Transport %s %s", exp, m.Label())
	p.X.Label.Text = "Latitude"
	p.Y.Label.Text = "Meridional Energy Transport (PW)"
	p.X.Min, p.X.Max = -90, 90

	var lines []interface{}
	for _, name := range []string{CompTotal, CompInternal, CompLatent, CompGeopotential, CompKinetic} {
		z, ok := m.Zonal[name]
		if !ok {
			continue
		}
		xy := make(plotter.XYs, g.Nlat())
		for j, lat := range g.Lat {
			xy[j].X = lat
			xy[j].Y = z.Elements[j] / 1000 // TW to PW
		}
		lines = append(lines, name, xy)
	}
	if err = plotutil.AddLines(p, lines...); err != nil {
		return "", err
	}
	zero, err := plotter.NewLine(plotter.XYs{{X: -90, Y: 0}, {X: 90, Y: 0}})
	if err != nil {
		return "", err
	}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(zero)

	path := filepath.Join(dir, PlotName(exp, m.Token()))
	if err = p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}
