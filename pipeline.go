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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// LegConfig holds the settings for processing one leg.
type LegConfig struct {
	Leg *Leg

	// OutputDir is the directory the products are written to.
	OutputDir string

	Constants Constants

	// Tolerance is the largest acceptable relative residual of the
	// mass flux divergence after the barotropic correction.
	Tolerance float64

	// Retain are the pressure levels [Pa] at which the level fields are
	// exported.
	Retain []float64

	// Plot specifies whether to plot the zonal transport of each month.
	Plot bool

	Log logrus.FieldLogger

	// Progress, if not nil, is called after each time step with the
	// number of steps processed and the total number of steps.
	Progress func(step, total int)
}

// LegReport summarizes the processing of a leg.
type LegReport struct {
	Leg       int
	TimeToken string

	// Steps is the number of time steps processed.
	Steps int

	// Months are the months written, as YYYYMM.
	Months []string

	// Files are the paths of the files written.
	Files []string

	// Warnings are the data quality problems that were found, such as
	// *ConservationToleranceError.
	Warnings []error
}

// RunLeg calculates the monthly mean energy transport of a leg and writes
// the monthly and 3-hourly products. The time steps are processed in
// order. Products are written to a staging directory and moved into
// cfg.OutputDir after the whole leg has been processed, so a failed leg
// leaves no partial products behind.
func RunLeg(ctx context.Context, cfg LegConfig) (*LegReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"leg": cfg.Leg.Number, "exp": cfg.Leg.Exp})

	src, err := OpenLeg(cfg.Leg, cfg.Constants, cfg.Retain, log)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err = os.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		return nil, &WriteError{Path: cfg.OutputDir, Err: err}
	}
	staging, err := os.MkdirTemp(cfg.OutputDir, fmt.Sprintf(".leg%03d-", cfg.Leg.Number))
	if err != nil {
		return nil, &WriteError{Path: cfg.OutputDir, Err: err}
	}
	defer os.RemoveAll(staging)

	report := &LegReport{Leg: cfg.Leg.Number, TimeToken: cfg.Leg.TimeToken}
	var staged []string
	finish := func(m *MonthlyMean) error {
		m.Leg = cfg.Leg.Number
		l := log.WithFields(logrus.Fields{"month": m.Label(), "samples": m.Samples})
		if m.Partial {
			l.Warn("month is incomplete in this leg; writing the mean of the available time steps")
		}
		files, err := WriteMonthly(staging, cfg.Leg.Exp, m, src.Grid)
		if err != nil {
			return err
		}
		if cfg.Plot {
			png, err := PlotZonal(staging, cfg.Leg.Exp, m, src.Grid)
			if err != nil {
				return err
			}
			files = append(files, png)
		}
		staged = append(staged, files...)
		report.Months = append(report.Months, m.Label())
		l.Info("wrote monthly mean")
		return nil
	}

	exports, err := NewExportWriter(staging, src, log)
	if err != nil {
		return nil, err
	}
	defer exports.Close()

	acc := NewAccumulator(src.Grid)
	next := src.Next()
	for {
		snap, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		corr, err := Correct(src.Grid, src.Levels, snap, cfg.Constants, cfg.Tolerance)
		if err != nil {
			var cte *ConservationToleranceError
			if !errors.As(err, &cte) {
				return nil, err
			}
			log.Warn(err)
			report.Warnings = append(report.Warnings, err)
		}
		log.WithFields(logrus.Fields{
			"time":     snap.Time,
			"residual":        corr.ResidualAfter,
			"column_residual": corr.ColumnResidual,
		}).Debug("corrected mass budget")

		done, err := acc.Add(snap.Time, Decompose(src.Grid, src.Levels, snap, corr, cfg.Constants))
		if err != nil {
			return nil, err
		}
		if done != nil {
			if err = finish(done); err != nil {
				return nil, err
			}
		}
		if err = exports.Write(snap); err != nil {
			return nil, err
		}
		report.Steps++
		if cfg.Progress != nil {
			cfg.Progress(report.Steps, len(src.Times))
		}
	}
	if m := acc.Flush(); m != nil {
		if err = finish(m); err != nil {
			return nil, err
		}
	}
	if err = exports.Close(); err != nil {
		return nil, err
	}
	staged = append(staged, exports.Files()...)
	sort.Strings(staged)

	for _, f := range staged {
		dst := filepath.Join(cfg.OutputDir, filepath.Base(f))
		if err = os.Rename(f, dst); err != nil {
			return nil, &WriteError{Path: dst, Err: err}
		}
		report.Files = append(report.Files, dst)
	}
	log.WithFields(logrus.Fields{
		"steps":    report.Steps,
		"months":   len(report.Months),
		"warnings": len(report.Warnings),
	}).Info("finished leg")
	return report, nil
}
