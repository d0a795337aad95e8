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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/blue-action/amet"
	"github.com/gosuri/uiprogress"
	"github.com/sirupsen/logrus"
)

// SummaryName is the name of the run summary written next to the
// history log.
const SummaryName = "summary.toml"

// LegResult is the outcome of processing one leg.
type LegResult struct {
	Leg int

	// Report is the post-processing report, or nil if the leg was not
	// post-processed.
	Report *amet.LegReport

	// Archived are the archive keys that were written.
	Archived []string

	// Err is the error that stopped the leg, if any.
	Err error

	Duration time.Duration
}

// Run processes all legs requested in c and writes a summary. It returns
// an error if any leg failed.
func Run(ctx context.Context, c *Config) error {
	log, closeLog, err := newLogger(c)
	if err != nil {
		return &amet.WriteError{Path: filepath.Join(c.OutputDir(), HistoryLog), Err: err}
	}
	defer closeLog()
	log.WithField("version", amet.Version).Info(c)

	results := Dispatch(ctx, c, log)
	if c.OutputDir() != "" {
		path := filepath.Join(c.OutputDir(), SummaryName)
		if err := WriteSummary(path, c.Exp, results); err != nil {
			log.Error(err)
		}
	}
	return Summarize(results, log)
}

// Dispatch processes the legs requested in c in parallel, using up to
// c.Workers workers. A leg that fails does not stop the others. The
// results are returned in order of leg number.
func Dispatch(ctx context.Context, c *Config, log logrus.FieldLogger) []LegResult {
	legs := c.Legs()
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	var archiver *Archiver
	if c.Archive != "" {
		var err error
		if archiver, err = NewArchiver(ctx, c.Archive); err != nil {
			// Every leg fails the same way.
			o := make([]LegResult, len(legs))
			for i, l := range legs {
				o[i] = LegResult{Leg: l, Err: err}
			}
			return o
		}
		defer archiver.Close()
	}

	var bars *uiprogress.Progress
	if c.Progress {
		bars = uiprogress.New()
		bars.Out = os.Stderr
		bars.Start()
		defer bars.Stop()
	}

	sem := make(chan struct{}, workers)
	results := make(chan LegResult)
	var wg sync.WaitGroup
	for _, l := range legs {
		wg.Add(1)
		go func(l int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- processLeg(ctx, c, l, archiver, bars, log.WithField("leg", l))
		}(l)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	o := make([]LegResult, 0, len(legs))
	for r := range results {
		o = append(o, r)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Leg < o[j].Leg })
	return o
}

// processLeg post-processes and archives a single leg.
func processLeg(ctx context.Context, c *Config, n int, archiver *Archiver, bars *uiprogress.Progress, log logrus.FieldLogger) (r LegResult) {
	start := time.Now()
	r.Leg = n
	defer func() {
		r.Duration = time.Since(start)
		if r.Err != nil {
			log.WithError(r.Err).Error("leg failed")
		}
	}()

	leg, err := amet.FindLeg(c.RunDir, c.Exp, n)
	if err != nil {
		r.Err = err
		return
	}
	log.WithField("files", []string{leg.GG, leg.SH}).Info("found leg")

	if c.OutputDir() != "" {
		if err = os.MkdirAll(c.OutputDir(), os.ModePerm); err != nil {
			r.Err = &amet.WriteError{Path: c.OutputDir(), Err: err}
			return
		}
		converted, cleanup, err := NewConverter(c.CDO, c.OutputDir()).Convert(ctx, leg)
		if err != nil {
			r.Err = err
			return
		}
		defer cleanup()
		r.Report, err = amet.RunLeg(ctx, amet.LegConfig{
			Leg:       converted,
			OutputDir: c.OutputDir(),
			Constants: amet.DefaultConstants,
			Tolerance: c.Tolerance,
			Retain:    amet.DefaultRetainedLevels,
			Plot:      c.Plot,
			Log:       log,
			Progress:  progressFunc(bars),
		})
		if err != nil {
			r.Err = err
			return
		}
	}

	if archiver != nil {
		if r.Archived, err = archiver.Archive(ctx, leg); err != nil {
			r.Err = err
			return
		}
		log.WithField("files", len(r.Archived)).Info("archived leg")
	}
	return
}

// progressFunc returns a function that updates a progress bar, which is
// added to bars when the first time step is processed. It returns nil
// if bars is nil.
func progressFunc(bars *uiprogress.Progress) func(step, total int) {
	if bars == nil {
		return nil
	}
	var bar *uiprogress.Bar
	return func(step, total int) {
		if bar == nil {
			bar = bars.AddBar(total).AppendCompleted().PrependElapsed()
		}
		bar.Set(step)
	}
}

// Summarize logs the outcome of each leg and returns an error if any
// leg failed.
func Summarize(results []LegResult, log logrus.FieldLogger) error {
	var failed []int
	for _, r := range results {
		l := log.WithFields(logrus.Fields{"leg": r.Leg, "duration": r.Duration.Round(time.Millisecond)})
		if r.Report != nil {
			l = l.WithFields(logrus.Fields{
				"steps":    r.Report.Steps,
				"months":   r.Report.Months,
				"warnings": len(r.Report.Warnings),
			})
		}
		if r.Err != nil {
			failed = append(failed, r.Leg)
			l.WithError(r.Err).Error("failed")
			continue
		}
		l.Info("succeeded")
	}
	if len(failed) > 0 {
		return fmt.Errorf("amet: %d of %d legs failed: %v", len(failed), len(results), failed)
	}
	return nil
}

type summary struct {
	Experiment string       `toml:"experiment"`
	Legs       []legSummary `toml:"leg"`
}

type legSummary struct {
	Leg      int      `toml:"leg"`
	Status   string   `toml:"status"`
	Error    string   `toml:"error,omitempty"`
	Steps    int      `toml:"steps"`
	Months   []string `toml:"months,omitempty"`
	Files    []string `toml:"files,omitempty"`
	Archived []string `toml:"archived,omitempty"`
	Warnings []string `toml:"warnings,omitempty"`
}

// WriteSummary writes the outcome of each leg to a TOML file at path.
func WriteSummary(path, exp string, results []LegResult) error {
	s := summary{Experiment: exp}
	for _, r := range results {
		ls := legSummary{Leg: r.Leg, Status: "ok", Archived: r.Archived}
		if r.Err != nil {
			ls.Status = "failed"
			ls.Error = r.Err.Error()
		}
		if r.Report != nil {
			ls.Steps = r.Report.Steps
			ls.Months = r.Report.Months
			for _, f := range r.Report.Files {
				ls.Files = append(ls.Files, filepath.Base(f))
			}
			for _, w := range r.Report.Warnings {
				ls.Warnings = append(ls.Warnings, w.Error())
			}
		}
		s.Legs = append(s.Legs, ls)
	}
	f, err := os.Create(path)
	if err != nil {
		return &amet.WriteError{Path: path, Err: err}
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return &amet.WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &amet.WriteError{Path: path, Err: err}
	}
	return nil
}

// ReadSummary reads a summary written by WriteSummary and returns the
// status of each leg.
func ReadSummary(path string) (map[int]string, error) {
	var s summary
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, err
	}
	o := make(map[int]string)
	for _, l := range s.Legs {
		o[l.Leg] = l.Status
	}
	return o, nil
}
