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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/blue-action/amet"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Config holds the checked settings of a run.
type Config struct {
	// Leg is the last leg to process and NLegs is the number of legs.
	Leg, NLegs int

	// RunDir is the EC-Earth run directory.
	RunDir string

	// PostprocessDir is the directory for the derived products. If it is
	// empty, no products are derived.
	PostprocessDir string

	// Archive is the archive destination. If it is empty, the raw output
	// is not archived.
	Archive string

	// Exp is the experiment name.
	Exp string

	Workers   int
	Tolerance float64
	Plot      bool

	// CDO is the path to the cdo executable, or empty if the raw output
	// is already in NetCDF format.
	CDO string

	Progress bool
	LogLevel logrus.Level
}

// ParseConfig checks the options in cfg and returns the run settings.
// All problems are reported as *amet.ConfigurationError.
func ParseConfig(cfg *viper.Viper) (*Config, error) {
	c := new(Config)
	var err error
	if c.Leg, err = cast.ToIntE(cfg.Get("leg")); err != nil || c.Leg < 1 {
		return nil, &amet.ConfigurationError{Option: "leg", Reason: "must be specified as a leg number greater than zero"}
	}
	if c.NLegs, err = cast.ToIntE(cfg.Get("nlegs")); err != nil || c.NLegs < 1 {
		return nil, &amet.ConfigurationError{Option: "nlegs", Reason: "must be at least 1"}
	}
	if c.Exp = os.ExpandEnv(cfg.GetString("expname")); c.Exp == "" {
		return nil, &amet.ConfigurationError{Option: "expname", Reason: "the experiment name must be specified"}
	}
	if c.RunDir, err = checkDir("rundir", cfg.GetString("rundir"), true); err != nil {
		return nil, err
	}
	if c.PostprocessDir, err = checkDir("postprocess", cfg.GetString("postprocess"), false); err != nil {
		return nil, err
	}
	if c.Archive, err = checkArchive(cfg.GetString("archive")); err != nil {
		return nil, err
	}
	if c.PostprocessDir == "" && c.Archive == "" {
		return nil, &amet.ConfigurationError{Option: "postprocess", Reason: "at least one of postprocess and archive must be specified"}
	}

	if c.Workers, err = cast.ToIntE(cfg.Get("workers")); err != nil || c.Workers < 0 {
		return nil, &amet.ConfigurationError{Option: "workers", Reason: "must be a non-negative integer"}
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Workers > c.NLegs {
		c.Workers = c.NLegs
	}
	if c.Tolerance, err = cast.ToFloat64E(cfg.Get("tolerance")); err != nil || !(c.Tolerance > 0) {
		return nil, &amet.ConfigurationError{Option: "tolerance", Reason: "must be a number greater than zero"}
	}
	c.Plot = cfg.GetBool("plot")
	c.Progress = cfg.GetBool("progress")

	if cdo := os.ExpandEnv(cfg.GetString("cdo")); cdo != "" {
		if c.CDO, err = exec.LookPath(cdo); err != nil {
			return nil, &amet.ConfigurationError{Option: "cdo", Path: cdo, Reason: err.Error()}
		}
	}

	level := cfg.GetString("loglevel")
	if level == "" {
		level = "info"
	}
	if c.LogLevel, err = logrus.ParseLevel(level); err != nil {
		return nil, &amet.ConfigurationError{Option: "loglevel", Reason: err.Error()}
	}
	return c, nil
}

// checkDir expands any environment variables in the path of option and
// makes sure it refers to an existing directory. An empty path is an
// error only if the option is required.
func checkDir(option, path string, required bool) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		if required {
			return "", &amet.ConfigurationError{Option: option, Reason: "must be specified"}
		}
		return "", nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", &amet.ConfigurationError{Option: option, Path: path, Reason: "the directory does not exist"}
	}
	if !fi.IsDir() {
		return "", &amet.ConfigurationError{Option: option, Path: path, Reason: "not a directory"}
	}
	return filepath.Clean(path), nil
}

// checkArchive checks the archive destination, which is either a
// directory or a blob storage location.
func checkArchive(dest string) (string, error) {
	dest = os.ExpandEnv(dest)
	if !IsBlob(dest) {
		return checkDir("archive", dest, false)
	}
	if _, _, err := splitBlob(dest); err != nil {
		return "", &amet.ConfigurationError{Option: "archive", Path: dest, Reason: err.Error()}
	}
	return dest, nil
}

// Legs returns the numbers of the legs to process in ascending order.
func (c *Config) Legs() []int {
	first := c.Leg - c.NLegs + 1
	if first < 1 {
		first = 1
	}
	var legs []int
	for l := first; l <= c.Leg; l++ {
		legs = append(legs, l)
	}
	return legs
}

// OutputDir returns the directory that the products of the experiment are
// written to.
func (c *Config) OutputDir() string {
	if c.PostprocessDir == "" {
		return ""
	}
	return filepath.Join(c.PostprocessDir, c.Exp)
}

func (c *Config) String() string {
	return fmt.Sprintf("exp=%s legs=%v rundir=%s postprocess=%s archive=%s workers=%d",
		c.Exp, c.Legs(), c.RunDir, c.PostprocessDir, c.Archive, c.Workers)
}
