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

// Package ametutil contains the command-line interface and the leg
// orchestration for AMET.
package ametutil

import (
	"context"
	"fmt"

	"github.com/blue-action/amet"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to AMET.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "leg",
			usage: `
              leg specifies the number of the model leg to process.`,
			shorthand:  "l",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "nlegs",
			usage: `
              nlegs specifies the number of legs to process, ending with
              leg. The legs are processed in parallel.`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "rundir",
			usage: `
              rundir is the EC-Earth run directory holding the raw model
              output in <rundir>/<expname>/output/ifs/<leg>.
              It can include environment variables.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "postprocess",
			usage: `
              postprocess is the directory that the derived products are written
              to, in the subdirectory <expname>. If it is empty, the legs are
              only archived. It can include environment variables.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "archive",
			usage: `
              archive is the destination that the raw model output is copied to.
              It can be a directory or a blob storage location in the format
              'provider://bucket/path', where provider is file, gs or s3. If
              it is empty, the raw output is not archived.`,
			shorthand:  "a",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "expname",
			usage: `
              expname is the name of the experiment, as used in the names of
              the raw output files.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of legs to process at the same time.
              If it is zero, one worker per processor is used, up to nlegs.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "tolerance",
			usage: `
              tolerance is the largest acceptable relative residual of the
              column mass flux divergence after the barotropic correction.
              Time steps above the tolerance are reported as warnings.`,
			defaultVal: 1.e-6,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "plot",
			usage: `
              plot specifies whether to plot the zonal energy transport of each month.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "cdo",
			usage: `
              cdo is the path to the Climate Data Operators executable that is used
              to convert the raw GRIB output to NetCDF on a Gaussian grid. If it is
              empty, the raw output must already be in NetCDF format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "progress",
			usage: `
              progress specifies whether to show a progress bar for each leg.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel is the lowest level of log messages to write. Valid
              options are debug, info, warning and error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("AMET")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(versionCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("amet: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "amet",
	Short: "Atmospheric meridional energy transport from EC-Earth output.",
	Long: `amet calculates the atmospheric meridional energy transport (AMET) and its
components from the raw output of EC-Earth model legs, writes monthly means
and selected 3-hourly fields to NetCDF files, and optionally archives the raw
output.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'AMET_var' where 'var' is the
name of the variable to be set. Path variables are additionally allowed to
contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ParseConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(context.Background(), cfg)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of AMET.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("AMET v%s\n", amet.Version)
	},
	DisableAutoGenTag: true,
}
