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
	"os"
	"path/filepath"
	"testing"

	"github.com/blue-action/amet"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testViper returns a configuration with a valid value for every option.
func testViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("leg", 3)
	v.Set("nlegs", 2)
	v.Set("rundir", t.TempDir())
	v.Set("postprocess", t.TempDir())
	v.Set("archive", "")
	v.Set("expname", "ECE3")
	v.Set("workers", 0)
	v.Set("tolerance", 1.e-6)
	v.Set("plot", false)
	v.Set("cdo", "")
	v.Set("progress", false)
	v.Set("loglevel", "debug")
	return v
}

func TestParseConfig(t *testing.T) {
	v := testViper(t)
	c, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, c.Legs())
	assert.Equal(t, "ECE3", c.Exp)
	assert.Equal(t, logrus.DebugLevel, c.LogLevel)
	assert.True(t, c.Workers >= 1 && c.Workers <= 2, "workers = %d", c.Workers)
	assert.Equal(t, filepath.Join(v.GetString("postprocess"), "ECE3"), c.OutputDir())
}

func TestParseConfigEnv(t *testing.T) {
	v := testViper(t)
	dir := v.GetString("rundir")
	os.Setenv("AMET_TEST_RUNDIR", dir)
	defer os.Unsetenv("AMET_TEST_RUNDIR")
	v.Set("rundir", "${AMET_TEST_RUNDIR}")
	c, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(dir), c.RunDir)
}

func TestParseConfigErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	for _, test := range []struct {
		name   string
		set    map[string]interface{}
		option string
	}{
		{"no leg", map[string]interface{}{"leg": 0}, "leg"},
		{"bad nlegs", map[string]interface{}{"nlegs": 0}, "nlegs"},
		{"no expname", map[string]interface{}{"expname": ""}, "expname"},
		{"no rundir", map[string]interface{}{"rundir": ""}, "rundir"},
		{"missing rundir", map[string]interface{}{"rundir": "/does/not/exist"}, "rundir"},
		{"rundir is a file", map[string]interface{}{"rundir": file}, "rundir"},
		{"missing postprocess", map[string]interface{}{"postprocess": "/does/not/exist"}, "postprocess"},
		{"missing archive", map[string]interface{}{"archive": "/does/not/exist"}, "archive"},
		{"bad archive provider", map[string]interface{}{"archive": "ftp://host/dir"}, "archive"},
		{"nothing to do", map[string]interface{}{"postprocess": "", "archive": ""}, "postprocess"},
		{"negative workers", map[string]interface{}{"workers": -1}, "workers"},
		{"bad tolerance", map[string]interface{}{"tolerance": "x"}, "tolerance"},
		{"missing cdo", map[string]interface{}{"cdo": "/does/not/exist/cdo"}, "cdo"},
		{"bad loglevel", map[string]interface{}{"loglevel": "loud"}, "loglevel"},
	} {
		t.Run(test.name, func(t *testing.T) {
			v := testViper(t)
			for k, val := range test.set {
				v.Set(k, val)
			}
			_, err := ParseConfig(v)
			require.Error(t, err)
			ce, ok := err.(*amet.ConfigurationError)
			require.True(t, ok, "error %v has type %T", err, err)
			assert.Equal(t, test.option, ce.Option)
		})
	}
}

func TestParseConfigArchiveOnly(t *testing.T) {
	v := testViper(t)
	v.Set("postprocess", "")
	v.Set("archive", "file://"+t.TempDir())
	c, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "", c.OutputDir())
}

func TestLegs(t *testing.T) {
	for _, test := range []struct {
		leg, nlegs int
		want       []int
	}{
		{1, 1, []int{1}},
		{6, 2, []int{5, 6}},
		{3, 5, []int{1, 2, 3}},
	} {
		c := &Config{Leg: test.leg, NLegs: test.nlegs}
		assert.Equal(t, test.want, c.Legs(), "leg %d nlegs %d", test.leg, test.nlegs)
	}
}

func TestSplitBlob(t *testing.T) {
	for _, test := range []struct {
		in, bucket, prefix string
	}{
		{"gs://archive/ece3/raw", "gs://archive", "ece3/raw"},
		{"s3://archive", "s3://archive", ""},
		{"file:///data/archive", "file:///data/archive", ""},
	} {
		b, p, err := splitBlob(test.in)
		require.NoError(t, err)
		assert.Equal(t, test.bucket, b)
		assert.Equal(t, test.prefix, p)
	}
	_, _, err := splitBlob("gs:///nobucket")
	assert.Error(t, err)
}
