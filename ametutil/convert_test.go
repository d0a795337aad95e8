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
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/blue-action/amet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopConverter(t *testing.T) {
	leg := &amet.Leg{Number: 1, GG: "gg", SH: "sh"}
	c, cleanup, err := NewConverter("", "").Convert(context.Background(), leg)
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, leg, c)
}

// fakeCDO writes a script that stands in for cdo by copying its input
// file to its output file, recording the operator in a log.
func fakeCDO(t *testing.T) (path, log string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported")
	}
	dir := t.TempDir()
	path = filepath.Join(dir, "cdo")
	log = filepath.Join(dir, "cdo.log")
	script := "#!/bin/sh\necho \"$5\" >> " + log + "\ncp \"$6\" \"$7\"\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(script), 0755))
	return path, log
}

func TestCDOConverter(t *testing.T) {
	cdo, log := fakeCDO(t)
	rundir, work := t.TempDir(), t.TempDir()
	dir := writeLeg(t, rundir, "ECE3", 1, 1)
	leg, err := amet.FindLeg(rundir, "ECE3", 1)
	require.NoError(t, err)

	// Replace the spectral file with one that isn't NetCDF.
	grib := filepath.Join(dir, "ICMSHECE3+200001")
	require.NoError(t, ioutil.WriteFile(grib, []byte("GRIB...."), 0644))

	c, cleanup, err := NewConverter(cdo, work).Convert(context.Background(), leg)
	require.NoError(t, err)
	assert.Equal(t, leg.GG, c.GG, "NetCDF input should not be converted")
	assert.Equal(t, filepath.Join(c.Dir, "ICMSHECE3+200001.nc"), c.SH)
	assert.FileExists(t, c.SH)

	ops, err := ioutil.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "sp2gpl\n", string(ops))

	cleanup()
	_, err = os.Stat(c.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCDOConverterFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported")
	}
	dir := t.TempDir()
	cdo := filepath.Join(dir, "cdo")
	require.NoError(t, ioutil.WriteFile(cdo, []byte("#!/bin/sh\necho 'cdo: unsupported' >&2\nexit 1\n"), 0755))
	src := filepath.Join(dir, "ICMGGECE3+200001")
	require.NoError(t, ioutil.WriteFile(src, []byte("GRIB"), 0644))

	work := t.TempDir()
	_, _, err := NewConverter(cdo, work).Convert(context.Background(), &amet.Leg{Number: 1, GG: src, SH: src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cdo: unsupported")
	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
