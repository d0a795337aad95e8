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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/blue-action/amet"
)

// A Converter makes the raw output of a leg readable as NetCDF. The
// returned cleanup function removes any intermediate files and must be
// called once the converted leg is no longer needed.
type Converter interface {
	Convert(ctx context.Context, leg *amet.Leg) (converted *amet.Leg, cleanup func(), err error)
}

// NewConverter returns a converter that uses the cdo executable at
// cdoPath, writing intermediate files in a temporary directory within
// workDir. If cdoPath is empty, the returned converter leaves the
// files as they are.
func NewConverter(cdoPath, workDir string) Converter {
	if cdoPath == "" {
		return nopConverter{}
	}
	return &cdoConverter{path: cdoPath, workDir: workDir}
}

type nopConverter struct{}

func (nopConverter) Convert(_ context.Context, leg *amet.Leg) (*amet.Leg, func(), error) {
	return leg, func() {}, nil
}

// cdoConverter converts the grid-point file to NetCDF-4 and transforms
// the spectral file onto the Gaussian grid, using the Climate Data
// Operators.
type cdoConverter struct {
	path    string
	workDir string
}

func (c *cdoConverter) Convert(ctx context.Context, leg *amet.Leg) (*amet.Leg, func(), error) {
	dir, err := os.MkdirTemp(c.workDir, fmt.Sprintf(".cdo%03d-", leg.Number))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }
	out := *leg
	out.Dir = dir
	for _, f := range []struct {
		operator string
		src      string
		dst      *string
	}{
		{"copy", leg.GG, &out.GG},
		{"sp2gpl", leg.SH, &out.SH},
	} {
		if isNetCDF(f.src) {
			continue
		}
		*f.dst = filepath.Join(dir, filepath.Base(f.src)+".nc")
		if err := c.run(ctx, f.operator, f.src, *f.dst); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return &out, cleanup, nil
}

func (c *cdoConverter) run(ctx context.Context, operator, src, dst string) error {
	cmd := exec.CommandContext(ctx, c.path, "-f", "nc4", "-t", "ecmwf", operator, src, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ametutil: cdo %s %s: %v: %s", operator, filepath.Base(src), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// isNetCDF returns whether the file at path has a NetCDF or HDF5
// signature.
func isNetCDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sig := make([]byte, 4)
	if _, err := io.ReadFull(f, sig); err != nil {
		return false
	}
	return bytes.HasPrefix(sig, []byte("CDF")) || bytes.Equal(sig, []byte("\x89HDF"))
}
