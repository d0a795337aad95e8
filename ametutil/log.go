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
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// HistoryLog is the name of the log file written in the output directory
// of an experiment.
const HistoryLog = "history.log"

// newLogger returns a logger writing to standard error and, if the run
// derives products, to the history log in the output directory, which is
// created if necessary. The returned function closes the log file.
func newLogger(c *Config) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = c.LogLevel
	log.Out = os.Stderr
	if c.OutputDir() == "" {
		return log, func() error { return nil }, nil
	}
	if err := os.MkdirAll(c.OutputDir(), os.ModePerm); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(filepath.Join(c.OutputDir(), HistoryLog))
	if err != nil {
		return nil, nil, err
	}
	log.Out = io.MultiWriter(os.Stderr, f)
	return log, f.Close, nil
}
