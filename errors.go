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
	"time"
)

// ConfigurationError is returned when a required option is missing or
// a path option does not refer to an existing directory. It is reported
// before any leg is processed.
type ConfigurationError struct {
	Option string
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("amet: configuration option %s=%q: %s", e.Option, e.Path, e.Reason)
	}
	return fmt.Sprintf("amet: configuration option %s: %s", e.Option, e.Reason)
}

// InputNotFoundError is returned when the raw model output for a leg
// cannot be found. Pattern is the file name pattern that was expected.
type InputNotFoundError struct {
	Dir     string
	Pattern string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("amet: input not found: no file matching %s in %s", e.Pattern, e.Dir)
}

// DataIncompleteError is returned when a file that was found lacks
// a required variable or vertical level. Level is empty for surface
// variables.
type DataIncompleteError struct {
	File     string
	Variable string
	Level    string
}

func (e *DataIncompleteError) Error() string {
	if e.Level == "" {
		return fmt.Sprintf("amet: data incomplete: variable %s missing from %s", e.Variable, e.File)
	}
	return fmt.Sprintf("amet: data incomplete: variable %s at level %s missing from %s",
		e.Variable, e.Level, e.File)
}

// ConservationToleranceError reports that the mass-flux divergence left
// after the barotropic correction exceeds the tolerance. It is a data
// quality warning: processing continues and the error is attached to the
// leg report.
type ConservationToleranceError struct {
	Time      time.Time
	Residual  float64
	Tolerance float64
}

func (e *ConservationToleranceError) Error() string {
	return fmt.Sprintf("amet: residual mass flux divergence %g at %s exceeds tolerance %g",
		e.Residual, e.Time.Format("2006-01-02 15:04"), e.Tolerance)
}

// WriteError is returned when an output file cannot be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("amet: writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
