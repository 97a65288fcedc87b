/*
Copyright © 2026 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package fields provides streaming day-indexed ocean current and
// eddy-diffusivity grids with spatial nearest-cell lookup. Grids are
// loaded one calendar day at a time from binary day files and held in a
// bounded cache; queries against a resident day are synchronous.
package fields

import "fmt"

// FormatError indicates that a binary day file could not be decoded:
// an unsupported version number, or declared dimensions that are
// inconsistent with the payload.
type FormatError struct {
	File   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("fields: format error in %s: %s", e.File, e.Reason)
}

// IoError indicates that a day file could not be fetched or read.
type IoError struct {
	File string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("fields: reading %s: %v", e.File, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
