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

package fields

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// DayEntry describes one available day file.
type DayEntry struct {
	DayOffset int    `toml:"day_offset"` // days from the simulation base date
	Year      int    `toml:"year"`
	Month     int    `toml:"month"`
	Day       int    `toml:"day"`
	DateStr   string `toml:"date_str"` // YYYYMMDD
}

// BoundingBox is the grid envelope in degrees.
type BoundingBox struct {
	North float64 `toml:"north"`
	South float64 `toml:"south"`
	East  float64 `toml:"east"`
	West  float64 `toml:"west"`
}

// VelocityMetadata is the key-value document that accompanies a
// directory of velocity day files.
type VelocityMetadata struct {
	Days        []DayEntry  `toml:"days"`
	Depths      []float64   `toml:"depths"` // metres, ascending
	BoundingBox BoundingBox `toml:"bounding_box"`
}

// ReadVelocityMetadata decodes the metadata document from r.
func ReadVelocityMetadata(r io.Reader, file string) (*VelocityMetadata, error) {
	m := new(VelocityMetadata)
	if _, err := toml.NewDecoder(r).Decode(m); err != nil {
		return nil, &FormatError{File: file, Reason: err.Error()}
	}
	if len(m.Days) == 0 {
		return nil, &FormatError{File: file, Reason: "no days listed"}
	}
	if len(m.Depths) == 0 {
		return nil, &FormatError{File: file, Reason: "no depth levels listed"}
	}
	return m, nil
}

// WriteVelocityMetadata encodes m as a metadata document.
func WriteVelocityMetadata(w io.Writer, m *VelocityMetadata) error {
	return toml.NewEncoder(w).Encode(m)
}

// DiffusivityMetadata is the key-value document that accompanies a
// directory of diffusivity day files.
type DiffusivityMetadata struct {
	TotalDays int      `toml:"total_days"`
	Dates     []string `toml:"dates"` // YYYYMMDD, chronological
}

// ReadDiffusivityMetadata decodes the metadata document from r.
func ReadDiffusivityMetadata(r io.Reader, file string) (*DiffusivityMetadata, error) {
	m := new(DiffusivityMetadata)
	if _, err := toml.NewDecoder(r).Decode(m); err != nil {
		return nil, &FormatError{File: file, Reason: err.Error()}
	}
	if m.TotalDays != len(m.Dates) {
		return nil, &FormatError{File: file,
			Reason: fmt.Sprintf("total_days=%d but %d dates listed", m.TotalDays, len(m.Dates))}
	}
	return m, nil
}

// WriteDiffusivityMetadata encodes m as a metadata document.
func WriteDiffusivityMetadata(w io.Writer, m *DiffusivityMetadata) error {
	return toml.NewEncoder(w).Encode(m)
}
