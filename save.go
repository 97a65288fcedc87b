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

package oceandrift

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// archiveVersion is the snapshot archive document version.
const archiveVersion = 1

// ArchiveMetadata describes the run a snapshot archive came from.
type ArchiveMetadata struct {
	SimStart  string  `json:"sim_start"` // calendar date of day 0
	SimEnd    string  `json:"sim_end"`
	TotalDays float64 `json:"total_days"`
	Tracer    string  `json:"tracer"`
}

// Archive is the persisted snapshot document. It is the only state
// the engine persists.
type Archive struct {
	Version   int             `json:"version"`
	Timestamp string          `json:"timestamp"`
	Metadata  ArchiveMetadata `json:"metadata"`
	Snapshots []*Snapshot     `json:"snapshots"`
}

// Archive assembles the accumulated snapshots into an archive
// document.
func (b *Baker) Archive() *Archive {
	e := b.Engine
	a := &Archive{
		Version:   archiveVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Snapshots: b.Snapshots,
	}
	a.Metadata.Tracer = e.Release.Tracer().ID
	a.Metadata.SimStart = e.Config.BaseDate.Format("2006-01-02")
	if n := len(b.Snapshots); n > 0 {
		a.Metadata.TotalDays = b.Snapshots[n-1].Day
		a.Metadata.SimEnd = e.Config.BaseDate.
			AddDate(0, 0, int(b.Snapshots[n-1].Day)).Format("2006-01-02")
	}
	return a
}

// WriteArchive encodes a as an indented text document.
func WriteArchive(w io.Writer, a *Archive) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("oceandrift: writing archive: %w", err)
	}
	return nil
}

// ReadArchive decodes an archive document and checks its version.
func ReadArchive(r io.Reader) (*Archive, error) {
	a := new(Archive)
	if err := json.NewDecoder(r).Decode(a); err != nil {
		return nil, fmt.Errorf("oceandrift: reading archive: %w", err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("oceandrift: unsupported archive version %d", a.Version)
	}
	return a, nil
}
