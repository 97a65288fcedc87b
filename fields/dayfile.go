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
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ctessum/sparse"
)

// Binary day-file versions. Version 4 carries a depth dimension;
// version 3 is the single-depth legacy form.
const (
	velocityFileVersion       = 4
	velocityFileVersionLegacy = 3
	diffusivityFileVersion    = 1
)

// maxGridDim bounds the declared grid dimensions so that a corrupt
// header cannot cause an enormous allocation.
const maxGridDim = 1 << 16

// LandSentinel reports whether v encodes a land cell: IEEE NaN or any
// magnitude of 1000 or greater.
func LandSentinel(v float64) bool {
	return math.IsNaN(v) || math.Abs(v) >= 1000
}

// VelocityDay holds one calendar day of gridded horizontal velocity.
// Lon and Lat have shape {nLat, nLon}; U and V have shape
// {nDepth, nLat, nLon} in m/s. Land cells carry sentinel values.
type VelocityDay struct {
	NLat, NLon, NDepth int
	Year, Month, Day   int

	Lon, Lat *sparse.DenseArray
	U, V     *sparse.DenseArray
}

// DateKey returns the YYYYMMDD key for this day.
func (d *VelocityDay) DateKey() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// release drops the large arrays so their memory can be reclaimed
// after cache eviction. The dimensions and date survive.
func (d *VelocityDay) release() {
	d.Lon, d.Lat, d.U, d.V = nil, nil, nil, nil
}

func readInt32s(r io.Reader, n int) ([]int32, error) {
	out := make([]int32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// readFloats reads n little-endian float32 values into a DenseArray
// with the given shape. The values are copied out of the read buffer so
// the buffer can be released by the caller.
func readFloats(r io.Reader, shape ...int) (*sparse.DenseArray, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	buf := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(shape...)
	for i, v := range buf {
		out.Elements[i] = float64(v)
	}
	return out, nil
}

func checkDim(name, file string, v int32) (int, error) {
	if v <= 0 || v > maxGridDim {
		return 0, &FormatError{File: file, Reason: fmt.Sprintf("%s=%d out of range", name, v)}
	}
	return int(v), nil
}

// ReadVelocityDay decodes a velocity day file. Version 4 headers are
// 7 little-endian int32s (version, nLat, nLon, nDepth, year, month,
// day); version 3 headers omit nDepth and the payload has no depth
// dimension.
func ReadVelocityDay(r io.Reader, file string) (*VelocityDay, error) {
	ver, err := readInt32s(r, 1)
	if err != nil {
		return nil, &IoError{File: file, Err: err}
	}

	d := new(VelocityDay)
	switch ver[0] {
	case velocityFileVersion:
		h, err := readInt32s(r, 6)
		if err != nil {
			return nil, &IoError{File: file, Err: err}
		}
		if d.NLat, err = checkDim("nLat", file, h[0]); err != nil {
			return nil, err
		}
		if d.NLon, err = checkDim("nLon", file, h[1]); err != nil {
			return nil, err
		}
		if d.NDepth, err = checkDim("nDepth", file, h[2]); err != nil {
			return nil, err
		}
		d.Year, d.Month, d.Day = int(h[3]), int(h[4]), int(h[5])
	case velocityFileVersionLegacy:
		h, err := readInt32s(r, 5)
		if err != nil {
			return nil, &IoError{File: file, Err: err}
		}
		if d.NLat, err = checkDim("nLat", file, h[0]); err != nil {
			return nil, err
		}
		if d.NLon, err = checkDim("nLon", file, h[1]); err != nil {
			return nil, err
		}
		d.NDepth = 1
		d.Year, d.Month, d.Day = int(h[2]), int(h[3]), int(h[4])
	default:
		return nil, &FormatError{File: file, Reason: fmt.Sprintf("unsupported version %d", ver[0])}
	}

	if d.Lon, err = readFloats(r, d.NLat, d.NLon); err != nil {
		return nil, payloadErr(file, "lon", err)
	}
	if d.Lat, err = readFloats(r, d.NLat, d.NLon); err != nil {
		return nil, payloadErr(file, "lat", err)
	}
	if d.U, err = readFloats(r, d.NDepth, d.NLat, d.NLon); err != nil {
		return nil, payloadErr(file, "u", err)
	}
	if d.V, err = readFloats(r, d.NDepth, d.NLat, d.NLon); err != nil {
		return nil, payloadErr(file, "v", err)
	}
	return d, nil
}

// payloadErr classifies a payload read failure: a truncated file is a
// dimension/payload mismatch, anything else is I/O.
func payloadErr(file, section string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &FormatError{File: file, Reason: fmt.Sprintf("payload truncated in %s section", section)}
	}
	return &IoError{File: file, Err: err}
}

// WriteVelocityDay encodes d in the version-4 layout.
func WriteVelocityDay(w io.Writer, d *VelocityDay) error {
	hdr := []int32{velocityFileVersion, int32(d.NLat), int32(d.NLon),
		int32(d.NDepth), int32(d.Year), int32(d.Month), int32(d.Day)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	for _, arr := range []*sparse.DenseArray{d.Lon, d.Lat, d.U, d.V} {
		if err := writeFloats(w, arr); err != nil {
			return err
		}
	}
	return nil
}

func writeFloats(w io.Writer, arr *sparse.DenseArray) error {
	buf := make([]float32, len(arr.Elements))
	for i, v := range arr.Elements {
		buf[i] = float32(v)
	}
	return binary.Write(w, binary.LittleEndian, buf)
}

// GridCoords holds the cell coordinate arrays shared by all days of a
// diffusivity grid, shape {nLat, nLon}.
type GridCoords struct {
	NLat, NLon int
	Lon, Lat   *sparse.DenseArray
}

// ReadGridCoords decodes a coordinate file: a 3×int32 header (version,
// nLat, nLon) followed by lon and lat float32 arrays.
func ReadGridCoords(r io.Reader, file string) (*GridCoords, error) {
	h, err := readInt32s(r, 3)
	if err != nil {
		return nil, &IoError{File: file, Err: err}
	}
	if h[0] != diffusivityFileVersion {
		return nil, &FormatError{File: file, Reason: fmt.Sprintf("unsupported version %d", h[0])}
	}
	c := new(GridCoords)
	if c.NLat, err = checkDim("nLat", file, h[1]); err != nil {
		return nil, err
	}
	if c.NLon, err = checkDim("nLon", file, h[2]); err != nil {
		return nil, err
	}
	if c.Lon, err = readFloats(r, c.NLat, c.NLon); err != nil {
		return nil, payloadErr(file, "lon", err)
	}
	if c.Lat, err = readFloats(r, c.NLat, c.NLon); err != nil {
		return nil, payloadErr(file, "lat", err)
	}
	return c, nil
}

// WriteGridCoords encodes c in the coordinate-file layout.
func WriteGridCoords(w io.Writer, c *GridCoords) error {
	hdr := []int32{diffusivityFileVersion, int32(c.NLat), int32(c.NLon)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := writeFloats(w, c.Lon); err != nil {
		return err
	}
	return writeFloats(w, c.Lat)
}

// DiffusivityDay holds one calendar day of eddy diffusivity K in m²/s,
// shape {nLat, nLon} matching the grid coordinate file.
type DiffusivityDay struct {
	Year, Month, Day int
	K                *sparse.DenseArray
}

// DateKey returns the YYYYMMDD key for this day.
func (d *DiffusivityDay) DateKey() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

func (d *DiffusivityDay) release() { d.K = nil }

// ReadDiffusivityDay decodes a diffusivity day file. The cell count
// comes from the coordinate file, which is loaded first.
func ReadDiffusivityDay(r io.Reader, file string, nLat, nLon int) (*DiffusivityDay, error) {
	h, err := readInt32s(r, 4)
	if err != nil {
		return nil, &IoError{File: file, Err: err}
	}
	if h[0] != diffusivityFileVersion {
		return nil, &FormatError{File: file, Reason: fmt.Sprintf("unsupported version %d", h[0])}
	}
	d := &DiffusivityDay{Year: int(h[1]), Month: int(h[2]), Day: int(h[3])}
	if d.K, err = readFloats(r, nLat, nLon); err != nil {
		return nil, payloadErr(file, "K", err)
	}
	return d, nil
}

// WriteDiffusivityDay encodes d in the day-file layout.
func WriteDiffusivityDay(w io.Writer, d *DiffusivityDay) error {
	hdr := []int32{diffusivityFileVersion, int32(d.Year), int32(d.Month), int32(d.Day)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	return writeFloats(w, d.K)
}
