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
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// makeVelocityDay builds a small synthetic grid: a regular 0.1° mesh
// with uniform flow and a land column at j = nLon-1.
func makeVelocityDay(nLat, nLon, nDepth int, u, v float64) *VelocityDay {
	d := &VelocityDay{
		NLat: nLat, NLon: nLon, NDepth: nDepth,
		Year: 2011, Month: 3, Day: 1,
		Lon: sparse.ZerosDense(nLat, nLon),
		Lat: sparse.ZerosDense(nLat, nLon),
		U:   sparse.ZerosDense(nDepth, nLat, nLon),
		V:   sparse.ZerosDense(nDepth, nLat, nLon),
	}
	for i := 0; i < nLat; i++ {
		for j := 0; j < nLon; j++ {
			d.Lon.Set(140+0.1*float64(j), i, j)
			d.Lat.Set(35+0.1*float64(i), i, j)
			for k := 0; k < nDepth; k++ {
				if j == nLon-1 {
					d.U.Set(math.NaN(), k, i, j)
					d.V.Set(math.NaN(), k, i, j)
				} else {
					d.U.Set(u, k, i, j)
					d.V.Set(v, k, i, j)
				}
			}
		}
	}
	return d
}

func TestVelocityDayRoundTrip(t *testing.T) {
	want := makeVelocityDay(6, 8, 2, 0.3, -0.1)
	var buf bytes.Buffer
	if err := WriteVelocityDay(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadVelocityDay(&buf, "test.bin")
	if err != nil {
		t.Fatal(err)
	}
	if got.NLat != 6 || got.NLon != 8 || got.NDepth != 2 ||
		got.Year != 2011 || got.Month != 3 || got.Day != 1 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.DateKey() != "20110301" {
		t.Errorf("date key = %q", got.DateKey())
	}
	for i, w := range want.U.Elements {
		g := got.U.Elements[i]
		if math.IsNaN(w) != math.IsNaN(g) {
			t.Fatalf("sentinel not preserved at %d", i)
		}
		if !math.IsNaN(w) && different(g, w, 1e-6) {
			t.Fatalf("u[%d] = %g, want %g", i, g, w)
		}
	}
}

func TestVelocityDayLegacyVersion(t *testing.T) {
	// Version 3: 6×int32 header, no depth dimension.
	var buf bytes.Buffer
	hdr := []int32{3, 2, 3, 2012, 6, 15}
	binary.Write(&buf, binary.LittleEndian, hdr)
	cells := 6
	arrays := [][]float32{
		{140, 141, 142, 140, 141, 142},       // lon
		{35, 35, 35, 36, 36, 36},             // lat
		{0.1, 0.1, 0.1, 0.1, 0.1, 0.1},       // u
		{-0.2, -0.2, -0.2, -0.2, -0.2, -0.2}, // v
	}
	for _, a := range arrays {
		if len(a) != cells {
			t.Fatal("bad fixture")
		}
		binary.Write(&buf, binary.LittleEndian, a)
	}

	got, err := ReadVelocityDay(&buf, "legacy.bin")
	if err != nil {
		t.Fatal(err)
	}
	if got.NDepth != 1 {
		t.Errorf("legacy nDepth = %d, want 1", got.NDepth)
	}
	if got.NLat != 2 || got.NLon != 3 || got.Year != 2012 {
		t.Errorf("legacy header mismatch: %+v", got)
	}
	if different(got.U.Elements[0], 0.1, 1e-6) {
		t.Errorf("legacy u[0] = %g", got.U.Elements[0])
	}
}

func TestVelocityDayBadVersion(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []int32{9, 2, 2, 1, 2011, 3, 1})
	_, err := ReadVelocityDay(&buf, "bad.bin")
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("unsupported version returned %v, want FormatError", err)
	}
}

func TestVelocityDayTruncated(t *testing.T) {
	want := makeVelocityDay(4, 4, 1, 0.1, 0)
	var buf bytes.Buffer
	if err := WriteVelocityDay(&buf, want); err != nil {
		t.Fatal(err)
	}
	short := buf.Bytes()[:buf.Len()-10]
	_, err := ReadVelocityDay(bytes.NewReader(short), "short.bin")
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("truncated payload returned %v, want FormatError", err)
	}
}

func TestVelocityDayBadDims(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []int32{4, -5, 10, 1, 2011, 3, 1})
	_, err := ReadVelocityDay(&buf, "dims.bin")
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("negative dimension returned %v, want FormatError", err)
	}
}

func TestGridCoordsRoundTrip(t *testing.T) {
	day := makeVelocityDay(5, 4, 1, 0, 0)
	want := &GridCoords{NLat: 5, NLon: 4, Lon: day.Lon, Lat: day.Lat}
	var buf bytes.Buffer
	if err := WriteGridCoords(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadGridCoords(&buf, "coords.bin")
	if err != nil {
		t.Fatal(err)
	}
	if got.NLat != 5 || got.NLon != 4 {
		t.Fatalf("coords header mismatch: %+v", got)
	}
	if different(got.Lon.Elements[3], want.Lon.Elements[3], 1e-6) {
		t.Error("coords payload mismatch")
	}
}

func TestDiffusivityDayRoundTrip(t *testing.T) {
	k := sparse.ZerosDense(3, 3)
	for i := range k.Elements {
		k.Elements[i] = 100 + float64(i)
	}
	k.Elements[4] = math.NaN()
	want := &DiffusivityDay{Year: 2011, Month: 4, Day: 2, K: k}

	var buf bytes.Buffer
	if err := WriteDiffusivityDay(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadDiffusivityDay(&buf, "k.bin", 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.DateKey() != "20110402" {
		t.Errorf("date key = %q", got.DateKey())
	}
	if different(got.K.Elements[8], 108, 1e-6) || !math.IsNaN(got.K.Elements[4]) {
		t.Error("diffusivity payload mismatch")
	}
}

func TestLandSentinel(t *testing.T) {
	for _, c := range []struct {
		v    float64
		want bool
	}{
		{0, false}, {999.9, false}, {-999.9, false},
		{1000, true}, {-1000, true}, {12345, true}, {math.NaN(), true},
	} {
		if got := LandSentinel(c.v); got != c.want {
			t.Errorf("LandSentinel(%g) = %v, want %v", c.v, got, c.want)
		}
	}
}

func different(a, b, tolerance float64) bool {
	if b == 0 {
		return math.Abs(a-b) > tolerance
	}
	return math.Abs((a-b)/b) > tolerance
}
