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
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
)

// writeDiffusivityDir writes a three-day synthetic diffusivity
// directory on a 10×10 grid: K=500 everywhere except a NaN cell at
// (2,2), an over-range cell at (4,4) and an under-range cell at (6,6).
func writeDiffusivityDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	grid := makeVelocityDay(10, 10, 1, 0, 0)

	cf, err := os.Create(filepath.Join(dir, "eke_coords.bin"))
	if err != nil {
		t.Fatal(err)
	}
	err = WriteGridCoords(cf, &GridCoords{NLat: 10, NLon: 10, Lon: grid.Lon, Lat: grid.Lat})
	cf.Close()
	if err != nil {
		t.Fatal(err)
	}

	meta := &DiffusivityMetadata{}
	for off := 0; off < 3; off++ {
		date := testBase.AddDate(0, 0, off)
		key := date.Format("20060102")
		k := sparse.ZerosDense(10, 10)
		for i := range k.Elements {
			k.Elements[i] = 500
		}
		k.Set(math.NaN(), 2, 2)
		k.Set(50000, 4, 4)
		k.Set(3, 6, 6)

		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("eke_%s.bin", key)))
		if err != nil {
			t.Fatal(err)
		}
		err = WriteDiffusivityDay(f, &DiffusivityDay{
			Year: date.Year(), Month: int(date.Month()), Day: date.Day(), K: k,
		})
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		meta.Dates = append(meta.Dates, key)
	}
	meta.TotalDays = len(meta.Dates)

	mf, err := os.Create(filepath.Join(dir, "eke_metadata.toml"))
	if err != nil {
		t.Fatal(err)
	}
	err = WriteDiffusivityMetadata(mf, meta)
	mf.Close()
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestDiffusivityField(t *testing.T) *DiffusivityField {
	t.Helper()
	f := NewDiffusivityField(DirSource{Dir: writeDiffusivityDir(t)}, testBase)
	if err := f.Init(); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDiffusivityLookup(t *testing.T) {
	f := newTestDiffusivityField(t)
	res := f.Diffusivity(140.1, 35.1, 0)
	if !res.Found || different(res.K, 500, 1e-6) {
		t.Errorf("lookup = %+v, want K=500 found", res)
	}
}

func TestDiffusivityClamping(t *testing.T) {
	f := newTestDiffusivityField(t)

	// (4,4) → lon 140.4, lat 35.4: clamped down to KMax.
	res := f.Diffusivity(140.4, 35.4, 0)
	if !res.Found || res.K != KMax {
		t.Errorf("over-range K = %+v, want clamp to %g", res, KMax)
	}
	// (6,6) → lon 140.6, lat 35.6: clamped up to KMin.
	res = f.Diffusivity(140.6, 35.6, 0)
	if !res.Found || res.K != KMin {
		t.Errorf("under-range K = %+v, want clamp to %g", res, KMin)
	}
}

func TestDiffusivityMisses(t *testing.T) {
	f := newTestDiffusivityField(t)

	// NaN cell.
	res := f.Diffusivity(140.2, 35.2, 0)
	if res.Found || res.K != KMin {
		t.Errorf("NaN cell = %+v, want floor miss", res)
	}
	// Unavailable day.
	res = f.Diffusivity(140.1, 35.1, 77)
	if res.Found || res.K != KMin {
		t.Errorf("unavailable day = %+v, want floor miss", res)
	}
	// Far outside the grid the bucket index still returns the edge
	// cell; the result is a legal clamped value rather than an error.
	res = f.Diffusivity(150, 45, 0)
	if res.Found && (res.K < KMin || res.K > KMax) {
		t.Errorf("out-of-envelope K = %g outside [%g, %g]", res.K, KMin, KMax)
	}
}

func TestDiffusivityCacheBound(t *testing.T) {
	f := newTestDiffusivityField(t)
	for off := 0; off < 3; off++ {
		date := testBase.AddDate(0, 0, off)
		if err := f.LoadDay(date.Year(), int(date.Month()), date.Day()); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.ResidentDays(); got > DefaultMaxDaysInMemory {
		t.Errorf("%d days resident, want at most %d", got, DefaultMaxDaysInMemory)
	}
}

func TestDiffusivityMetadataConsistency(t *testing.T) {
	dir := t.TempDir()
	mf, err := os.Create(filepath.Join(dir, "bad.toml"))
	if err != nil {
		t.Fatal(err)
	}
	mf.WriteString("total_days = 3\ndates = [\"20110301\"]\n")
	mf.Close()

	rf, _ := os.Open(filepath.Join(dir, "bad.toml"))
	defer rf.Close()
	if _, err := ReadDiffusivityMetadata(rf, "bad.toml"); err == nil {
		t.Error("inconsistent metadata accepted")
	}
}
