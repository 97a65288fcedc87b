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
	"math"
	"math/rand/v2"
	"testing"
)

func TestKDTreeSubsampling(t *testing.T) {
	day := makeVelocityDay(10, 10, 1, 0, 0)
	tree := NewKDTree(day.Lon, day.Lat)
	// One cell in two along each axis: ceil(10/2)² = 25.
	if tree.Len() != 25 {
		t.Errorf("indexed %d cells, want 25", tree.Len())
	}
}

// Tree lookups agree with brute force over the subsampled cells.
func TestKDTreeNearestMatchesBruteForce(t *testing.T) {
	day := makeVelocityDay(20, 24, 1, 0, 0)
	tree := NewKDTree(day.Lon, day.Lat)

	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		lon := 139.5 + rng.Float64()*3.5
		lat := 34.5 + rng.Float64()*3.0

		got, ok := tree.Nearest(lon, lat)
		if !ok {
			t.Fatal("lookup failed on a populated tree")
		}

		var want CellIndex
		best := math.Inf(1)
		for i := 0; i < 20; i += kdSubsampleStep {
			for j := 0; j < 24; j += kdSubsampleStep {
				flat := i*24 + j
				d := Haversine(lon, lat, day.Lon.Elements[flat], day.Lat.Elements[flat])
				if d < best {
					best = d
					want = CellIndex{I: i, J: j, Flat: flat,
						Lon: day.Lon.Elements[flat], Lat: day.Lat.Elements[flat]}
				}
			}
		}
		gotDist := Haversine(lon, lat, got.Lon, got.Lat)
		if gotDist > best*(1+1e-9) {
			t.Fatalf("query (%g, %g): tree cell (%d,%d) at %gm, brute force (%d,%d) at %gm",
				lon, lat, got.I, got.J, gotDist, want.I, want.J, best)
		}
	}
}

func TestKDTreeSkipsBadCoordinates(t *testing.T) {
	day := makeVelocityDay(6, 6, 1, 0, 0)
	for j := 0; j < 6; j++ {
		day.Lon.Set(math.NaN(), 0, j)
		day.Lat.Set(math.NaN(), 0, j)
	}
	tree := NewKDTree(day.Lon, day.Lat)
	cell, ok := tree.Nearest(140, 35)
	if !ok {
		t.Fatal("lookup failed")
	}
	if cell.I == 0 {
		t.Error("nearest lookup returned a cell with NaN coordinates")
	}
}

func TestKDTreeBounds(t *testing.T) {
	day := makeVelocityDay(10, 10, 1, 0, 0)
	tree := NewKDTree(day.Lon, day.Lat)
	b := tree.Bounds()
	if b.Min.X < 140-1e-9 || b.Max.X > 140.9+1e-9 {
		t.Errorf("bounds %v outside the grid envelope", b)
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is about 111 km.
	d := Haversine(140, 35, 140, 36)
	if math.Abs(d-111195) > 500 {
		t.Errorf("1° latitude = %g m", d)
	}
	if Haversine(140, 35, 140, 35) != 0 {
		t.Error("zero distance expected for identical points")
	}
}
