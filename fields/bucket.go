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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// bucketGridSize is the number of buckets along each axis of the
// coarse spatial index.
const bucketGridSize = 50

// bucketIndex is a fixed-size bucket grid over the lon/lat bounding
// box of a cell grid. Lookup examines the target bucket and its eight
// neighbours and returns the closest candidate by haversine distance.
type bucketIndex struct {
	nx, ny  int
	bounds  *geom.Bounds
	dx, dy  float64
	buckets [][]CellIndex
}

func newBucketIndex(lon, lat *sparse.DenseArray) *bucketIndex {
	nLat, nLon := lon.Shape[0], lon.Shape[1]
	bounds := geom.NewBounds()
	for i, lo := range lon.Elements {
		la := lat.Elements[i]
		if math.IsNaN(lo) || math.IsNaN(la) {
			continue
		}
		bounds.Extend(geom.NewBoundsPoint(geom.Point{X: lo, Y: la}))
	}

	b := &bucketIndex{
		nx:      bucketGridSize,
		ny:      bucketGridSize,
		bounds:  bounds,
		buckets: make([][]CellIndex, bucketGridSize*bucketGridSize),
	}
	b.dx = (bounds.Max.X - bounds.Min.X) / float64(b.nx)
	b.dy = (bounds.Max.Y - bounds.Min.Y) / float64(b.ny)

	for i := 0; i < nLat; i++ {
		for j := 0; j < nLon; j++ {
			flat := i*nLon + j
			lo, la := lon.Elements[flat], lat.Elements[flat]
			if math.IsNaN(lo) || math.IsNaN(la) {
				continue
			}
			bi, bj := b.bucketOf(lo, la)
			k := bi*b.nx + bj
			b.buckets[k] = append(b.buckets[k],
				CellIndex{I: i, J: j, Flat: flat, Lon: lo, Lat: la})
		}
	}
	return b
}

// bucketOf maps a coordinate to bucket indices, clamped to the grid.
func (b *bucketIndex) bucketOf(lon, lat float64) (int, int) {
	bj := 0
	if b.dx > 0 {
		bj = int((lon - b.bounds.Min.X) / b.dx)
	}
	bi := 0
	if b.dy > 0 {
		bi = int((lat - b.bounds.Min.Y) / b.dy)
	}
	if bj < 0 {
		bj = 0
	} else if bj >= b.nx {
		bj = b.nx - 1
	}
	if bi < 0 {
		bi = 0
	} else if bi >= b.ny {
		bi = b.ny - 1
	}
	return bi, bj
}

// nearest returns the closest cell among the target bucket and its
// eight neighbours.
func (b *bucketIndex) nearest(lon, lat float64) (CellIndex, bool) {
	bi, bj := b.bucketOf(lon, lat)
	var best CellIndex
	bestDist := math.Inf(1)
	found := false
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			i, j := bi+di, bj+dj
			if i < 0 || i >= b.ny || j < 0 || j >= b.nx {
				continue
			}
			for _, cell := range b.buckets[i*b.nx+j] {
				if d := Haversine(lon, lat, cell.Lon, cell.Lat); d < bestDist {
					best, bestDist, found = cell, d, true
				}
			}
		}
	}
	return best, found
}
