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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

const earthRadiusM = 6371000.0

// pruneMetersPerDeg underestimates metres per degree so the plane-cut
// bound never exceeds the true great-circle distance.
const pruneMetersPerDeg = 110574.0

// Haversine returns the great-circle distance in metres between two
// lon/lat points in degrees.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// CellIndex identifies a grid cell: its row/column, its flat index
// into the (nLat·nLon) arrays, and its coordinates.
type CellIndex struct {
	I, J, Flat int
	Lon, Lat   float64
}

type kdNode struct {
	cell        CellIndex
	left, right *kdNode
}

// KDTree is a two-dimensional tree over grid cells, split on
// alternating lon/lat axes. It is built once from a subsampled set of
// cells (every second row and column) and reused for the lifetime of
// the grid, because cell coordinates are invariant across days.
type KDTree struct {
	root   *kdNode
	bounds *geom.Bounds
	n      int
}

// kdSubsampleStep keeps one cell in this many along each axis.
const kdSubsampleStep = 2

// NewKDTree builds a tree from the given coordinate arrays of shape
// {nLat, nLon}. Cells with non-finite coordinates are skipped.
func NewKDTree(lon, lat *sparse.DenseArray) *KDTree {
	nLat, nLon := lon.Shape[0], lon.Shape[1]
	cells := make([]CellIndex, 0, (nLat/kdSubsampleStep+1)*(nLon/kdSubsampleStep+1))
	bounds := geom.NewBounds()
	for i := 0; i < nLat; i += kdSubsampleStep {
		for j := 0; j < nLon; j += kdSubsampleStep {
			flat := i*nLon + j
			lo, la := lon.Elements[flat], lat.Elements[flat]
			if math.IsNaN(lo) || math.IsNaN(la) {
				continue
			}
			cells = append(cells, CellIndex{I: i, J: j, Flat: flat, Lon: lo, Lat: la})
			bounds.Extend(geom.NewBoundsPoint(geom.Point{X: lo, Y: la}))
		}
	}
	t := &KDTree{bounds: bounds, n: len(cells)}
	t.root = buildKD(cells, 0)
	return t
}

func buildKD(cells []CellIndex, depth int) *kdNode {
	if len(cells) == 0 {
		return nil
	}
	if depth%2 == 0 { // split on longitude
		sort.Slice(cells, func(a, b int) bool { return cells[a].Lon < cells[b].Lon })
	} else {
		sort.Slice(cells, func(a, b int) bool { return cells[a].Lat < cells[b].Lat })
	}
	m := len(cells) / 2
	return &kdNode{
		cell:  cells[m],
		left:  buildKD(cells[:m], depth+1),
		right: buildKD(cells[m+1:], depth+1),
	}
}

// Len returns the number of indexed cells.
func (t *KDTree) Len() int { return t.n }

// Bounds returns the envelope of the indexed cells in degrees.
func (t *KDTree) Bounds() *geom.Bounds { return t.bounds }

// Nearest returns the indexed cell closest to (lon, lat) by haversine
// distance. ok is false for an empty tree.
func (t *KDTree) Nearest(lon, lat float64) (cell CellIndex, ok bool) {
	if t.root == nil {
		return CellIndex{}, false
	}
	best := t.root.cell
	bestDist := Haversine(lon, lat, best.Lon, best.Lat)
	t.root.nearest(lon, lat, 0, &best, &bestDist)
	return best, true
}

func (n *kdNode) nearest(lon, lat float64, depth int, best *CellIndex, bestDist *float64) {
	if n == nil {
		return
	}
	d := Haversine(lon, lat, n.cell.Lon, n.cell.Lat)
	if d < *bestDist {
		*bestDist, *best = d, n.cell
	}

	// Distance from the query point to the splitting plane, as a
	// lower bound in metres on any cell on the far side.
	var planeDist float64
	var near, far *kdNode
	if depth%2 == 0 {
		planeDist = math.Abs(lon-n.cell.Lon) * pruneMetersPerDeg * math.Cos(lat*math.Pi/180)
		if lon < n.cell.Lon {
			near, far = n.left, n.right
		} else {
			near, far = n.right, n.left
		}
	} else {
		planeDist = math.Abs(lat-n.cell.Lat) * pruneMetersPerDeg
		if lat < n.cell.Lat {
			near, far = n.left, n.right
		} else {
			near, far = n.right, n.left
		}
	}

	near.nearest(lon, lat, depth+1, best, bestDist)
	if planeDist < *bestDist {
		far.nearest(lon, lat, depth+1, best, bestDist)
	}
}
