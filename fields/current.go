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
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/golang/groupcache/lru"
	"github.com/sirupsen/logrus"
)

// DefaultDepths are the discrete depth levels, in metres, used when a
// metadata document does not override them.
var DefaultDepths = []float64{0, 50, 100, 200, 500, 1000}

// VelocityResult is one velocity lookup. Found is false when the query
// resolved to a land cell, an unavailable day, or an unindexed
// location; in that case U and V are zero.
type VelocityResult struct {
	U, V        float64 // m/s
	Found       bool
	ActualDepth float64 // metres, the snapped depth level
}

// OceanCell is a grid cell found by NearestOceanCell.
type OceanCell struct {
	Lon, Lat    float64
	I, J        int
	ActualDepth float64
}

// CurrentField streams day-indexed gridded horizontal velocity. Days
// are loaded on demand from Source and held in a bounded cache; the
// nearest-cell index is built once from the first loaded day because
// cell coordinates are invariant across days.
type CurrentField struct {
	Source   Source
	BaseDate time.Time // calendar date of simulation day 0

	// MaxDaysInMemory bounds the day cache. Zero means the default.
	MaxDaysInMemory int

	// FilePrefix names the day files: <prefix>_YYYYMMDD.bin and
	// <prefix>_metadata.toml. Empty means "currents".
	FilePrefix string

	Log logrus.FieldLogger

	meta        *VelocityMetadata
	depths      []float64
	dayByOffset map[int]DayEntry
	cache       *dayCache
	bounds      *geom.Bounds

	treeOnce sync.Once
	tree     *KDTree

	lookupMu sync.Mutex
	lookup   *lru.Cache // quantized position -> CellIndex
}

// lookupCacheSize bounds the memoized nearest-cell lookups.
const lookupCacheSize = 4096

// NewCurrentField returns a field reading from src, with simulation
// day 0 anchored at base.
func NewCurrentField(src Source, base time.Time) *CurrentField {
	return &CurrentField{
		Source:   src,
		BaseDate: base,
		Log:      logrus.StandardLogger(),
	}
}

func (c *CurrentField) prefix() string {
	if c.FilePrefix == "" {
		return "currents"
	}
	return c.FilePrefix
}

func (c *CurrentField) dayFileName(key string) string {
	return fmt.Sprintf("%s_%s.bin", c.prefix(), key)
}

// Init reads the metadata document: the list of available days, the
// depth levels and the grid envelope. No day is preloaded.
func (c *CurrentField) Init() error {
	name := c.prefix() + "_metadata.toml"
	r, err := c.Source.Open(name)
	if err != nil {
		return err
	}
	defer r.Close()
	m, err := ReadVelocityMetadata(r, name)
	if err != nil {
		return err
	}
	c.meta = m
	c.depths = m.Depths
	if len(c.depths) == 0 {
		c.depths = DefaultDepths
	}
	c.dayByOffset = make(map[int]DayEntry, len(m.Days))
	for _, d := range m.Days {
		c.dayByOffset[d.DayOffset] = d
	}
	c.bounds = &geom.Bounds{
		Min: geom.Point{X: m.BoundingBox.West, Y: m.BoundingBox.South},
		Max: geom.Point{X: m.BoundingBox.East, Y: m.BoundingBox.North},
	}
	c.cache = newDayCache(c.MaxDaysInMemory, c.Log, c.loadDayFile)
	c.lookup = lru.New(lookupCacheSize)
	c.Log.WithFields(logrus.Fields{
		"days":   len(m.Days),
		"depths": len(c.depths),
	}).Info("current field initialized")
	return nil
}

func (c *CurrentField) loadDayFile(key string) (releasable, error) {
	name := c.dayFileName(key)
	r, err := c.Source.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	d, err := ReadVelocityDay(r, name)
	if err != nil {
		return nil, err
	}
	c.treeOnce.Do(func() {
		c.tree = NewKDTree(d.Lon, d.Lat)
		c.Log.WithFields(logrus.Fields{"cells": c.tree.Len()}).Debug("built cell index")
	})
	return d, nil
}

// LoadDay makes the given calendar day resident and active. It is
// idempotent; concurrent duplicate calls share a single load.
func (c *CurrentField) LoadDay(year, month, day int) error {
	key := fmt.Sprintf("%04d%02d%02d", year, month, day)
	_, err := c.cache.get(key)
	return err
}

// AvailableDepths returns the ordered discrete depth levels in metres.
func (c *CurrentField) AvailableDepths() []float64 {
	if len(c.depths) == 0 {
		return append([]float64(nil), DefaultDepths...)
	}
	return append([]float64(nil), c.depths...)
}

// Bounds returns the grid envelope in degrees.
func (c *CurrentField) Bounds() *geom.Bounds { return c.bounds }

// ResidentDays returns the number of days currently in memory.
func (c *CurrentField) ResidentDays() int { return c.cache.residentCount() }

// ActiveDay returns the YYYYMMDD key of the active day.
func (c *CurrentField) ActiveDay() string { return c.cache.activeKey() }

// dayFor resolves a simulation day to its metadata entry.
func (c *CurrentField) dayFor(simDay float64) (DayEntry, bool) {
	d, ok := c.dayByOffset[int(math.Floor(simDay))]
	return d, ok
}

// velocityDay returns the resident grid for simDay, loading it if
// needed. Load failures are reported as a miss, not an error.
func (c *CurrentField) velocityDay(simDay float64) (*VelocityDay, bool) {
	entry, ok := c.dayFor(simDay)
	if !ok {
		return nil, false
	}
	d, err := c.cache.get(entry.DateStr)
	if err != nil {
		c.Log.WithFields(logrus.Fields{"day": entry.DateStr, "err": err}).Warn("day load failed")
		return nil, false
	}
	return d.(*VelocityDay), true
}

// nearestDepthIndex snaps a depth in metres to the nearest discrete
// level.
func (c *CurrentField) nearestDepthIndex(depthM float64) (int, float64) {
	depths := c.depths
	if len(depths) == 0 {
		depths = DefaultDepths
	}
	best, bestDist := 0, math.Inf(1)
	for i, d := range depths {
		if dist := math.Abs(depthM - d); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best, depths[best]
}

// cellFor finds the nearest indexed cell to (lon, lat), memoizing
// recent lookups.
func (c *CurrentField) cellFor(lon, lat float64) (CellIndex, bool) {
	if c.tree == nil {
		return CellIndex{}, false
	}
	key := fmt.Sprintf("%.3f:%.3f", lon, lat)
	c.lookupMu.Lock()
	if v, ok := c.lookup.Get(key); ok {
		c.lookupMu.Unlock()
		return v.(CellIndex), true
	}
	c.lookupMu.Unlock()
	cell, ok := c.tree.Nearest(lon, lat)
	if !ok {
		return CellIndex{}, false
	}
	c.lookupMu.Lock()
	c.lookup.Add(key, cell)
	c.lookupMu.Unlock()
	return cell, true
}

// Velocity returns the current at the grid cell nearest (lon, lat),
// at the depth level nearest depthM, for the calendar day that simDay
// resolves to.
func (c *CurrentField) Velocity(lon, lat, depthM, simDay float64) VelocityResult {
	day, ok := c.velocityDay(simDay)
	if !ok {
		return VelocityResult{}
	}
	return c.velocityInDay(day, lon, lat, depthM)
}

func (c *CurrentField) velocityInDay(day *VelocityDay, lon, lat, depthM float64) VelocityResult {
	cell, ok := c.cellFor(lon, lat)
	if !ok {
		return VelocityResult{}
	}
	depthIdx, actual := c.nearestDepthIndex(depthM)
	if depthIdx >= day.NDepth {
		depthIdx = day.NDepth - 1
	}
	flat := depthIdx*day.NLat*day.NLon + cell.Flat
	u, v := day.U.Elements[flat], day.V.Elements[flat]
	if LandSentinel(u) || LandSentinel(v) {
		return VelocityResult{ActualDepth: actual}
	}
	return VelocityResult{U: u, V: v, Found: true, ActualDepth: actual}
}

// VelocityBatch looks up every position at one shared depth and day,
// returning results in input order. Points are (X=lon, Y=lat) degrees.
func (c *CurrentField) VelocityBatch(positions []geom.Point, depthM, simDay float64) []VelocityResult {
	out := make([]VelocityResult, len(positions))
	day, ok := c.velocityDay(simDay)
	if !ok {
		return out
	}
	for i, p := range positions {
		out[i] = c.velocityInDay(day, p.X, p.Y, depthM)
	}
	return out
}

// IsOcean reports whether the nearest cell at this position, depth and
// day is ocean.
func (c *CurrentField) IsOcean(lon, lat, depthM, simDay float64) bool {
	return c.Velocity(lon, lat, depthM, simDay).Found
}

// NearestOceanCell searches outward from the cell nearest (lon, lat)
// in expanding rings of grid indices, returning the first ocean cell
// within maxRadiusCells, if any.
func (c *CurrentField) NearestOceanCell(lon, lat, depthM, simDay float64, maxRadiusCells int) (OceanCell, bool) {
	day, ok := c.velocityDay(simDay)
	if !ok {
		return OceanCell{}, false
	}
	start, ok := c.cellFor(lon, lat)
	if !ok {
		return OceanCell{}, false
	}
	depthIdx, actual := c.nearestDepthIndex(depthM)
	if depthIdx >= day.NDepth {
		depthIdx = day.NDepth - 1
	}

	ocean := func(i, j int) bool {
		if i < 0 || i >= day.NLat || j < 0 || j >= day.NLon {
			return false
		}
		flat := depthIdx*day.NLat*day.NLon + i*day.NLon + j
		return !LandSentinel(day.U.Elements[flat]) && !LandSentinel(day.V.Elements[flat])
	}

	check := func(i, j int) (OceanCell, bool) {
		if !ocean(i, j) {
			return OceanCell{}, false
		}
		flat := i*day.NLon + j
		return OceanCell{
			Lon: day.Lon.Elements[flat], Lat: day.Lat.Elements[flat],
			I: i, J: j, ActualDepth: actual,
		}, true
	}

	if cell, ok := check(start.I, start.J); ok {
		return cell, true
	}
	for r := 1; r <= maxRadiusCells; r++ {
		for j := start.J - r; j <= start.J+r; j++ {
			if cell, ok := check(start.I-r, j); ok {
				return cell, true
			}
			if cell, ok := check(start.I+r, j); ok {
				return cell, true
			}
		}
		for i := start.I - r + 1; i <= start.I+r-1; i++ {
			if cell, ok := check(i, start.J-r); ok {
				return cell, true
			}
			if cell, ok := check(i, start.J+r); ok {
				return cell, true
			}
		}
	}
	return OceanCell{}, false
}
