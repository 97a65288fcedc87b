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
	"time"

	"github.com/sirupsen/logrus"
)

// Eddy diffusivity bounds in m²/s. Successful lookups are clamped to
// [KMin, KMax]; misses report the floor.
const (
	KMin = 20.0
	KMax = 3000.0
)

// DiffusivityResult is one eddy-diffusivity lookup.
type DiffusivityResult struct {
	K     float64 // m²/s
	Found bool
}

// DiffusivityField streams day-indexed eddy diffusivity derived from
// eddy kinetic energy. Cell coordinates are shared by all days and are
// loaded exactly once from a separate coordinate file.
type DiffusivityField struct {
	Source   Source
	BaseDate time.Time

	// MaxDaysInMemory bounds the day cache. Zero means the default.
	MaxDaysInMemory int

	// FilePrefix names the files: <prefix>_YYYYMMDD.bin,
	// <prefix>_coords.bin and <prefix>_metadata.toml. Empty means
	// "eke".
	FilePrefix string

	Log logrus.FieldLogger

	coords *GridCoords
	index  *bucketIndex
	dates  map[string]bool
	cache  *dayCache
}

// NewDiffusivityField returns a field reading from src, with
// simulation day 0 anchored at base.
func NewDiffusivityField(src Source, base time.Time) *DiffusivityField {
	return &DiffusivityField{
		Source:   src,
		BaseDate: base,
		Log:      logrus.StandardLogger(),
	}
}

func (f *DiffusivityField) prefix() string {
	if f.FilePrefix == "" {
		return "eke"
	}
	return f.FilePrefix
}

// Init reads the metadata document and the coordinate file and builds
// the bucket index. No day is preloaded.
func (f *DiffusivityField) Init() error {
	metaName := f.prefix() + "_metadata.toml"
	r, err := f.Source.Open(metaName)
	if err != nil {
		return err
	}
	m, err := ReadDiffusivityMetadata(r, metaName)
	r.Close()
	if err != nil {
		return err
	}
	f.dates = make(map[string]bool, len(m.Dates))
	for _, d := range m.Dates {
		f.dates[d] = true
	}

	coordName := f.prefix() + "_coords.bin"
	cr, err := f.Source.Open(coordName)
	if err != nil {
		return err
	}
	defer cr.Close()
	f.coords, err = ReadGridCoords(cr, coordName)
	if err != nil {
		return err
	}
	f.index = newBucketIndex(f.coords.Lon, f.coords.Lat)
	f.cache = newDayCache(f.MaxDaysInMemory, f.Log, f.loadDayFile)
	f.Log.WithFields(logrus.Fields{
		"days":  len(f.dates),
		"cells": f.coords.NLat * f.coords.NLon,
	}).Info("diffusivity field initialized")
	return nil
}

func (f *DiffusivityField) loadDayFile(key string) (releasable, error) {
	name := fmt.Sprintf("%s_%s.bin", f.prefix(), key)
	r, err := f.Source.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadDiffusivityDay(r, name, f.coords.NLat, f.coords.NLon)
}

// LoadDay makes the given calendar day resident and active.
func (f *DiffusivityField) LoadDay(year, month, day int) error {
	key := fmt.Sprintf("%04d%02d%02d", year, month, day)
	_, err := f.cache.get(key)
	return err
}

// ResidentDays returns the number of days currently in memory.
func (f *DiffusivityField) ResidentDays() int { return f.cache.residentCount() }

// Diffusivity returns the eddy diffusivity at the cell nearest
// (lon, lat) for the calendar day that simDay resolves to. On any miss
// the result is the K floor with Found=false.
func (f *DiffusivityField) Diffusivity(lon, lat, simDay float64) DiffusivityResult {
	miss := DiffusivityResult{K: KMin}
	if f.index == nil {
		return miss
	}
	date := f.BaseDate.AddDate(0, 0, int(math.Floor(simDay)))
	key := date.Format("20060102")
	if !f.dates[key] {
		return miss
	}
	d, err := f.cache.get(key)
	if err != nil {
		f.Log.WithFields(logrus.Fields{"day": key, "err": err}).Warn("day load failed")
		return miss
	}
	day := d.(*DiffusivityDay)

	cell, ok := f.index.nearest(lon, lat)
	if !ok {
		return miss
	}
	k := day.K.Elements[cell.Flat]
	if math.IsNaN(k) || k <= 0 {
		return miss
	}
	if k < KMin {
		k = KMin
	} else if k > KMax {
		k = KMax
	}
	return DiffusivityResult{K: k, Found: true}
}
