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
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxDaysInMemory is the default day-cache bound.
const DefaultMaxDaysInMemory = 2

// releasable is a cached day whose large arrays can be dropped on
// eviction.
type releasable interface {
	release()
}

// dayCache is a bounded cache of day records keyed by YYYYMMDD date
// string. The most recently requested day is the active day and is
// never evicted; when the cache exceeds maxDays the chronologically
// oldest non-active day is evicted and its arrays are released.
// Concurrent requests for the same unresident day share one in-flight
// load.
type dayCache struct {
	maxDays int
	load    func(key string) (releasable, error)
	log     logrus.FieldLogger

	flight singleflight.Group

	mu      sync.Mutex
	entries map[string]releasable
	active  string
}

func newDayCache(maxDays int, log logrus.FieldLogger, load func(key string) (releasable, error)) *dayCache {
	if maxDays < 1 {
		maxDays = DefaultMaxDaysInMemory
	}
	return &dayCache{
		maxDays: maxDays,
		load:    load,
		log:     log,
		entries: make(map[string]releasable),
	}
}

// get returns the day for key, loading it if necessary, and marks it
// as the active day.
func (c *dayCache) get(key string) (releasable, error) {
	c.mu.Lock()
	if d, ok := c.entries[key]; ok {
		c.active = key
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		d, err := c.load(key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = d
		c.active = key
		c.evictLocked()
		c.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(releasable), nil
}

// resident reports whether key is in the cache without loading it.
func (c *dayCache) resident(key string) (releasable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[key]
	return d, ok
}

// evictLocked removes the oldest non-active days until the cache fits.
// YYYYMMDD keys sort chronologically as strings.
func (c *dayCache) evictLocked() {
	for len(c.entries) > c.maxDays {
		keys := make([]string, 0, len(c.entries))
		for k := range c.entries {
			if k != c.active {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return
		}
		sort.Strings(keys)
		victim := keys[0]
		c.entries[victim].release()
		delete(c.entries, victim)
		if c.log != nil {
			c.log.WithFields(logrus.Fields{"day": victim}).Debug("evicted day from cache")
		}
	}
}

// residentCount returns the number of cached days.
func (c *dayCache) residentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// activeKey returns the current active day key.
func (c *dayCache) activeKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
