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

package oceandriftutil

import (
	"testing"

	"github.com/spf13/cast"
)

func TestOptionDefaults(t *testing.T) {
	cases := map[string]interface{}{
		"tracer":             "cs137",
		"pool_size":          10000,
		"duration_days":      30.0,
		"snapshot_frequency": 5.0,
		"base_date":          "2011-03-01",
		"rk4":                false,
	}
	for name, want := range cases {
		got := Cfg.Get(name)
		switch w := want.(type) {
		case string:
			if cast.ToString(got) != w {
				t.Errorf("%s = %v, want %v", name, got, w)
			}
		case int:
			if cast.ToInt(got) != w {
				t.Errorf("%s = %v, want %v", name, got, w)
			}
		case float64:
			if cast.ToFloat64(got) != w {
				t.Errorf("%s = %v, want %v", name, got, w)
			}
		case bool:
			if cast.ToBool(got) != w {
				t.Errorf("%s = %v, want %v", name, got, w)
			}
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range Root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"bake", "prep"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("command %q not registered (have %v)", want, names)
		}
	}
}

func TestBadBaseDate(t *testing.T) {
	old := Cfg.Get("base_date")
	Cfg.Set("base_date", "not-a-date")
	defer Cfg.Set("base_date", old)
	if _, err := baseDate(); err == nil {
		t.Error("malformed base_date accepted")
	}
}
