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

package oceandrift

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ctessum/unit"
)

// Configuration errors. They are raised at the configuration boundary
// and never partially apply.
var (
	ErrInvalidPhase      = errors.New("oceandrift: release phase end must be after start")
	ErrOverlappingPhases = errors.New("oceandrift: release phases may not overlap")
	ErrUnknownTracer     = errors.New("oceandrift: unknown tracer")
	ErrInvalidPoolSize   = errors.New("oceandrift: particle count must be positive")
)

// ReleaseUnit is the unit a release phase total is declared in.
type ReleaseUnit int

// Supported release units.
const (
	GBq ReleaseUnit = iota
	TBq
	PBq
)

// GBqFactor converts a quantity in this unit to GBq.
func (u ReleaseUnit) GBqFactor() float64 {
	switch u {
	case TBq:
		return 1e3
	case PBq:
		return 1e6
	default:
		return 1
	}
}

func (u ReleaseUnit) String() string {
	switch u {
	case TBq:
		return "TBq"
	case PBq:
		return "PBq"
	default:
		return "GBq"
	}
}

// becquerel is activity expressed in SI dimensions (decays per
// second).
var becquerel = unit.Dimensions{unit.TimeDim: -1}

// ReleasePhase is an interval [StartDay, EndDay] during which Total
// activity is emitted at a constant rate.
type ReleasePhase struct {
	StartDay float64
	EndDay   float64
	Total    float64 // in Unit
	Unit     ReleaseUnit
}

// Valid reports whether the phase interval is well formed.
func (p ReleasePhase) Valid() bool {
	return p.StartDay >= 0 && p.EndDay > p.StartDay
}

// Contains reports whether day falls inside the phase. Both boundary
// days are inside.
func (p ReleasePhase) Contains(day float64) bool {
	return day >= p.StartDay && day <= p.EndDay
}

// Rate returns the emission rate in Unit per day.
func (p ReleasePhase) Rate() float64 {
	return p.Total / (p.EndDay - p.StartDay)
}

// Activity returns the phase total as an SI activity [Bq].
func (p ReleasePhase) Activity() *unit.Unit {
	return unit.New(p.Total*p.Unit.GBqFactor()*1e9, becquerel)
}

// ReleaseManager holds the emission schedule for one tracer and
// calibrates per-particle activity so that the whole pool carries the
// whole scheduled release.
type ReleaseManager struct {
	tracer Tracer
	phases []ReleasePhase

	// accum carries the fractional remainder of continuous emission
	// between steps, in [0, 1).
	accum float64
}

// NewReleaseManager returns a manager bound to the named tracer with
// an empty schedule.
func NewReleaseManager(tracerID string) (*ReleaseManager, error) {
	m := new(ReleaseManager)
	if err := m.SetTracer(tracerID); err != nil {
		return nil, err
	}
	return m, nil
}

// SetTracer rebinds the manager to the named tracer. The schedule is
// left unchanged.
func (m *ReleaseManager) SetTracer(id string) error {
	if !KnownTracer(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTracer, id)
	}
	m.tracer = TracerByID(id)
	return nil
}

// Tracer returns the bound tracer.
func (m *ReleaseManager) Tracer() Tracer { return m.tracer }

// AddDefaultPhase replaces the schedule with a single 30-day phase
// releasing the tracer's default inventory.
func (m *ReleaseManager) AddDefaultPhase() {
	m.phases = []ReleasePhase{{
		StartDay: 0,
		EndDay:   30,
		Total:    m.tracer.DefaultInventoryBq / 1e15,
		Unit:     PBq,
	}}
	m.accum = 0
}

// SetPhases replaces the schedule. The new schedule is rejected as a
// whole if any phase has end ≤ start or if any two phases overlap in
// time.
func (m *ReleaseManager) SetPhases(phases []ReleasePhase) error {
	sorted := append([]ReleasePhase(nil), phases...)
	for _, p := range sorted {
		if !p.Valid() {
			return fmt.Errorf("%w: [%g, %g]", ErrInvalidPhase, p.StartDay, p.EndDay)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartDay < sorted[j].StartDay })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartDay < sorted[i-1].EndDay {
			return fmt.Errorf("%w: [%g, %g] and [%g, %g]", ErrOverlappingPhases,
				sorted[i-1].StartDay, sorted[i-1].EndDay, sorted[i].StartDay, sorted[i].EndDay)
		}
	}
	m.phases = sorted
	m.accum = 0
	return nil
}

// Phases returns a copy of the schedule, ordered by start day.
func (m *ReleaseManager) Phases() []ReleasePhase {
	return append([]ReleasePhase(nil), m.phases...)
}

// PhaseAt returns the first phase containing day.
func (m *ReleaseManager) PhaseAt(day float64) (ReleasePhase, bool) {
	for _, p := range m.phases {
		if p.Contains(day) {
			return p, true
		}
	}
	return ReleasePhase{}, false
}

// RateAt returns the emission rate at day, in the phase's declared
// unit per day. Zero outside every phase.
func (m *ReleaseManager) RateAt(day float64) (float64, ReleaseUnit) {
	if p, ok := m.PhaseAt(day); ok {
		return p.Rate(), p.Unit
	}
	return 0, GBq
}

// RateGBqAt returns the emission rate at day in GBq per day.
func (m *ReleaseManager) RateGBqAt(day float64) float64 {
	rate, u := m.RateAt(day)
	return rate * u.GBqFactor()
}

// TotalRelease returns the scheduled release summed over all phases as
// an SI activity [Bq].
func (m *ReleaseManager) TotalRelease() *unit.Unit {
	total := unit.New(0, becquerel)
	for _, p := range m.phases {
		total = unit.Add(total, p.Activity())
	}
	return total
}

// TotalReleaseGBq returns the scheduled release summed over all
// phases, in GBq.
func (m *ReleaseManager) TotalReleaseGBq() float64 {
	var total float64
	for _, p := range m.phases {
		total += p.Total * p.Unit.GBqFactor()
	}
	return total
}

// ParticleActivity returns the activity [GBq] each particle carries on
// activation so that nParticles particles together carry the whole
// scheduled release.
func (m *ReleaseManager) ParticleActivity(nParticles int) (float64, error) {
	if nParticles <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPoolSize, nParticles)
	}
	return m.TotalReleaseGBq() / float64(nParticles), nil
}

// accumulate adds n fractional particles to the emission carry and
// returns the number of whole particles to release now.
func (m *ReleaseManager) accumulate(n float64) int {
	m.accum += n
	whole := int(m.accum)
	m.accum -= float64(whole)
	return whole
}
