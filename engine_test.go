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
	"math"
	"testing"
	"time"

	"github.com/ctessum/geom"

	"github.com/spatialmodel/oceandrift/fields"
)

// testCurrent is a synthetic current provider: a uniform flow with an
// optional ocean mask and an optional canned nearest-ocean-cell
// answer.
type testCurrent struct {
	u, v        float64
	oceanFn     func(lon, lat float64) bool
	nearestCell *fields.OceanCell
	depths      []float64
}

func (c *testCurrent) Velocity(lon, lat, depthM, simDay float64) fields.VelocityResult {
	if c.oceanFn != nil && !c.oceanFn(lon, lat) {
		return fields.VelocityResult{ActualDepth: depthM}
	}
	return fields.VelocityResult{U: c.u, V: c.v, Found: true, ActualDepth: depthM}
}

func (c *testCurrent) VelocityBatch(positions []geom.Point, depthM, simDay float64) []fields.VelocityResult {
	out := make([]fields.VelocityResult, len(positions))
	for i, p := range positions {
		out[i] = c.Velocity(p.X, p.Y, depthM, simDay)
	}
	return out
}

func (c *testCurrent) IsOcean(lon, lat, depthM, simDay float64) bool {
	return c.Velocity(lon, lat, depthM, simDay).Found
}

func (c *testCurrent) NearestOceanCell(lon, lat, depthM, simDay float64, maxRadiusCells int) (fields.OceanCell, bool) {
	if c.nearestCell != nil {
		return *c.nearestCell, true
	}
	return fields.OceanCell{}, false
}

func (c *testCurrent) AvailableDepths() []float64 {
	if c.depths != nil {
		return c.depths
	}
	return fields.DefaultDepths
}

// testDiffusivity returns one constant lookup result.
type testDiffusivity struct {
	k     float64
	found bool
}

func (d testDiffusivity) Diffusivity(lon, lat, simDay float64) fields.DiffusivityResult {
	return fields.DiffusivityResult{K: d.k, Found: d.found}
}

// quietConfig disables every stochastic and land stage so transport is
// deterministic.
func quietConfig(poolSize int) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.PoolSize = poolSize
	cfg.DiffusivityScale = 0
	cfg.VerticalMixing = false
	cfg.Land.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg EngineConfig, currents CurrentProvider,
	diffusivity DiffusivityProvider, phases []ReleasePhase) *Engine {
	t.Helper()
	rm, err := NewReleaseManager("cs137")
	if err != nil {
		t.Fatal(err)
	}
	if phases != nil {
		if err := rm.SetPhases(phases); err != nil {
			t.Fatal(err)
		}
	}
	e, err := NewEngine(cfg, rm, currents, diffusivity)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func different(a, b, tolerance float64) bool {
	if b == 0 {
		return math.Abs(a-b) > tolerance
	}
	return math.Abs((a-b)/b) > tolerance
}

func TestStateMachine(t *testing.T) {
	e := newTestEngine(t, quietConfig(10), &testCurrent{u: 1}, testDiffusivity{}, nil)

	if e.State() != Idle {
		t.Fatalf("new engine state = %v, want idle", e.State())
	}
	if err := e.Advance(1); err != nil {
		t.Fatal(err)
	}
	if e.SimDay() != 0 {
		t.Error("Advance while idle moved the clock")
	}

	e.Start()
	if e.State() != Running {
		t.Fatalf("state after Start = %v", e.State())
	}
	if err := e.Advance(1); err != nil {
		t.Fatal(err)
	}
	if e.SimDay() != 1 {
		t.Errorf("simDay = %g, want 1", e.SimDay())
	}

	e.Pause()
	if e.State() != Paused {
		t.Fatalf("state after Pause = %v", e.State())
	}
	e.Advance(1)
	if e.SimDay() != 1 {
		t.Error("Advance while paused moved the clock")
	}

	e.Resume()
	if e.State() != Running {
		t.Fatalf("state after Resume = %v", e.State())
	}

	e.ReleaseParticles(5)
	e.Reset()
	if e.State() != Idle || e.SimDay() != 0 || e.ActiveParticles() != 0 {
		t.Error("Reset did not return the engine to a cleared idle state")
	}
	if s := e.Stats(); s.TotalReleased != 0 || s.TotalDecayed != 0 {
		t.Error("Reset did not zero the counters")
	}
}

func TestReleaseEmptyPool(t *testing.T) {
	e := newTestEngine(t, quietConfig(10), &testCurrent{}, testDiffusivity{}, nil)
	e.Release.AddDefaultPhase()

	if n := e.ReleaseParticles(10); n != 10 {
		t.Fatalf("released %d of 10", n)
	}
	before := e.Stats()
	if n := e.ReleaseParticles(3); n != 0 {
		t.Errorf("released %d from an exhausted pool, want 0", n)
	}
	if after := e.Stats(); after.TotalReleased != before.TotalReleased {
		t.Error("release from an exhausted pool changed the counters")
	}
}

func TestReleaseScatter(t *testing.T) {
	e := newTestEngine(t, quietConfig(1000), &testCurrent{}, testDiffusivity{}, nil)
	e.Release.AddDefaultPhase()
	e.ReleaseParticles(1000)

	activity, err := e.Release.ParticleActivity(1000)
	if err != nil {
		t.Fatal(err)
	}
	maxOffset := 3 * releaseSigmaKm // ±3σ hard clamp, σ = 20 km
	for i := range e.Particles() {
		p := &e.Particles()[i]
		if !p.Active {
			t.Fatalf("particle %d not active after release", i)
		}
		if math.Abs(p.X) > maxOffset*1.001 ||
			math.Abs(p.Y) > maxOffset*LatScaleKmPerDeg/LonScaleKmPerDeg*1.001 {
			t.Errorf("particle %d at (%g, %g), outside the clamped scatter", i, p.X, p.Y)
		}
		if p.Depth != 0 {
			t.Errorf("particle %d released at depth %g, want surface", i, p.Depth)
		}
		if different(p.Mass, activity, 1e-12) {
			t.Errorf("particle %d mass = %g, want %g", i, p.Mass, activity)
		}
		if h := p.History(); len(h) != 1 {
			t.Errorf("particle %d history length = %d at release", i, len(h))
		}
	}
}

// A pool released in one batch and left unmoved decays by the tracer
// half-life law, and the ensemble keeps the whole calibrated release.
func TestDecaySum(t *testing.T) {
	const (
		poolSize = 10000
		days     = 30.0
	)
	cfg := quietConfig(poolSize)
	e := newTestEngine(t, cfg, &testCurrent{}, testDiffusivity{},
		[]ReleasePhase{{StartDay: 0, EndDay: 30, Total: 16.2, Unit: PBq}})

	e.ReleaseParticles(poolSize)
	e.Start()
	for i := 0; i < int(days/bakeStep); i++ {
		if err := e.Advance(bakeStep); err != nil {
			t.Fatal(err)
		}
	}

	var sum float64
	for i := range e.Particles() {
		sum += e.Particles()[i].Mass
	}
	half := TracerByID("cs137").HalfLifeDays
	want := 16.2e6 * math.Pow(0.5, days/half)
	if different(sum, want, 1e-9) {
		t.Errorf("mass sum after %g days = %.12g, want %.12g", days, sum, want)
	}
}

func TestDecayRatio(t *testing.T) {
	e := newTestEngine(t, quietConfig(1), &testCurrent{}, testDiffusivity{}, nil)
	e.Release.AddDefaultPhase()
	e.ReleaseParticles(1)
	e.Start()

	p := &e.Particles()[0]
	m0 := p.Mass
	const delta = 7.3
	if err := e.Advance(delta); err != nil {
		t.Fatal(err)
	}
	half := TracerByID("cs137").HalfLifeDays
	want := math.Pow(0.5, delta/half)
	if different(p.Mass/m0, want, 1e-6) {
		t.Errorf("decay ratio = %.12g, want %.12g", p.Mass/m0, want)
	}
}

func TestContinuousReleaseCalibration(t *testing.T) {
	const poolSize = 1000
	cfg := quietConfig(poolSize)
	e := newTestEngine(t, cfg, &testCurrent{}, testDiffusivity{},
		[]ReleasePhase{{StartDay: 0, EndDay: 10, Total: 1000, Unit: GBq}})

	e.Start()
	prevReleased := 0
	for i := 0; i < 100; i++ {
		if err := e.Advance(0.1); err != nil {
			t.Fatal(err)
		}
		s := e.Stats()
		if s.TotalReleased < prevReleased {
			t.Fatal("total released decreased")
		}
		prevReleased = s.TotalReleased
	}

	// rate = 100 GBq/day, activity = 1 GBq/particle: 10 particles per
	// 0.1-day step, the full pool by day 10.
	if got := e.Stats().TotalReleased; got != poolSize {
		t.Errorf("total released = %d, want %d", got, poolSize)
	}

	activity, err := e.Release.ParticleActivity(poolSize)
	if err != nil {
		t.Fatal(err)
	}
	if different(activity*poolSize, e.Release.TotalReleaseGBq(), 1e-12) {
		t.Error("per-particle activity does not conserve the scheduled release")
	}
}

func TestDepthBounds(t *testing.T) {
	cfg := quietConfig(100)
	cfg.VerticalMixing = true
	cfg.EkmanPumping = 0.1 // absurdly strong downwelling
	e := newTestEngine(t, cfg, &testCurrent{}, testDiffusivity{}, nil)
	e.Release.AddDefaultPhase()
	e.ReleaseParticles(100)
	e.Start()

	for i := 0; i < 20; i++ {
		if err := e.Advance(0.5); err != nil {
			t.Fatal(err)
		}
		for j := range e.Particles() {
			d := e.Particles()[j].Depth
			if d < 0 || d > 1 {
				t.Fatalf("particle %d depth %g outside [0, 1]", j, d)
			}
		}
	}
	if e.Stats().MaxDepthReached <= 0 {
		t.Error("max depth counter never moved")
	}
}

func TestHistoryBounded(t *testing.T) {
	e := newTestEngine(t, quietConfig(5), &testCurrent{u: 0.05}, testDiffusivity{}, nil)
	e.Release.AddDefaultPhase()
	e.ReleaseParticles(5)
	e.Start()

	for i := 0; i < 20; i++ {
		if err := e.Advance(0.5); err != nil {
			t.Fatal(err)
		}
	}
	for i := range e.Particles() {
		h := e.Particles()[i].History()
		if len(h) > historyCap {
			t.Fatalf("history length %d exceeds %d", len(h), historyCap)
		}
		for k := 1; k < len(h); k++ {
			if h[k].Day <= h[k-1].Day {
				t.Fatalf("history days not strictly increasing: %v", h)
			}
		}
	}
}

func TestMassThresholdDeactivation(t *testing.T) {
	cfg := quietConfig(1)
	e := newTestEngine(t, cfg, &testCurrent{}, testDiffusivity{}, nil)
	if err := e.Release.SetTracer("i131"); err != nil {
		t.Fatal(err)
	}
	e.Release.AddDefaultPhase()
	e.ReleaseParticles(1)
	e.Start()

	// 1e-3 of the initial mass is reached after log2(1000) ≈ 10
	// half-lives: about 80 days for an 8-day half-life.
	for i := 0; i < 200 && e.Particles()[0].Active; i++ {
		if err := e.Advance(1); err != nil {
			t.Fatal(err)
		}
	}
	p := &e.Particles()[0]
	if p.Active {
		t.Fatal("particle still active after 200 days of iodine decay")
	}
	if e.Stats().TotalDecayed != 1 {
		t.Errorf("total decayed = %d, want 1", e.Stats().TotalDecayed)
	}
	if e.SimDay() < 75 || e.SimDay() > 85 {
		t.Errorf("deactivation at day %g, want near 80", e.SimDay())
	}
}

func TestAdvanceWall(t *testing.T) {
	cfg := quietConfig(1)
	cfg.SimulationSpeed = 86400 // one simulated day per wall second
	e := newTestEngine(t, cfg, &testCurrent{}, testDiffusivity{}, nil)
	e.Start()
	if err := e.AdvanceWall(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if different(e.SimDay(), 0.5, 1e-12) {
		t.Errorf("simDay = %g after half a wall second at day-per-second speed", e.SimDay())
	}
}
