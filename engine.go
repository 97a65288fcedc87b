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
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/spatialmodel/oceandrift/fields"
)

// Local-plane scales [km per degree] at mid-latitudes.
const (
	LonScaleKmPerDeg = 88.8
	LatScaleKmPerDeg = 111.0
)

// releaseSigmaKm is the standard deviation of the initial particle
// scatter around the release site.
const releaseSigmaKm = 20.0

// A CurrentProvider supplies gridded horizontal velocity and the
// land/ocean mask derived from it.
type CurrentProvider interface {
	Velocity(lon, lat, depthM, simDay float64) fields.VelocityResult
	VelocityBatch(positions []geom.Point, depthM, simDay float64) []fields.VelocityResult
	IsOcean(lon, lat, depthM, simDay float64) bool
	NearestOceanCell(lon, lat, depthM, simDay float64, maxRadiusCells int) (fields.OceanCell, bool)
	AvailableDepths() []float64
}

// A DiffusivityProvider supplies horizontal eddy diffusivity.
type DiffusivityProvider interface {
	Diffusivity(lon, lat, simDay float64) fields.DiffusivityResult
}

// RK4Config is the step-size policy for the Runge-Kutta integrator.
type RK4Config struct {
	Enabled        bool
	TimeStepSafety float64 // fraction of the advective timescale
	MinStep        float64 // days
	MaxStep        float64 // days
	Adaptive       bool
}

// LandConfig controls the land-interaction rules.
type LandConfig struct {
	Enabled         bool
	MaxSearchRadius int // cells
}

// EngineConfig enumerates every recognized engine option.
type EngineConfig struct {
	// PoolSize is the number of particles in the pool.
	PoolSize int

	// RefLon and RefLat are the release site and the origin of the
	// local plane.
	RefLon, RefLat float64

	// BaseDate is the calendar date of simulation day 0.
	BaseDate time.Time

	// DiffusivityScale globally multiplies the eddy diffusivity.
	DiffusivityScale float64

	// SimulationSpeed multiplies wall-clock Δt into simulation Δt for
	// wall-driven advances.
	SimulationSpeed float64

	// VerticalMixing enables the stochastic vertical motion stage.
	VerticalMixing bool

	// EkmanPumping is a year-round downward velocity [m/s].
	EkmanPumping float64

	// ConvectiveMixing is an additional winter-season downward
	// velocity [m/s], applied above 100 m.
	ConvectiveMixing float64

	RK4  RK4Config
	Land LandConfig
	Kz   KzProfile

	// Seed initializes the stochastic stages.
	Seed uint64
}

// DefaultEngineConfig returns the standard configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PoolSize:         10000,
		RefLon:           141.0328,
		RefLat:           36.9389,
		BaseDate:         time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC),
		DiffusivityScale: 1,
		SimulationSpeed:  1,
		VerticalMixing:   true,
		EkmanPumping:     5e-6,
		ConvectiveMixing: 2e-6,
		RK4: RK4Config{
			TimeStepSafety: 0.5,
			MinStep:        0.01,
			MaxStep:        0.25,
			Adaptive:       true,
		},
		Land: LandConfig{Enabled: true, MaxSearchRadius: 5},
		Kz:   DefaultKzProfile(),
		Seed: 1,
	}
}

// EngineState is the engine run state.
type EngineState int

// Engine states.
const (
	Idle EngineState = iota
	Running
	Paused
)

func (s EngineState) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// EngineStats are aggregate counters, consistent at step boundaries.
type EngineStats struct {
	TotalReleased    int     `json:"total_released"`
	TotalDecayed     int     `json:"total_decayed"`
	ActiveParticles  int     `json:"active_particles"`
	ParticlesOnLand  int     `json:"particles_on_land"`
	MaxDepthReached  float64 `json:"max_depth_reached"` // metres
	MaxConcentration float64 `json:"max_concentration"` // Bq/m³
	SimulationDays   float64 `json:"simulation_days"`
}

// A DomainManipulator is one stage of the per-step pipeline.
type DomainManipulator func(e *Engine, deltaDays float64) error

// Engine owns the particle pool and runs the per-step pipeline:
// release, advection, diffusion, land interaction, vertical mixing,
// aging and decay, concentration, history. It borrows the two field
// services through their provider interfaces and exclusively owns its
// release manager and pool.
type Engine struct {
	Config  EngineConfig
	Log     logrus.FieldLogger
	Release *ReleaseManager

	// RunFuncs is the step pipeline executed by each Advance call.
	RunFuncs []DomainManipulator

	currents    CurrentProvider
	diffusivity DiffusivityProvider

	particles []Particle
	state     EngineState
	simDay    float64
	stats     EngineStats

	rng    *rand.Rand
	normal distuv.Normal
}

// NewEngine validates cfg and assembles an engine around the given
// release manager and field providers.
func NewEngine(cfg EngineConfig, release *ReleaseManager, currents CurrentProvider,
	diffusivity DiffusivityProvider) (*Engine, error) {
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, cfg.PoolSize)
	}
	if release == nil {
		return nil, fmt.Errorf("oceandrift: engine requires a release manager")
	}
	if currents == nil || diffusivity == nil {
		return nil, fmt.Errorf("oceandrift: engine requires current and diffusivity providers")
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	e := &Engine{
		Config:      cfg,
		Log:         logrus.StandardLogger(),
		Release:     release,
		currents:    currents,
		diffusivity: diffusivity,
		particles:   make([]Particle, cfg.PoolSize),
		rng:         rand.New(src),
		normal:      distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
	for i := range e.particles {
		e.particles[i].ID = i
	}
	e.RunFuncs = []DomainManipulator{
		ContinuousRelease(),
		UpdateParticles(),
	}
	return e, nil
}

// lonLat converts local-plane kilometres to degrees.
func (e *Engine) lonLat(x, y float64) (lon, lat float64) {
	return e.Config.RefLon + x/LonScaleKmPerDeg, e.Config.RefLat + y/LatScaleKmPerDeg
}

// State returns the engine run state.
func (e *Engine) State() EngineState { return e.state }

// SimDay returns the current simulation day.
func (e *Engine) SimDay() float64 { return e.simDay }

// Stats returns the aggregate counters as of the last step boundary.
func (e *Engine) Stats() EngineStats {
	s := e.stats
	s.SimulationDays = e.simDay
	return s
}

// Particles exposes the pool for inspection. Callers must not mutate.
func (e *Engine) Particles() []Particle { return e.particles }

// ActiveParticles returns the number of live particles.
func (e *Engine) ActiveParticles() int {
	n := 0
	for i := range e.particles {
		if e.particles[i].Active {
			n++
		}
	}
	return n
}

// Start moves the engine from Idle to Running.
func (e *Engine) Start() {
	if e.state == Idle {
		e.state = Running
	}
}

// Pause suspends a running engine.
func (e *Engine) Pause() {
	if e.state == Running {
		e.state = Paused
	}
}

// Resume continues a paused engine.
func (e *Engine) Resume() {
	if e.state == Paused {
		e.state = Running
	}
}

// Reset clears the pool, zeroes the counters and rewinds the clock,
// leaving the engine Idle.
func (e *Engine) Reset() {
	for i := range e.particles {
		e.particles[i] = Particle{ID: i}
	}
	e.stats = EngineStats{}
	e.simDay = 0
	e.state = Idle
	e.Release.accum = 0
}

// Advance runs one step of deltaDays. It is a no-op unless the engine
// is Running. The simulation clock advances exactly once, after the
// pipeline has run, so release phases are honoured inclusively at
// their start day.
func (e *Engine) Advance(deltaDays float64) error {
	if e.state != Running || deltaDays <= 0 {
		return nil
	}
	for _, f := range e.RunFuncs {
		if err := f(e, deltaDays); err != nil {
			return err
		}
	}
	e.simDay += deltaDays
	e.stats.SimulationDays = e.simDay
	e.stats.ActiveParticles = e.ActiveParticles()
	return nil
}

// AdvanceWall advances by a wall-clock interval scaled by the
// configured simulation speed.
func (e *Engine) AdvanceWall(dt time.Duration) error {
	return e.Advance(dt.Seconds() / secondsPerDay * e.Config.SimulationSpeed)
}

// ContinuousRelease returns a pipeline stage that emits particles for
// the release phase active at the current simulation day, carrying
// fractional particles between steps.
func ContinuousRelease() DomainManipulator {
	return func(e *Engine, deltaDays float64) error {
		rate := e.Release.RateGBqAt(e.simDay)
		if rate <= 0 {
			return nil
		}
		activity, err := e.Release.ParticleActivity(len(e.particles))
		if err != nil {
			return err
		}
		if activity <= 0 {
			return nil
		}
		n := e.Release.accumulate(rate * deltaDays / activity)
		e.ReleaseParticles(n)
		return nil
	}
}

// UpdateParticles returns the pipeline stage that advances every
// active particle through advection, diffusion, land interaction,
// vertical mixing, aging and concentration.
func UpdateParticles() DomainManipulator {
	return func(e *Engine, deltaDays float64) error {
		e.updateParticles(deltaDays)
		return nil
	}
}

// ReleaseParticles activates up to n pooled particles around the
// release site and returns the number activated. Initial positions are
// drawn from a 2-D normal with σ = 20 km, clamped at ±3σ.
func (e *Engine) ReleaseParticles(n int) int {
	if n <= 0 {
		return 0
	}
	activity, err := e.Release.ParticleActivity(len(e.particles))
	if err != nil {
		return 0
	}
	tracer := e.Release.Tracer()

	sigmaDeg := releaseSigmaKm / LonScaleKmPerDeg
	released := 0
	for i := range e.particles {
		if released == n {
			break
		}
		p := &e.particles[i]
		if p.Active {
			continue
		}
		lonOff := clamp(e.normal.Rand(), -3, 3) * sigmaDeg
		latOff := clamp(e.normal.Rand(), -3, 3) * sigmaDeg
		x := lonOff * LonScaleKmPerDeg
		y := latOff * LatScaleKmPerDeg
		p.activate(tracer.ID, x, y, activity, e.simDay)
		released++
	}
	e.stats.TotalReleased += released
	e.stats.ActiveParticles += released
	return released
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// updateParticles partitions active particles into buckets by nearest
// discrete depth level and advances each bucket with one shared
// batched velocity query.
func (e *Engine) updateParticles(deltaDays float64) {
	depths := e.currents.AvailableDepths()
	if len(depths) == 0 {
		depths = fields.DefaultDepths
	}

	buckets := make(map[int][]int)
	for i := range e.particles {
		if !e.particles[i].Active {
			continue
		}
		di := nearestDepth(depths, e.particles[i].Depth*1000)
		buckets[di] = append(buckets[di], i)
	}

	order := make([]int, 0, len(buckets))
	for di := range buckets {
		order = append(order, di)
	}
	sort.Ints(order)

	for _, di := range order {
		idxs := buckets[di]
		depthM := depths[di]
		positions := make([]geom.Point, len(idxs))
		for k, pi := range idxs {
			lon, lat := e.lonLat(e.particles[pi].X, e.particles[pi].Y)
			positions[k] = geom.Point{X: lon, Y: lat}
		}
		results := e.currents.VelocityBatch(positions, depthM, e.simDay)
		for k, pi := range idxs {
			e.stepParticle(&e.particles[pi], results[k], depthM, deltaDays)
		}
	}
}

func nearestDepth(depths []float64, depthM float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, d := range depths {
		if dist := math.Abs(depthM - d); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// stepParticle runs the per-particle pipeline for one step. first is
// the bucket-shared velocity lookup at the particle's position.
func (e *Engine) stepParticle(p *Particle, first fields.VelocityResult, depthM, deltaDays float64) {
	preX, preY := p.X, p.Y
	landCfg := e.Config.Land
	pathBlocked := false

	// Advection.
	var integ Integrator = eulerIntegrator{}
	if e.Config.RK4.Enabled {
		integ = rk4Integrator{
			Safety:   e.Config.RK4.TimeStepSafety,
			MinStep:  e.Config.RK4.MinStep,
			MaxStep:  e.Config.RK4.MaxStep,
			Adaptive: e.Config.RK4.Adaptive,
		}
	}
	sample := func(x, y float64) fields.VelocityResult {
		lon, lat := e.lonLat(x, y)
		return e.currents.Velocity(lon, lat, depthM, e.simDay)
	}
	nx, ny, avgU, avgV, ok := integ.Integrate(p.X, p.Y, first, sample, deltaDays)
	if !ok {
		nx, ny, avgU, avgV, _ = eulerIntegrator{}.Integrate(p.X, p.Y, first, sample, deltaDays)
	}

	if landCfg.Enabled && (nx != p.X || ny != p.Y) {
		if sx, sy, safe := e.pathSafe(p.X, p.Y, nx, ny, depthM); safe {
			p.X, p.Y = nx, ny
			p.U, p.V = avgU, avgV
		} else {
			p.X, p.Y = sx, sy
			p.U, p.V = 0, 0
			pathBlocked = true
		}
	} else {
		p.X, p.Y = nx, ny
		p.U, p.V = avgU, avgV
	}

	// Diffusion. A blocked advection path skips this sub-step's write.
	if !pathBlocked {
		dx, dy := e.diffusionStep(p, deltaDays)
		tx, ty := p.X+dx, p.Y+dy
		if landCfg.Enabled {
			if sx, sy, safe := e.pathSafe(p.X, p.Y, tx, ty, depthM); safe {
				p.X, p.Y = tx, ty
			} else {
				p.X, p.Y = sx, sy
				p.U, p.V = 0, 0
				pathBlocked = true
			}
		} else {
			p.X, p.Y = tx, ty
		}
	}

	// Post-move land check.
	onLand := false
	if landCfg.Enabled {
		lon, lat := e.lonLat(p.X, p.Y)
		if !e.currents.IsOcean(lon, lat, depthM, e.simDay) {
			e.shoreReturn(p, preX, preY, depthM)
			onLand = true
		}
	}
	if onLand || pathBlocked {
		e.stats.ParticlesOnLand++
	}

	if !onLand {
		if e.Config.VerticalMixing {
			e.verticalStep(p, deltaDays)
		}
		e.ageAndDecay(p, deltaDays)
		if p.Active {
			p.Concentration = e.concentrationOf(p)
			if p.Concentration > e.stats.MaxConcentration {
				e.stats.MaxConcentration = p.Concentration
			}
		}
	}

	if depth := p.Depth * 1000; depth > e.stats.MaxDepthReached {
		e.stats.MaxDepthReached = depth
	}
	p.history.push(HistorySample{X: p.X, Y: p.Y, Day: e.simDay + deltaDays})
}
