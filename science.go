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

import "math"

const secondsPerDay = 86400.0

// kFloor is the diffusivity used when the field has no value [m²/s].
const kFloor = 20.0

// KzProfile is the piecewise vertical diffusivity [m²/s]: the surface
// mixed layer (above 50 m), the upper ocean (50–200 m), and the deep
// ocean below.
type KzProfile struct {
	MixedLayer float64
	UpperOcean float64
	DeepOcean  float64
}

// DefaultKzProfile returns the standard profile.
func DefaultKzProfile() KzProfile {
	return KzProfile{MixedLayer: 1e-2, UpperOcean: 1e-4, DeepOcean: 5e-5}
}

// At returns the vertical diffusivity at a depth in metres.
func (k KzProfile) At(depthM float64) float64 {
	switch {
	case depthM < 50:
		return k.MixedLayer
	case depthM <= 200:
		return k.UpperOcean
	default:
		return k.DeepOcean
	}
}

// winterDay reports whether a day of year falls in northern-hemisphere
// winter.
func winterDay(yearDay int) bool {
	return yearDay < 90 || yearDay > 335
}

// diffusionStep returns a random-walk displacement (km) for unresolved
// sub-grid mixing over deltaDays, with step variance 2·K·Δt. When the
// diffusivity field has no value at the particle position, the K floor
// is used instead.
func (e *Engine) diffusionStep(p *Particle, deltaDays float64) (dx, dy float64) {
	lon, lat := e.lonLat(p.X, p.Y)
	res := e.diffusivity.Diffusivity(lon, lat, e.simDay)
	kEff := kFloor * e.Config.DiffusivityScale
	if res.Found {
		tracer := TracerByID(p.TracerID)
		kEff = res.K * e.Config.DiffusivityScale * tracer.DiffusivityScale
	}
	sigmaKm := math.Sqrt(2*kEff*deltaDays*secondsPerDay) / 1000
	return e.normal.Rand() * sigmaKm, e.normal.Rand() * sigmaKm
}

// verticalStep applies stochastic vertical mixing, gravitational
// settling, Ekman pumping, and winter convective deepening above
// 100 m. The resulting depth is clamped to [0, 1] km.
func (e *Engine) verticalStep(p *Particle, deltaDays float64) {
	dt := deltaDays * secondsPerDay
	depthM := p.Depth * 1000
	tracer := TracerByID(p.TracerID)

	kz := e.Config.Kz.At(depthM)
	dz := e.normal.Rand()*math.Sqrt(2*kz*dt) +
		tracer.SettlingVelocity*dt +
		e.Config.EkmanPumping*dt

	yearDay := e.Config.BaseDate.AddDate(0, 0, int(e.simDay)).YearDay()
	if winterDay(yearDay) && depthM < 100 {
		dz += e.Config.ConvectiveMixing * dt
	}

	p.Depth += dz / 1000
	if p.Depth < 0 {
		p.Depth = 0
	} else if p.Depth > 1 {
		p.Depth = 1
	}
}

// ageAndDecay advances particle age and applies radioactive decay,
// deactivating the particle once its mass falls below threshold.
func (e *Engine) ageAndDecay(p *Particle, deltaDays float64) {
	p.Age += deltaDays
	tracer := TracerByID(p.TracerID)
	if tracer.Decays() {
		p.Mass *= math.Pow(0.5, deltaDays/tracer.HalfLifeDays)
	}
	if p.belowThreshold() {
		p.deactivate()
		e.stats.TotalDecayed++
	}
}

// concentrationOf returns the kernel concentration [Bq/m³] for a
// particle: its decayed activity spread over a Gaussian kernel volume
// V = (2π)^1.5·σH²·σV, floored at 1e9 m³. The reading is recomputed
// from release age, independently of the threshold bookkeeping on the
// stored mass.
func (e *Engine) concentrationOf(p *Particle) float64 {
	tracer := TracerByID(p.TracerID)
	v := math.Pow(2*math.Pi, 1.5) * tracer.KernelSigmaH * tracer.KernelSigmaH * tracer.KernelSigmaV
	if v < 1e9 {
		v = 1e9
	}
	mass := p.initialMass
	if tracer.Decays() {
		mass *= math.Pow(0.5, p.Age/tracer.HalfLifeDays)
	}
	return mass * 1e9 / v // GBq → Bq
}
