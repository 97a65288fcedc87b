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

	"github.com/spatialmodel/oceandrift/fields"
)

// kmPerDayPerMS converts a velocity in m/s sustained for one day into
// kilometres: 86400 s/day ÷ 1000 m/km.
const kmPerDayPerMS = 86.4

// velocitySampler returns the current at a local-plane position, at
// the depth and day fixed for the step being integrated.
type velocitySampler func(x, y float64) fields.VelocityResult

// An Integrator advances a particle position through one advection
// step. first is the velocity already looked up at the starting
// position; sample provides further lookups at offset positions. ok is
// false when the integrator could not run (the engine then falls back
// to Euler for that particle and step).
type Integrator interface {
	Integrate(x, y float64, first fields.VelocityResult, sample velocitySampler,
		deltaDays float64) (nx, ny, avgU, avgV float64, ok bool)
}

// eulerIntegrator is the forward Euler scheme. A particle whose
// starting cell is not found does not move.
type eulerIntegrator struct{}

func (eulerIntegrator) Integrate(x, y float64, first fields.VelocityResult,
	_ velocitySampler, deltaDays float64) (float64, float64, float64, float64, bool) {
	if !first.Found {
		return x, y, 0, 0, true
	}
	nx := x + first.U*kmPerDayPerMS*deltaDays
	ny := y + first.V*kmPerDayPerMS*deltaDays
	return nx, ny, first.U, first.V, true
}

// rk4Integrator is the classical fourth-order Runge-Kutta scheme with
// adaptive sub-stepping. Sub-step size shrinks where the current is
// fast so that no sub-step crosses more than about one grid cell.
type rk4Integrator struct {
	Safety   float64 // fraction of the advective timescale per sub-step
	MinStep  float64 // days
	MaxStep  float64 // days
	Adaptive bool
}

func (r rk4Integrator) subStep(speed, deltaDays float64) float64 {
	if !r.Adaptive {
		return math.Min(deltaDays, r.MaxStep)
	}
	h := r.Safety / (speed + 1e-3)
	if h < r.MinStep {
		h = r.MinStep
	} else if h > r.MaxStep {
		h = r.MaxStep
	}
	return h
}

func (r rk4Integrator) Integrate(x, y float64, first fields.VelocityResult,
	sample velocitySampler, deltaDays float64) (float64, float64, float64, float64, bool) {
	if !first.Found {
		return x, y, 0, 0, false
	}

	speed := math.Hypot(first.U, first.V)
	h := r.subStep(speed, deltaDays)
	steps := int(math.Ceil(deltaDays / h))
	if steps < 1 {
		steps = 1
	}
	hActual := deltaDays / float64(steps)

	var sumU, sumV float64
	k1 := first
	for s := 0; s < steps; s++ {
		if s > 0 {
			k1 = sample(x, y)
			if !k1.Found {
				return x, y, 0, 0, false
			}
		}

		// Velocity samples at the standard offsets. A sample on land
		// falls back to k1 for that stage only.
		k2 := r.stage(sample, k1, x+k1.U*hActual/2*kmPerDayPerMS, y+k1.V*hActual/2*kmPerDayPerMS)
		k3 := r.stage(sample, k1, x+k2.U*hActual/2*kmPerDayPerMS, y+k2.V*hActual/2*kmPerDayPerMS)
		k4 := r.stage(sample, k1, x+k3.U*hActual*kmPerDayPerMS, y+k3.V*hActual*kmPerDayPerMS)

		u := (k1.U + 2*k2.U + 2*k3.U + k4.U) / 6
		v := (k1.V + 2*k2.V + 2*k3.V + k4.V) / 6
		x += u * hActual * kmPerDayPerMS
		y += v * hActual * kmPerDayPerMS
		sumU += u
		sumV += v
	}
	return x, y, sumU / float64(steps), sumV / float64(steps), true
}

func (r rk4Integrator) stage(sample velocitySampler, k1 fields.VelocityResult, x, y float64) fields.VelocityResult {
	k := sample(x, y)
	if !k.Found {
		return k1
	}
	return k
}
