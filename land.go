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

// pathCheckSamples is the number of intermediate positions tested
// along a proposed straight-line move.
const pathCheckSamples = 5

// pathSafe walks pathCheckSamples evenly spaced positions between
// (x0,y0) and (x1,y1) and verifies each is ocean. It returns the last
// verified safe position and whether the whole path passed. When a
// sample fails, the safe position is the previous passing sample, or
// the start of the move if the first sample already fails.
func (e *Engine) pathSafe(x0, y0, x1, y1, depthM float64) (safeX, safeY float64, ok bool) {
	safeX, safeY = x0, y0
	for k := 1; k <= pathCheckSamples; k++ {
		t := float64(k) / float64(pathCheckSamples+1)
		sx := x0 + (x1-x0)*t
		sy := y0 + (y1-y0)*t
		lon, lat := e.lonLat(sx, sy)
		if !e.currents.IsOcean(lon, lat, depthM, e.simDay) {
			return safeX, safeY, false
		}
		safeX, safeY = sx, sy
	}
	return x1, y1, true
}

// shoreReturn handles a particle that finished its sub-steps on land:
// it is reverted to its pre-step position and, if an ocean cell exists
// within the search radius, moved halfway toward that cell.
func (e *Engine) shoreReturn(p *Particle, preX, preY, depthM float64) {
	p.X, p.Y = preX, preY
	lon, lat := e.lonLat(preX, preY)
	cell, ok := e.currents.NearestOceanCell(lon, lat, depthM, e.simDay, e.Config.Land.MaxSearchRadius)
	if !ok {
		return
	}
	cx := (cell.Lon - e.Config.RefLon) * LonScaleKmPerDeg
	cy := (cell.Lat - e.Config.RefLat) * LatScaleKmPerDeg
	p.X = (preX + cx) / 2
	p.Y = (preY + cy) / 2
}
