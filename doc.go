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

// Package oceandrift is a Lagrangian particle-transport engine for
// radionuclide tracers in the ocean. An ensemble of particles is
// released on a multi-phase emission schedule, advected by gridded
// currents, scattered by stochastic horizontal and vertical mixing,
// kept out of land cells, and attenuated by radioactive decay. A
// recorder captures ensemble snapshots during headless runs and a
// player replays them with time interpolation.
package oceandrift
