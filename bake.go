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
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// bakeStep is the fixed sub-step size of a headless bake [days].
const bakeStep = 0.1

// boundaryTol absorbs the floating-point drift of accumulating fixed
// sub-steps when testing snapshot boundaries.
const boundaryTol = 1e-9

// ParticleRecord is the per-particle state captured in a snapshot.
type ParticleRecord struct {
	X             float64         `json:"x"`
	Y             float64         `json:"y"`
	Depth         float64         `json:"depth"`
	Concentration float64         `json:"concentration"`
	Mass          float64         `json:"mass"`
	Age           float64         `json:"age"`
	History       []HistorySample `json:"history"`
}

// Snapshot is a deep copy of the active ensemble at one simulation
// day.
type Snapshot struct {
	Day           float64          `json:"day"`
	ParticleCount int              `json:"particle_count"`
	Stats         EngineStats      `json:"stats"`
	Particles     []ParticleRecord `json:"particles"`
}

// Snapshot deep-copies the active particles and current counters.
func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{Day: e.simDay, Stats: e.Stats()}
	for i := range e.particles {
		p := &e.particles[i]
		if !p.Active {
			continue
		}
		s.Particles = append(s.Particles, ParticleRecord{
			X:             p.X,
			Y:             p.Y,
			Depth:         p.Depth,
			Concentration: p.Concentration,
			Mass:          p.Mass,
			Age:           p.Age,
			History:       p.history.last(snapshotHistoryLen),
		})
	}
	s.ParticleCount = len(s.Particles)
	return s
}

// BakeAbortedError wraps a fatal error during a bake. The snapshots
// accumulated before the failure remain valid and exportable.
type BakeAbortedError struct {
	Err error
}

func (e *BakeAbortedError) Error() string {
	return fmt.Sprintf("oceandrift: bake aborted: %v", e.Err)
}

func (e *BakeAbortedError) Unwrap() error { return e.Err }

// Baker runs the engine headless at a fixed sub-step and records
// ensemble snapshots at a configured cadence.
type Baker struct {
	Engine *Engine

	// SnapshotFrequency is the day spacing between snapshots.
	SnapshotFrequency float64

	// AutoSaveEvery writes a checkpoint archive each time this many
	// simulation days elapse. Zero disables checkpoints.
	AutoSaveEvery float64
	AutoSavePath  string

	Log logrus.FieldLogger

	// Snapshots accumulates during a bake, including partial results
	// of an aborted bake.
	Snapshots []*Snapshot
}

// NewBaker returns a baker for e with a 5-day snapshot cadence.
func NewBaker(e *Engine) *Baker {
	return &Baker{
		Engine:            e,
		SnapshotFrequency: 5,
		Log:               logrus.StandardLogger(),
	}
}

// Bake runs durationDays of simulation in fixed 0.1-day steps,
// capturing a snapshot at day 0 and at every snapshot-frequency
// boundary. A cancelled context aborts at the next step boundary;
// the accumulated snapshots are preserved either way.
func (b *Baker) Bake(ctx context.Context, durationDays float64) ([]*Snapshot, error) {
	e := b.Engine
	e.Start()
	e.Resume()

	b.Snapshots = b.Snapshots[:0]
	b.Snapshots = append(b.Snapshots, e.Snapshot())

	steps := int(math.Round(durationDays / bakeStep))
	nextBoundary := b.SnapshotFrequency
	lastSave := 0.0
	start := time.Now()

	for s := 0; s < steps; s++ {
		select {
		case <-ctx.Done():
			return b.Snapshots, &BakeAbortedError{Err: ctx.Err()}
		default:
		}
		if err := e.Advance(bakeStep); err != nil {
			return b.Snapshots, &BakeAbortedError{Err: err}
		}
		day := e.SimDay()
		for b.SnapshotFrequency > 0 && day+boundaryTol >= nextBoundary {
			b.Snapshots = append(b.Snapshots, e.Snapshot())
			nextBoundary += b.SnapshotFrequency
		}
		if b.AutoSaveEvery > 0 && day-lastSave+boundaryTol >= b.AutoSaveEvery {
			if err := b.checkpoint(); err != nil {
				b.Log.WithFields(logrus.Fields{"err": err}).Warn("checkpoint failed")
			}
			lastSave = day
		}
	}

	b.Log.WithFields(logrus.Fields{
		"days":      durationDays,
		"snapshots": len(b.Snapshots),
		"walltime":  time.Since(start).Round(time.Millisecond),
	}).Info("bake complete")
	return b.Snapshots, nil
}

func (b *Baker) checkpoint() error {
	if b.AutoSavePath == "" {
		return nil
	}
	f, err := os.Create(b.AutoSavePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteArchive(f, b.Archive())
}

// Frame is one playback frame: an interpolated particle ensemble at a
// simulation day.
type Frame struct {
	Day       float64
	Particles []ParticleRecord
}

// Player replays a snapshot sequence, interpolating between adjacent
// snapshots in time.
type Player struct {
	// PlaybackSpeed is simulation days per wall-clock second.
	PlaybackSpeed float64

	// FrameFunc receives a frame on each playback update. Optional.
	FrameFunc func(Frame)

	snapshots  []*Snapshot
	currentDay float64
	playing    bool
}

// NewPlayer returns a player over the given snapshots, ordered by day.
func NewPlayer(snapshots []*Snapshot) *Player {
	s := append([]*Snapshot(nil), snapshots...)
	sort.Slice(s, func(i, j int) bool { return s[i].Day < s[j].Day })
	p := &Player{PlaybackSpeed: 1, snapshots: s}
	if len(s) > 0 {
		p.currentDay = s[0].Day
	}
	return p
}

// CurrentDay returns the playback position.
func (p *Player) CurrentDay() float64 { return p.currentDay }

// Playing reports whether playback is advancing.
func (p *Player) Playing() bool { return p.playing }

// Play starts playback.
func (p *Player) Play() {
	if len(p.snapshots) > 0 {
		p.playing = true
	}
}

// Pause stops playback without moving the position.
func (p *Player) Pause() { p.playing = false }

// Seek returns the interpolated ensemble at day, pairing particles by
// index up to the shorter of the two adjacent snapshots. Position,
// depth, mass and age interpolate linearly; concentration
// log-linearly when both endpoints are positive; history snaps to the
// nearer endpoint.
func (p *Player) Seek(day float64) []ParticleRecord {
	if len(p.snapshots) == 0 {
		return nil
	}
	first, last := p.snapshots[0], p.snapshots[len(p.snapshots)-1]
	if day <= first.Day {
		p.currentDay = first.Day
		return copyRecords(first.Particles)
	}
	if day >= last.Day {
		p.currentDay = last.Day
		return copyRecords(last.Particles)
	}
	p.currentDay = day

	i := sort.Search(len(p.snapshots), func(i int) bool { return p.snapshots[i].Day > day }) - 1
	a, b := p.snapshots[i], p.snapshots[i+1]
	if b.Day == a.Day {
		return copyRecords(a.Particles)
	}
	t := (day - a.Day) / (b.Day - a.Day)

	n := len(a.Particles)
	if len(b.Particles) < n {
		n = len(b.Particles)
	}
	out := make([]ParticleRecord, n)
	for k := 0; k < n; k++ {
		pa, pb := a.Particles[k], b.Particles[k]
		rec := ParticleRecord{
			X:             lerp(pa.X, pb.X, t),
			Y:             lerp(pa.Y, pb.Y, t),
			Depth:         lerp(pa.Depth, pb.Depth, t),
			Concentration: logLerp(pa.Concentration, pb.Concentration, t),
			Mass:          lerp(pa.Mass, pb.Mass, t),
			Age:           lerp(pa.Age, pb.Age, t),
		}
		if t < 0.5 {
			rec.History = append([]HistorySample(nil), pa.History...)
		} else {
			rec.History = append([]HistorySample(nil), pb.History...)
		}
		out[k] = rec
	}
	return out
}

// Advance moves playback by a wall-clock interval, emits a frame, and
// pauses at the last snapshot.
func (p *Player) Advance(wallDt time.Duration) {
	if !p.playing || len(p.snapshots) == 0 {
		return
	}
	day := p.currentDay + wallDt.Seconds()*p.PlaybackSpeed
	last := p.snapshots[len(p.snapshots)-1].Day
	if day >= last {
		day = last
		p.playing = false
	}
	particles := p.Seek(day)
	if p.FrameFunc != nil {
		p.FrameFunc(Frame{Day: p.currentDay, Particles: particles})
	}
}

func copyRecords(in []ParticleRecord) []ParticleRecord {
	out := make([]ParticleRecord, len(in))
	for i, r := range in {
		r.History = append([]HistorySample(nil), r.History...)
		out[i] = r
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// logLerp interpolates concentrations geometrically when both
// endpoints are positive, otherwise linearly.
func logLerp(a, b, t float64) float64 {
	if a > 0 && b > 0 {
		return math.Exp(lerp(math.Log(a), math.Log(b), t))
	}
	return lerp(a, b, t)
}
