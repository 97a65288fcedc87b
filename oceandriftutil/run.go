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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/spatialmodel/oceandrift"
	"github.com/spatialmodel/oceandrift/fields"
)

// baseDate parses the configured calendar date of simulation day 0.
func baseDate() (time.Time, error) {
	s := cast.ToString(Cfg.Get("base_date"))
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("oceandriftutil: base_date %q: %v", s, err)
	}
	return t, nil
}

// RunBake is the composition root for a headless bake: it constructs
// the field services, the release manager and the engine, runs the
// bake and writes the snapshot archive.
func RunBake() error {
	log := logrus.StandardLogger()

	base, err := baseDate()
	if err != nil {
		return err
	}

	currents := fields.NewCurrentField(
		fields.DirSource{Dir: cast.ToString(Cfg.Get("currents_dir"))}, base)
	if err := currents.Init(); err != nil {
		return err
	}
	diffusivity := fields.NewDiffusivityField(
		fields.DirSource{Dir: cast.ToString(Cfg.Get("eke_dir"))}, base)
	if err := diffusivity.Init(); err != nil {
		return err
	}

	release, err := oceandrift.NewReleaseManager(cast.ToString(Cfg.Get("tracer")))
	if err != nil {
		return err
	}
	release.AddDefaultPhase()

	cfg := oceandrift.DefaultEngineConfig()
	cfg.PoolSize = cast.ToInt(Cfg.Get("pool_size"))
	cfg.BaseDate = base
	cfg.RefLon = cast.ToFloat64(Cfg.Get("ref_lon"))
	cfg.RefLat = cast.ToFloat64(Cfg.Get("ref_lat"))
	cfg.RK4.Enabled = cast.ToBool(Cfg.Get("rk4"))
	cfg.Seed = uint64(cast.ToInt(Cfg.Get("seed")))

	engine, err := oceandrift.NewEngine(cfg, release, currents, diffusivity)
	if err != nil {
		return err
	}

	output := cast.ToString(Cfg.Get("output"))
	baker := oceandrift.NewBaker(engine)
	baker.SnapshotFrequency = cast.ToFloat64(Cfg.Get("snapshot_frequency"))
	baker.AutoSaveEvery = cast.ToFloat64(Cfg.Get("autosave_days"))
	baker.AutoSavePath = output

	duration := cast.ToFloat64(Cfg.Get("duration_days"))
	log.WithFields(logrus.Fields{
		"tracer":   release.Tracer().ID,
		"pool":     cfg.PoolSize,
		"duration": duration,
	}).Info("starting bake")

	snapshots, bakeErr := baker.Bake(context.Background(), duration)
	if bakeErr != nil {
		// Partial snapshots are still written out below.
		log.WithFields(logrus.Fields{"err": bakeErr}).Error("bake failed")
	}
	if len(snapshots) == 0 {
		return bakeErr
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := oceandrift.WriteArchive(f, baker.Archive()); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"snapshots": len(snapshots),
		"output":    output,
	}).Info("archive written")
	return bakeErr
}

// RunPrep is the composition root for the preprocessor: it transcodes
// HYCOM currents and CMEMS eddy kinetic energy into day files.
func RunPrep() error {
	base, err := baseDate()
	if err != nil {
		return err
	}
	currentsDir := cast.ToString(Cfg.Get("currents_dir"))

	hycom := oceandrift.NewHYCOMPreprocessor(
		cast.ToString(Cfg.Get("hycom_dir")), currentsDir, base)
	if err := hycom.Run(); err != nil {
		return err
	}

	// The diffusivity grid reuses the first converted velocity day.
	meta, err := os.Open(filepath.Join(currentsDir, "currents_metadata.toml"))
	if err != nil {
		return err
	}
	m, err := fields.ReadVelocityMetadata(meta, "currents_metadata.toml")
	meta.Close()
	if err != nil {
		return err
	}
	firstDay := filepath.Join(currentsDir,
		fmt.Sprintf("currents_%s.bin", m.Days[0].DateStr))

	eke, err := oceandrift.NewEKEPreprocessor(
		cast.ToString(Cfg.Get("cmems_dir")),
		cast.ToString(Cfg.Get("eke_dir")), firstDay)
	if err != nil {
		return err
	}
	return eke.Run()
}
