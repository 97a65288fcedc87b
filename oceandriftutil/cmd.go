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

// Package oceandriftutil wires the simulation engine, the field
// services and the preprocessor into a command-line interface.
package oceandriftutil

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Root is the main command.
var Root = &cobra.Command{
	Use:   "oceandrift",
	Short: "OceanDrift simulates radionuclide dispersion in the ocean.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
}

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Run a headless simulation and record snapshots.",
	Long: `bake runs the simulation with fixed 0.1-day steps for the
configured duration, records ensemble snapshots at the configured
cadence, and writes the snapshot archive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunBake()
	},
}

var prepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Convert HYCOM and CMEMS netCDF data into day files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunPrep()
	},
}

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "currents_dir",
			usage: `
              currents_dir is the directory holding velocity day files
              and their metadata document.`,
			defaultVal: "data/currents",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "eke_dir",
			usage: `
              eke_dir is the directory holding diffusivity day files,
              the coordinate file and the metadata document.`,
			defaultVal: "data/eke",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "base_date",
			usage: `
              base_date is the calendar date of simulation day 0
              (YYYY-MM-DD).`,
			defaultVal: "2011-03-01",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "tracer",
			usage: `
              tracer selects the released radionuclide.`,
			defaultVal: "cs137",
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "pool_size",
			usage: `
              pool_size is the number of particles in the pool.`,
			defaultVal: 10000,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "duration_days",
			usage: `
              duration_days is the simulated duration of the bake.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "snapshot_frequency",
			usage: `
              snapshot_frequency is the day spacing between recorded
              snapshots.`,
			defaultVal: 5.0,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "autosave_days",
			usage: `
              autosave_days writes a checkpoint archive every given
              number of simulated days. Zero disables checkpoints.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "ref_lon",
			usage: `
              ref_lon is the release-site longitude and local-plane
              origin.`,
			defaultVal: 141.0328,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "ref_lat",
			usage: `
              ref_lat is the release-site latitude and local-plane
              origin.`,
			defaultVal: 36.9389,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "rk4",
			usage: `
              rk4 selects the Runge-Kutta integrator instead of Euler.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "seed",
			usage: `
              seed initializes the stochastic stages.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "output",
			usage: `
              output is the snapshot archive path.`,
			shorthand:  "o",
			defaultVal: "bake.json",
			flagsets:   []*pflag.FlagSet{bakeCmd.PersistentFlags()},
		},
		{
			name: "hycom_dir",
			usage: `
              hycom_dir is the directory of daily HYCOM netCDF input.`,
			defaultVal: "data/hycom",
			flagsets:   []*pflag.FlagSet{prepCmd.PersistentFlags()},
		},
		{
			name: "cmems_dir",
			usage: `
              cmems_dir is the directory of CMEMS EKE netCDF input.`,
			defaultVal: "data/cmems",
			flagsets:   []*pflag.FlagSet{prepCmd.PersistentFlags()},
		},
	}

	Cfg = viper.New()
	for _, option := range options {
		for _, set := range option.flagsets {
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic(fmt.Sprintf("invalid argument type: %T", option.defaultVal))
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(bakeCmd, prepCmd)
}

// initializeConfig reads an optional configuration file into Cfg.
func initializeConfig() error {
	if cfgPath := cast.ToString(Cfg.Get("config")); cfgPath != "" {
		Cfg.SetConfigFile(cfgPath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("oceandriftutil: reading configuration: %v", err)
		}
	}
	return nil
}
