/*
Copyright © 2024 the geo2fds authors.
This file is part of geo2fds.

geo2fds is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geo2fds is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geo2fds.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package geo2fdsutil contains the command-line interface of geo2fds.
package geo2fdsutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/geo2fds"
)

// Cfg holds the command-line configuration.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, runCmd *cobra.Command

	// runOptions are passed to every geo2fds.Run call.
	runOptions []geo2fds.Option
}

// options are the configuration options of the run command.
var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the commands and their configuration.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}
	def := geo2fds.DefaultParams()

	cfg.Root = &cobra.Command{
		Use:   "geo2fds",
		Short: "Convert terrain, land cover and fire perimeters into a Fire Dynamics Simulator deck.",
		Long: `geo2fds samples a digital elevation model, an optional land-cover raster
and an optional fire perimeter over a rectangular extent and writes a
terrain input deck for the Fire Dynamics Simulator.

Configuration can be given as flags, as GEO2FDS_ environment variables
or in a TOML file specified with --config. Parameter files saved by a
previous run can be used as the configuration file.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setConfig(cfg)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geo2fds v%s\n", geo2fds.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run",
		Short: "Write the simulator deck.",
		Long: `run samples the input layers and writes <chid>.fds, the terrain geometry
and the intermediate layers into fds_path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cfg.Params()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			defer signal.Stop(sig)
			go func() {
				select {
				case <-sig:
					log.Warn("geo2fds: interrupted, stopping")
					cancel()
				case <-ctx.Done():
				}
			}()
			out, err := geo2fds.Run(ctx, p, cfg.runOptions...)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(out))
			for n := range out {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n, out[n])
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	cfg.Root.AddCommand(cfg.versionCmd, cfg.runCmd)

	cfg.Root.PersistentFlags().String("config", "", "configuration file location")
	cfg.BindPFlag("config", cfg.Root.PersistentFlags().Lookup("config"))
	cfg.Root.PersistentFlags().String("log_level", "info", "logging level: debug, info, warn or error")
	cfg.BindPFlag("log_level", cfg.Root.PersistentFlags().Lookup("log_level"))

	rf := cfg.runCmd.Flags()
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{name: "chid", usage: "case name, used as the prefix of the output files", defaultVal: def.CHID},
		{name: "fds_path", usage: "directory the deck is written to", defaultVal: def.FDSPath},
		{name: "project_path", usage: "project file; relative paths are resolved against its directory. Defaults to the configuration file.", defaultVal: ""},
		{name: "extent", usage: "xmin,ymin,xmax,ymax of the terrain extent", defaultVal: []string{}},
		{name: "extent_crs", usage: "reference system of extent and origin", defaultVal: def.ExtentCRS},
		{name: "origin", usage: "x,y of the domain origin; the center of extent if empty", defaultVal: []string{}},
		{name: "pixel_size", usage: "terrain sampling resolution in meters", defaultVal: def.PixelSize},
		{name: "dem_layer", usage: "elevation raster file or URL", defaultVal: ""},
		{name: "landuse_layer", usage: "land-cover raster file or URL", defaultVal: ""},
		{name: "landuse_type_filepath", usage: "CSV or xlsx table of surface definitions keyed by land-cover class", defaultVal: ""},
		{name: "fire_layer", usage: "fire perimeter shapefile with optional bc_in and bc_out fields", defaultVal: ""},
		{name: "tex_layer", usage: "terrain texture image", defaultVal: ""},
		{name: "tex_pixel_size", usage: "texture resolution in meters", defaultVal: def.TexPixelSize},
		{name: "nmesh", usage: "number of meshes", defaultVal: def.NMesh},
		{name: "cell_size", usage: "simulation cell size in meters; pixel_size if 0", defaultVal: def.CellSize},
		{name: "t_begin", usage: "simulation start time in seconds", defaultVal: def.TBegin},
		{name: "t_end", usage: "simulation end time in seconds", defaultVal: def.TEnd},
		{name: "export_obst", usage: "write the terrain as box obstructions instead of a triangulated surface", defaultVal: def.ExportObst},
		{name: "wind_filepath", usage: "CSV or xlsx table of time, wind speed and direction", defaultVal: ""},
		{name: "text_filepath", usage: "file of free text appended to the deck", defaultVal: ""},
	}
	for i := range options {
		options[i].flagsets = []*pflag.FlagSet{rf}
	}

	for _, option := range options {
		for _, set := range option.flagsets {
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic(fmt.Errorf("geo2fdsutil: invalid option type %T", v))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	return cfg
}

// setConfig reads the configuration file, if any, and sets up logging.
// A parameter file saved by a run keeps its settings in a geo2fds table;
// those settings are used where the file has no top-level value.
func setConfig(cfg *Cfg) error {
	cfg.SetEnvPrefix("GEO2FDS")
	cfg.AutomaticEnv()

	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		cfg.SetConfigType("toml")
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geo2fds: problem reading configuration file: %v", err)
		}
		if cfg.IsSet("geo2fds") {
			sub := cfg.Sub("geo2fds")
			for _, k := range sub.AllKeys() {
				cfg.SetDefault(k, sub.Get(k))
			}
		}
		if cfg.GetString("project_path") == "" {
			abs, err := filepath.Abs(cfgpath)
			if err != nil {
				return err
			}
			cfg.SetDefault("project_path", abs)
		}
	}

	lvl, err := log.ParseLevel(cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("geo2fds: %v", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// Params returns the run parameters held by cfg. Without a project
// path, relative paths are resolved against the working directory.
func (cfg *Cfg) Params() (*geo2fds.Params, error) {
	p := &geo2fds.Params{
		CHID:            cast.ToString(cfg.Get("chid")),
		FDSPath:         cast.ToString(cfg.Get("fds_path")),
		ProjectPath:     cast.ToString(cfg.Get("project_path")),
		ExtentCRS:       cast.ToString(cfg.Get("extent_crs")),
		DEMLayer:        cast.ToString(cfg.Get("dem_layer")),
		LandUseLayer:    cast.ToString(cfg.Get("landuse_layer")),
		LandUseTypeFile: cast.ToString(cfg.Get("landuse_type_filepath")),
		FireLayer:       cast.ToString(cfg.Get("fire_layer")),
		TexLayer:        cast.ToString(cfg.Get("tex_layer")),
		WindFile:        cast.ToString(cfg.Get("wind_filepath")),
		TextFile:        cast.ToString(cfg.Get("text_filepath")),
		ExportObst:      cast.ToBool(cfg.Get("export_obst")),
		NMesh:           cast.ToInt(cfg.Get("nmesh")),
	}
	var err error
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"pixel_size", &p.PixelSize},
		{"tex_pixel_size", &p.TexPixelSize},
		{"cell_size", &p.CellSize},
		{"t_begin", &p.TBegin},
		{"t_end", &p.TEnd},
	} {
		if *f.v, err = cast.ToFloat64E(cfg.Get(f.name)); err != nil {
			return nil, fmt.Errorf("geo2fds: %s: %v", f.name, err)
		}
	}
	extent, err := floats(cfg.Get("extent"))
	if err != nil {
		return nil, fmt.Errorf("geo2fds: extent: %v", err)
	}
	if len(extent) != 4 {
		return nil, fmt.Errorf("geo2fds: extent must have 4 values, not %d", len(extent))
	}
	copy(p.Extent[:], extent)
	if p.Origin, err = floats(cfg.Get("origin")); err != nil {
		return nil, fmt.Errorf("geo2fds: origin: %v", err)
	}
	if p.ProjectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		p.ProjectPath = filepath.Join(wd, p.CHID+".geo2fds.toml")
	}
	return p, nil
}

// floats converts a list given as a TOML array, a flag list or a comma
// separated string to numbers.
func floats(v interface{}) ([]float64, error) {
	if s, ok := v.(string); ok {
		v = strings.Split(s, ",")
	}
	var o []float64
	for _, s := range cast.ToStringSlice(v) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, err
		}
		o = append(o, f)
	}
	return o, nil
}
