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


package geo2fds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/spatialmodel/geo2fds/raster/fetch"
)

var (
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("geo2fds: invalid parameters")

	// ErrMissingProject is returned when a relative path has to be
	// resolved but no project path is set.
	ErrMissingProject = errors.New("geo2fds: relative path without a saved project")
)

// Params holds the settings of a run. Relative paths are resolved
// against the directory of ProjectPath.
type Params struct {
	// CHID is the case name, used as the prefix of every output file.
	CHID string `toml:"chid"`
	// FDSPath is the directory the deck is written to.
	FDSPath string `toml:"fds_path"`
	// ProjectPath is the project file the run belongs to.
	ProjectPath string `toml:"project_path"`

	// Extent is xmin, ymin, xmax, ymax in ExtentCRS.
	Extent    [4]float64 `toml:"extent"`
	ExtentCRS string     `toml:"extent_crs"`
	// Origin is an optional x, y domain origin in ExtentCRS. The center
	// of Extent is used when it is empty.
	Origin []float64 `toml:"origin"`

	// PixelSize is the terrain sampling resolution in meters.
	PixelSize float64 `toml:"pixel_size"`

	DEMLayer        string `toml:"dem_layer"`
	LandUseLayer    string `toml:"landuse_layer"`
	LandUseTypeFile string `toml:"landuse_type_filepath"`
	FireLayer       string `toml:"fire_layer"`

	// TexLayer is a pre-rendered terrain texture image.
	TexLayer     string  `toml:"tex_layer"`
	TexPixelSize float64 `toml:"tex_pixel_size"`

	NMesh int `toml:"nmesh"`
	// CellSize is the simulation cell size in meters; PixelSize when 0.
	CellSize float64 `toml:"cell_size"`

	TBegin float64 `toml:"t_begin"`
	TEnd   float64 `toml:"t_end"`

	// ExportObst selects box obstructions instead of a terrain GEOM.
	ExportObst bool `toml:"export_obst"`

	WindFile string `toml:"wind_filepath"`
	TextFile string `toml:"text_filepath"`
}

// DefaultParams returns the parameters of a new project.
func DefaultParams() *Params {
	return &Params{
		CHID:         "terrain",
		FDSPath:      ".",
		ExtentCRS:    "EPSG:4326",
		PixelSize:    10,
		TexPixelSize: 1,
		NMesh:        1,
	}
}

// Validate checks that p describes a run that can be attempted.
func (p *Params) Validate() error {
	invalid := func(format string, a ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, a...))
	}
	switch {
	case p.CHID == "" || strings.ContainsAny(p.CHID, " \t/\\'\""):
		return invalid("chid %q must be a non-empty name without spaces, quotes or slashes", p.CHID)
	case p.FDSPath == "":
		return invalid("fds_path is empty")
	case p.DEMLayer == "":
		return invalid("dem_layer is empty")
	case !(p.Extent[0] < p.Extent[2] && p.Extent[1] < p.Extent[3]):
		return invalid("extent %v is empty", p.Extent)
	case len(p.Origin) != 0 && len(p.Origin) != 2:
		return invalid("origin must have two coordinates, not %d", len(p.Origin))
	case p.PixelSize < 0.01:
		return invalid("pixel_size %g is below 0.01 m", p.PixelSize)
	case p.NMesh < 1:
		return invalid("nmesh %d is below 1", p.NMesh)
	case p.CellSize < 0:
		return invalid("cell_size %g is negative", p.CellSize)
	case p.TexLayer != "" && p.TexPixelSize <= 0:
		return invalid("tex_pixel_size %g must be positive", p.TexPixelSize)
	case p.TEnd < p.TBegin:
		return invalid("t_end %g is before t_begin %g", p.TEnd, p.TBegin)
	}
	return nil
}

// Cell returns the simulation cell size.
func (p *Params) Cell() float64 {
	if p.CellSize > 0 {
		return p.CellSize
	}
	return p.PixelSize
}

// Resolve returns path made absolute against the project directory.
// Empty paths, absolute paths and URLs are returned unchanged.
func (p *Params) Resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || fetch.IsRemote(path) {
		return path, nil
	}
	if p.ProjectPath == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingProject, path)
	}
	return filepath.Join(filepath.Dir(p.ProjectPath), path), nil
}

// ParamsPath returns the file the parameters of a run are saved to.
func ParamsPath(fdsDir, chid string) string {
	return filepath.Join(fdsDir, chid+".geo2fds.toml")
}

// paramsFile is the layout of a parameter file; the parameters live in
// their own table so that the file can be shared with other tools.
type paramsFile struct {
	Geo2FDS *Params `toml:"geo2fds"`
}

// SaveParams writes p to path.
func SaveParams(path string, p *Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geo2fds: saving parameters: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(paramsFile{Geo2FDS: p}); err != nil {
		f.Close()
		return fmt.Errorf("geo2fds: saving parameters: %w", err)
	}
	return f.Close()
}

// LoadParams reads the parameters saved at path. Settings missing from
// the file keep their default values.
func LoadParams(path string) (*Params, error) {
	pf := paramsFile{Geo2FDS: DefaultParams()}
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("geo2fds: loading parameters: %w", err)
	}
	return pf.Geo2FDS, nil
}
