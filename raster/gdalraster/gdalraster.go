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


// Package gdalraster reads, reprojects and clips rasters with GDAL.
package gdalraster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/raster"
	"github.com/spatialmodel/geo2fds/utm"
)

var register sync.Once

// Source is a raster.Source that writes every clipped raster as a
// GeoTIFF into Dir before loading it.
type Source struct {
	Dir string
}

// Path returns the file the raster for req is stored in.
func (s *Source) Path(req raster.Request) string {
	return filepath.Join(s.Dir, req.Name+".tif")
}

// Open implements raster.Source.
func (s *Source) Open(ctx context.Context, path string, req raster.Request) (*raster.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	register.Do(godal.RegisterAll)

	src, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gdalraster: opening %s: %w", path, err)
	}
	defer src.Close()
	if src.Projection() == "" {
		return nil, fmt.Errorf("%w: %s has no spatial reference", utm.ErrInvalidCRS, path)
	}
	if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("gdalraster: %w", err)
	}
	out := s.Path(req)
	os.Remove(out)

	b := req.Bounds
	switches := []string{
		"-t_srs", req.EPSG,
		"-te", ftoa(b.Min.X), ftoa(b.Min.Y), ftoa(b.Max.X), ftoa(b.Max.Y),
		"-tr", ftoa(req.PixelSize), ftoa(req.PixelSize),
		"-r", req.Resampling.String(),
		"-of", "GTiff",
	}
	log.WithFields(log.Fields{
		"layer":    path,
		"output":   out,
		"switches": switches,
	}).Info("gdalraster: warping layer")
	dst, err := src.Warp(out, switches)
	if err != nil {
		return nil, fmt.Errorf("gdalraster: warping %s: %w", path, err)
	}
	defer dst.Close()
	return load(req.Name, dst)
}

// Load reads band 1 of the raster at path.
func Load(name, path string) (*raster.Grid, error) {
	register.Do(godal.RegisterAll)
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gdalraster: opening %s: %w", path, err)
	}
	defer ds.Close()
	return load(name, ds)
}

func load(name string, ds *godal.Dataset) (*raster.Grid, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("gdalraster: %s: %w", name, err)
	}
	st := ds.Structure()
	g, err := raster.FromGeoTransform(name, gt, st.SizeX, st.SizeY)
	if err != nil {
		return nil, err
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("gdalraster: %s has no bands", name)
	}
	if err := bands[0].Read(0, 0, g.Data, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("gdalraster: reading %s: %w", name, err)
	}
	if nd, ok := bands[0].NoData(); ok {
		g.NoData = &nd
	}
	return g, nil
}

func ftoa(f float64) string { return fmt.Sprintf("%.6f", f) }
