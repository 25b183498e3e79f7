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

package gdalraster

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/ctessum/geom"

	"github.com/spatialmodel/geo2fds/raster"
	"github.com/spatialmodel/geo2fds/utm"
)

// writeTIFF writes a 10×10 pixel raster with 10 m pixels whose values
// are col+100*row.
func writeTIFF(t *testing.T, path string, epsg int) {
	register.Do(godal.RegisterAll)
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	if err := ds.SetGeoTransform([6]float64{500000, 10, 0, 5000100, 0, -10}); err != nil {
		t.Fatal(err)
	}
	if epsg != 0 {
		sr, err := godal.NewSpatialRefFromEPSG(epsg)
		if err != nil {
			t.Fatal(err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			t.Fatal(err)
		}
	}
	buf := make([]float64, 100)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			buf[row*10+col] = float64(col + 100*row)
		}
	}
	if err := ds.Bands()[0].Write(0, 0, buf, 10, 10); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	dir, err := ioutil.TempDir("", "geo2fds_gdal")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "dem.tif")
	writeTIFF(t, in, 32632)

	s := &Source{Dir: filepath.Join(dir, "layers")}
	req := raster.Request{
		Name:       "dem_clip",
		EPSG:       "EPSG:32632",
		Bounds:     &geom.Bounds{Min: geom.Point{X: 500020, Y: 5000030}, Max: geom.Point{X: 500060, Y: 5000080}},
		PixelSize:  10,
		Resampling: raster.Nearest,
	}
	g, err := s.Open(context.Background(), in, req)
	if err != nil {
		t.Fatal(err)
	}
	if g.Nx != 4 || g.Ny != 5 || g.Dx != 10 || g.Dy != 10 {
		t.Fatalf("grid %d×%d with %g×%g pixels", g.Nx, g.Ny, g.Dx, g.Dy)
	}
	if g.X0 != 500020 || g.Y1 != 5000080 {
		t.Errorf("top-left corner (%g, %g)", g.X0, g.Y1)
	}
	for r := 0; r < g.Ny; r++ {
		for c := 0; c < g.Nx; c++ {
			v, ok := g.At(500025+10*float64(c), 5000075-10*float64(r))
			if want := float64(2 + c + 100*(2+r)); !ok || v != want {
				t.Errorf("pixel (%d, %d) = %g, want %g", c, r, v, want)
			}
		}
	}
	if _, err := os.Stat(s.Path(req)); err != nil {
		t.Errorf("clipped layer was not kept: %v", err)
	}

	again, err := Load("again", s.Path(req))
	if err != nil {
		t.Fatal(err)
	}
	if again.Nx != g.Nx || again.Data[0] != g.Data[0] {
		t.Errorf("reloaded grid differs")
	}
}

func TestOpen_noCRS(t *testing.T) {
	dir, err := ioutil.TempDir("", "geo2fds_gdal")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "dem.tif")
	writeTIFF(t, in, 0)
	s := &Source{Dir: dir}
	req := raster.Request{
		Name: "x", EPSG: "EPSG:32632", PixelSize: 10,
		Bounds: &geom.Bounds{Min: geom.Point{X: 500000, Y: 5000000}, Max: geom.Point{X: 500100, Y: 5000100}},
	}
	if _, err := s.Open(context.Background(), in, req); !errors.Is(err, utm.ErrInvalidCRS) {
		t.Errorf("have %v", err)
	}
}

func TestOpen_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Source{Dir: os.TempDir()}
	if _, err := s.Open(ctx, "missing.tif", raster.Request{}); err != context.Canceled {
		t.Errorf("have %v", err)
	}
}
