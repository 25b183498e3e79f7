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

// Package raster aligns rectangles to raster pixel grids, builds
// sampling point grids, and samples elevation and land-cover rasters.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

var (
	// ErrInsufficientSamples is returned when a sampling grid would have
	// fewer than three points along an axis.
	ErrInsufficientSamples = errors.New("raster: insufficient samples")

	// ErrNoData is returned when a sampling point falls on a DEM pixel
	// without data.
	ErrNoData = errors.New("raster: no data")
)

// Layer is a single-band north-up raster.
type Layer interface {
	// Bounds returns the outer extent of the raster.
	Bounds() *geom.Bounds

	// PixelSize returns the pixel width and height, both positive.
	PixelSize() (dx, dy float64)

	// At returns the value of the pixel containing (x, y). ok is false
	// outside the raster or on a nodata pixel.
	At(x, y float64) (v float64, ok bool)

	// Name identifies the layer in log messages and deck headers.
	Name() string
}

// Grid is an in-memory Layer. Data is stored row by row starting from
// the top (north) row.
type Grid struct {
	Label  string
	Nx, Ny int
	Dx, Dy float64
	// X0 and Y1 are the coordinates of the top-left corner.
	X0, Y1 float64
	Data   []float64
	NoData *float64
}

// NewGrid creates a grid of nx by ny pixels with its top-left corner
// at (x0, y1).
func NewGrid(name string, nx, ny int, dx, dy, x0, y1 float64) *Grid {
	return &Grid{
		Label: name,
		Nx:    nx, Ny: ny,
		Dx: dx, Dy: dy,
		X0: x0, Y1: y1,
		Data: make([]float64, nx*ny),
	}
}

// Bounds implements Layer.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y1 - float64(g.Ny)*g.Dy},
		Max: geom.Point{X: g.X0 + float64(g.Nx)*g.Dx, Y: g.Y1},
	}
}

// PixelSize implements Layer.
func (g *Grid) PixelSize() (float64, float64) { return g.Dx, g.Dy }

// Name implements Layer.
func (g *Grid) Name() string { return g.Label }

// Index returns the column and row of the pixel containing (x, y).
func (g *Grid) Index(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor((x - g.X0) / g.Dx))
	row = int(math.Floor((g.Y1 - y) / g.Dy))
	if col < 0 || row < 0 || col >= g.Nx || row >= g.Ny {
		return 0, 0, false
	}
	return col, row, true
}

// At implements Layer.
func (g *Grid) At(x, y float64) (float64, bool) {
	col, row, ok := g.Index(x, y)
	if !ok {
		return math.NaN(), false
	}
	v := g.Data[row*g.Nx+col]
	if math.IsNaN(v) || (g.NoData != nil && v == *g.NoData) {
		return v, false
	}
	return v, true
}

// Set sets the value of the pixel at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Nx+col] = v
}

// GeoTransform returns the GDAL-style affine transform of g.
func (g *Grid) GeoTransform() [6]float64 {
	return [6]float64{g.X0, g.Dx, 0, g.Y1, 0, -g.Dy}
}

// FromGeoTransform creates an empty grid from a GDAL-style affine
// transform. Rotated rasters are not supported.
func FromGeoTransform(name string, gt [6]float64, nx, ny int) (*Grid, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return nil, fmt.Errorf("raster: %s: rotated rasters are not supported", name)
	}
	if gt[1] <= 0 || gt[5] >= 0 {
		return nil, fmt.Errorf("raster: %s: raster is not north-up (pixel size %g, %g)", name, gt[1], gt[5])
	}
	return NewGrid(name, nx, ny, gt[1], -gt[5], gt[0], gt[3]), nil
}
