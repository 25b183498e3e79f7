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


package raster

import (
	"context"

	"github.com/ctessum/geom"
)

// Resampling selects how pixel values are interpolated when a raster is
// reprojected.
type Resampling int

const (
	// Bilinear interpolation, for continuous data such as elevations.
	Bilinear Resampling = iota
	// Nearest neighbour, for categorical data such as land cover.
	Nearest
)

func (r Resampling) String() string {
	if r == Nearest {
		return "near"
	}
	return "bilinear"
}

// Request describes the raster a Source should produce: the input
// reprojected to the CRS with code EPSG, clipped to Bounds and resampled
// to square pixels of PixelSize. The result is named Name.
type Request struct {
	Name       string
	EPSG       string
	Bounds     *geom.Bounds
	PixelSize  float64
	Resampling Resampling
}

// A Source opens a raster file and returns it clipped and resampled as
// requested.
type Source interface {
	Open(ctx context.Context, path string, req Request) (*Grid, error)
}
