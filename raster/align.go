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
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// snapTol absorbs floating point noise when an edge already lies on
// the pixel grid.
const snapTol = 1e-9

// AlignExtent returns extent e aligned to the pixel grid of layer l.
// The grid is anchored at the top-left corner of l. Each edge of e is
// moved outward to the nearest pixel edge and then the rectangle is
// grown by enlargement whole pixels on every side. If toCenters is
// true, the edges are finally moved half a pixel inward so that they
// fall on pixel centers.
//
// With enlargement == 0 the operation is idempotent.
func AlignExtent(l Layer, e *geom.Bounds, enlargement int, toCenters bool) *geom.Bounds {
	lb := l.Bounds()
	px, py := l.PixelSize()
	ax, ay := lb.Min.X, lb.Max.Y
	n := float64(enlargement)

	o := &geom.Bounds{
		Min: geom.Point{
			X: ax + (math.Floor((e.Min.X-ax)/px+snapTol)-n)*px,
			Y: ay - (math.Ceil((ay-e.Min.Y)/py-snapTol)+n)*py,
		},
		Max: geom.Point{
			X: ax + (math.Ceil((e.Max.X-ax)/px-snapTol)+n)*px,
			Y: ay - (math.Floor((ay-e.Max.Y)/py+snapTol)-n)*py,
		},
	}
	if toCenters {
		o.Min.X += px / 2
		o.Max.X -= px / 2
		o.Min.Y += py / 2
		o.Max.Y -= py / 2
	}
	return o
}

// PointGrid returns sampling points on the pixel centers of layer l
// covering extent e grown by enlargement pixels. Points are ordered
// column by column, west to east, and each column is walked from top
// to bottom.
func PointGrid(l Layer, e *geom.Bounds, enlargement int) ([]geom.Point, error) {
	a := AlignExtent(l, e, enlargement, true)
	px, py := l.PixelSize()
	nx := int(math.Round((a.Max.X-a.Min.X)/px)) + 1
	ny := int(math.Round((a.Max.Y-a.Min.Y)/py)) + 1
	if nx < 3 || ny < 3 {
		return nil, fmt.Errorf("%w: %d×%d points over %s at pixel size %g×%g",
			ErrInsufficientSamples, nx, ny, l.Name(), px, py)
	}
	pts := make([]geom.Point, 0, nx*ny)
	for j := 0; j < nx; j++ {
		x := a.Min.X + float64(j)*px
		for i := 0; i < ny; i++ {
			pts = append(pts, geom.Point{X: x, Y: a.Max.Y - float64(i)*py})
		}
	}
	return pts, nil
}

// Buffer returns b grown by d on every side.
func Buffer(b *geom.Bounds, d float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: geom.Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}
