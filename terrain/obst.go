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

package terrain

import (
	"context"
	"math"

	"github.com/spatialmodel/geo2fds/mesh"
	"github.com/spatialmodel/geo2fds/surface"
)

// Overlap is the distance in meters by which boxes are grown outward so
// that neighbouring boxes overlap.
const Overlap = 0.01

// Box is an axis-aligned obstruction.
type Box struct {
	// XB holds xmin, xmax, ymin, ymax, zmin, zmax.
	XB     [6]float64
	SurfID string
	// Gap marks boxes that fill the space between diagonal neighbours.
	Gap bool
}

// newBox returns the box spanning x0..x1 and y0..y1, grown outward by
// ex and ey in the direction from the first to the second coordinate.
func newBox(x0, x1, y0, y1, ex, ey, zlo, zhi float64) [6]float64 {
	x0, x1 = x0-ex, x1+ex
	y0, y1 = y0-ey, y1+ey
	return [6]float64{
		math.Min(x0, x1), math.Max(x0, x1),
		math.Min(y0, y1), math.Max(y0, y1),
		zlo, zhi,
	}
}

func signed(e, d float64) float64 {
	if d < 0 {
		return -e
	}
	return e
}

// NewObst approximates the terrain sampled by m with boxes extending
// down to zmin.
//
// Every sample cell gets a center box spanning from the midpoint with
// its lower-left diagonal neighbour to the midpoint with its upper-right
// one, using ghost neighbours at the edges. When the sampling grid is
// rotated these boxes leave gaps around the shared cell corners, so
// every interior corner also gets a gap box spanning the midpoints of
// the four cell edges meeting there, topped by the upper-left of the
// four cells. The gap pass only visits interior corners, so the outer
// half-cell ring of a rotated footprint is not filled. Boxes are grown
// by Overlap; the growth direction follows the sign of the column and
// row steps so that mirrored grids are grown outward too.
func NewObst(ctx context.Context, m *mesh.Matrix, zmin float64, cat *surface.Catalog) ([]Box, error) {
	p := m.Pad()
	o := make([]Box, 0, m.Rows*m.Cols+(m.Rows-1)*(m.Cols-1))

	prog := mesh.NewProgress(ctx, m.Rows*m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			if err := prog.Check(i*m.Cols + j); err != nil {
				return nil, err
			}
			c := p.At(i+1, j+1)
			ll, ur := p.At(i+2, j), p.At(i, j+2)
			x0, y0 := (ll.X+c.X)/2, (ll.Y+c.Y)/2
			x1, y1 := (c.X+ur.X)/2, (c.Y+ur.Y)/2
			_, id := cat.Lookup(c.BC())
			o = append(o, Box{
				XB:     newBox(x0, x1, y0, y1, signed(Overlap, x1-x0), signed(Overlap, y1-y0), zmin, c.Z),
				SurfID: id,
			})
		}
	}

	prog = mesh.NewProgress(ctx, (m.Rows-1)*(m.Cols-1))
	for i := 0; i < m.Rows-1; i++ {
		for j := 0; j < m.Cols-1; j++ {
			if err := prog.Check(i*(m.Cols-1) + j); err != nil {
				return nil, err
			}
			c00, c01 := m.At(i, j), m.At(i, j+1)
			c10, c11 := m.At(i+1, j), m.At(i+1, j+1)
			left := (c00.X + c10.X) / 2
			right := (c01.X + c11.X) / 2
			top := (c00.Y + c01.Y) / 2
			bottom := (c10.Y + c11.Y) / 2
			ex := signed(Overlap, c01.X-c00.X)
			ey := signed(Overlap, c00.Y-c10.Y)
			_, id := cat.Lookup(c00.BC())
			o = append(o, Box{
				XB:     newBox(left, right, bottom, top, ex, ey, zmin, c00.Z),
				SurfID: id,
				Gap:    true,
			})
		}
	}
	return o, nil
}
