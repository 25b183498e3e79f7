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

// Package terrain builds simulator terrain surfaces from a sample
// matrix, either as a triangulated GEOM surface or as a set of OBST
// boxes.
package terrain

import (
	"context"

	"github.com/spatialmodel/geo2fds/bingeom"
	"github.com/spatialmodel/geo2fds/mesh"
	"github.com/spatialmodel/geo2fds/surface"
)

// NewGeom triangulates the terrain sampled by m.
//
// Vertices sit on the corners of the sample cells: vertex (i, j), for
// i in [0, Rows] and j in [0, Cols], is the mean of the four cell
// centers around it in the ghost-padded matrix, and it is numbered
// i*(Cols+1)+j+1. Each cell contributes two upward-facing triangles
// that share the cell's boundary condition, mapped to its 1-based
// position in cat.
func NewGeom(ctx context.Context, m *mesh.Matrix, cat *surface.Catalog) (*bingeom.Geom, error) {
	p := m.Pad()
	vr, vc := m.Rows+1, m.Cols+1
	g := &bingeom.Geom{
		Type:   bingeom.Terrain,
		NSurfs: int32(cat.Len()),
		Verts:  make([]float64, 0, 3*vr*vc),
		Faces:  make([]int32, 0, 6*m.Rows*m.Cols),
		Surfs:  make([]int32, 0, 2*m.Rows*m.Cols),
		Volus:  []int32{},
	}

	prog := mesh.NewProgress(ctx, vr*vc)
	for i := 0; i < vr; i++ {
		for j := 0; j < vc; j++ {
			if err := prog.Check(i*vc + j); err != nil {
				return nil, err
			}
			a, b, c, d := p.At(i, j), p.At(i+1, j), p.At(i, j+1), p.At(i+1, j+1)
			g.Verts = append(g.Verts,
				(a.X+b.X+c.X+d.X)/4,
				(a.Y+b.Y+c.Y+d.Y)/4,
				(a.Z+b.Z+c.Z+d.Z)/4,
			)
		}
	}

	v := func(i, j int) int32 { return int32(i*vc + j + 1) }
	prog = mesh.NewProgress(ctx, m.Rows*m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			if err := prog.Check(i*m.Cols + j); err != nil {
				return nil, err
			}
			g.Faces = append(g.Faces,
				v(i, j), v(i+1, j), v(i, j+1),
				v(i+1, j+1), v(i, j+1), v(i+1, j),
			)
			s, _ := cat.Lookup(m.At(i, j).BC())
			g.Surfs = append(g.Surfs, int32(s), int32(s))
		}
	}
	return g, nil
}
