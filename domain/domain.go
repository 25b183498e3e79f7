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


// Package domain tiles the simulation volume above a terrain footprint
// into a grid of equally sized meshes.
package domain

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// ErrEmptyFootprint is returned when the footprint has no area.
var ErrEmptyFootprint = errors.New("domain: empty footprint")

// Floor is the distance below the lowest terrain point at which the
// domain starts.
const Floor = 1.0

// Headroom is the number of cells left above the highest terrain point.
const Headroom = 10

// Domain is the simulation volume, split into Nx×Ny meshes of IJK cells
// each. Coordinates are relative to the domain origin.
type Domain struct {
	X0, X1, Y0, Y1, Z0, Z1 float64
	CellSize               float64
	Nx, Ny                 int
	IJK                    [3]int
}

// New creates a domain covering footprint from minZ-Floor up to
// maxZ+Headroom*cellSize, split into about nmesh meshes. The tiling
// keeps the meshes as close to square as the mesh count allows:
// ny = round(sqrt(nmesh/aspect)) and nx = floor(nmesh/ny), where aspect
// is the footprint width over its height. ny is capped at nmesh so that
// narrow footprints never get more meshes than requested.
func New(footprint *geom.Bounds, minZ, maxZ, cellSize float64, nmesh int) (*Domain, error) {
	w := footprint.Max.X - footprint.Min.X
	h := footprint.Max.Y - footprint.Min.Y
	if !(w > 0 && h > 0) {
		return nil, fmt.Errorf("%w: %g×%g", ErrEmptyFootprint, w, h)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("domain: invalid cell size %g", cellSize)
	}
	if nmesh < 1 {
		return nil, fmt.Errorf("domain: invalid mesh count %d", nmesh)
	}
	d := &Domain{
		X0: footprint.Min.X, X1: footprint.Max.X,
		Y0: footprint.Min.Y, Y1: footprint.Max.Y,
		Z0:       minZ - Floor,
		Z1:       maxZ + Headroom*cellSize,
		CellSize: cellSize,
	}
	aspect := w / h
	d.Ny = atLeastOne(int(math.Round(math.Sqrt(float64(nmesh) / aspect))))
	if d.Ny > nmesh {
		d.Ny = nmesh
	}
	d.Nx = atLeastOne(nmesh / d.Ny)
	dx, dy := d.MeshSize()
	d.IJK = [3]int{
		atLeastOne(int(math.Round(dx / cellSize))),
		atLeastOne(int(math.Round(dy / cellSize))),
		atLeastOne(int(math.Round((d.Z1 - d.Z0) / cellSize))),
	}
	return d, nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// NMesh returns the number of meshes.
func (d *Domain) NMesh() int { return d.Nx * d.Ny }

// MeshSize returns the horizontal size of a single mesh.
func (d *Domain) MeshSize() (dx, dy float64) {
	return (d.X1 - d.X0) / float64(d.Nx), (d.Y1 - d.Y0) / float64(d.Ny)
}

// MeshXB returns the extent of the south-west mesh, which is multiplied
// to fill the domain.
func (d *Domain) MeshXB() [6]float64 {
	dx, dy := d.MeshSize()
	return [6]float64{d.X0, d.X0 + dx, d.Y0, d.Y0 + dy, d.Z0, d.Z1}
}

// Tile is the footprint of one mesh.
type Tile struct {
	geom.Polygonal
	Row, Col int
}

// Tiles returns the mesh footprints, row by row from the south-west
// corner, shifted by (x0, y0).
func (d *Domain) Tiles(x0, y0 float64) []*Tile {
	dx, dy := d.MeshSize()
	tiles := make([]*Tile, 0, d.NMesh())
	for iy := 0; iy < d.Ny; iy++ {
		for ix := 0; ix < d.Nx; ix++ {
			x := x0 + d.X0 + float64(ix)*dx
			y := y0 + d.Y0 + float64(iy)*dy
			tiles = append(tiles, &Tile{
				Row: iy, Col: ix,
				Polygonal: geom.Polygon([]geom.Path{{
					{X: x, Y: y}, {X: x + dx, Y: y},
					{X: x + dx, Y: y + dy}, {X: x, Y: y + dy}, {X: x, Y: y}}}),
			})
		}
	}
	return tiles
}

// WriteToShp writes the mesh footprints, shifted by origin, to the
// shapefile name.shp in directory outdir.
func (d *Domain) WriteToShp(outdir, name string, origin geom.Point) error {
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(filepath.Join(outdir, name+ext))
	}
	fields := []goshp.Field{
		goshp.NumberField("row", 10),
		goshp.NumberField("col", 10),
		goshp.NumberField("i", 10),
		goshp.NumberField("j", 10),
		goshp.NumberField("k", 10),
	}
	f, err := shp.NewEncoderFromFields(filepath.Join(outdir, name+".shp"), goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("domain: writing shapefile: %w", err)
	}
	for _, t := range d.Tiles(origin.X, origin.Y) {
		if err := f.EncodeFields(t.Polygonal, t.Row, t.Col, d.IJK[0], d.IJK[1], d.IJK[2]); err != nil {
			f.Close()
			return fmt.Errorf("domain: writing shapefile: %w", err)
		}
	}
	f.Close()
	return nil
}
