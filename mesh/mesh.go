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

/*Package mesh turns the flat list of sampled terrain points into a
two-dimensional sample matrix.*/
package mesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrIrregularGrid is returned when the number of samples is not a
	// multiple of the detected column length.
	ErrIrregularGrid = errors.New("mesh: irregular sampling grid")

	// ErrMatrixTooSmall is returned when the sample matrix would have
	// fewer than three rows or columns.
	ErrMatrixTooSmall = errors.New("mesh: sample matrix too small")
)

// ColinearityThreshold is the smallest cosine between two consecutive
// steps that still continues a column.
const ColinearityThreshold = 0.9

// Sample is a terrain sampling point. X and Y are in meters relative to
// the domain origin and Z is the elevation in meters.
//
// Cover holds the land-cover key sampled from the land-cover raster and
// Override, when Overridden is set, holds the boundary condition stamped
// by a fire perimeter. The two are resolved by BC.
type Sample struct {
	X, Y, Z    float64
	Cover      int
	Override   int
	Overridden bool
}

// BC returns the surface key of s.
func (s Sample) BC() int {
	if s.Overridden {
		return s.Override
	}
	return s.Cover
}

// XY returns the planar location of s.
func (s Sample) XY() geom.Point { return geom.Point{X: s.X, Y: s.Y} }

func step(a, b Sample) []float64 { return []float64{b.X - a.X, b.Y - a.Y} }

// ColumnBreak reports whether step v1 does not continue the column
// walked by step v0, i.e. the cosine of the angle between them is
// below ColinearityThreshold. Zero-length steps always break.
func ColumnBreak(v0, v1 []float64) bool {
	n := floats.Norm(v0, 2) * floats.Norm(v1, 2)
	if n == 0 {
		return true
	}
	return floats.Dot(v0, v1)/n < ColinearityThreshold
}

// ColumnLen returns the number of samples in the first column of pts,
// which must be ordered column by column.
func ColumnLen(pts []Sample) (int, error) {
	if len(pts) < 2 {
		return 0, fmt.Errorf("%w: %d samples", ErrMatrixTooSmall, len(pts))
	}
	v0 := step(pts[0], pts[1])
	if floats.Norm(v0, 2) == 0 {
		return 0, fmt.Errorf("%w: duplicate samples at (%g, %g)", ErrIrregularGrid, pts[0].X, pts[0].Y)
	}
	for i := 2; i < len(pts); i++ {
		if ColumnBreak(v0, step(pts[i-1], pts[i])) {
			return i, nil
		}
	}
	return len(pts), nil
}

// Matrix is a row-major matrix of samples.
type Matrix struct {
	Rows, Cols int
	Data       []Sample
}

// NewMatrix builds a matrix from samples ordered column by column with
// each column walked top to bottom, as produced by a point grid.
// Element (i, j) of the result is sample j*Rows+i of pts.
func NewMatrix(ctx context.Context, pts []Sample) (*Matrix, error) {
	colLen, err := ColumnLen(pts)
	if err != nil {
		return nil, err
	}
	if len(pts)%colLen != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a multiple of column length %d",
			ErrIrregularGrid, len(pts), colLen)
	}
	m := &Matrix{Rows: colLen, Cols: len(pts) / colLen}
	if m.Rows < 3 || m.Cols < 3 {
		return nil, fmt.Errorf("%w: %d×%d", ErrMatrixTooSmall, m.Rows, m.Cols)
	}
	m.Data = make([]Sample, len(pts))
	prog := NewProgress(ctx, len(pts))
	for k, p := range pts {
		if err := prog.Check(k); err != nil {
			return nil, err
		}
		i, j := k%colLen, k/colLen
		m.Data[i*m.Cols+j] = p
	}
	return m, nil
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) Sample { return m.Data[i*m.Cols+j] }

// Set sets element (i, j).
func (m *Matrix) Set(i, j int, s Sample) { m.Data[i*m.Cols+j] = s }

// Pad returns a copy of m with one ghost row and column added on each
// side. Ghost samples copy the elevation and boundary condition of the
// adjacent real sample and extrapolate its location by one row or
// column step.
func (m *Matrix) Pad() *Matrix {
	dx := step(m.At(0, 0), m.At(0, 1))
	dy := step(m.At(0, 0), m.At(1, 0))
	shift := func(s Sample, v []float64, sign float64) Sample {
		s.X += sign * v[0]
		s.Y += sign * v[1]
		return s
	}
	p := &Matrix{Rows: m.Rows + 2, Cols: m.Cols + 2}
	p.Data = make([]Sample, p.Rows*p.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			p.Set(i+1, j+1, m.At(i, j))
		}
	}
	for j := 1; j <= m.Cols; j++ {
		p.Set(0, j, shift(p.At(1, j), dy, -1))
		p.Set(p.Rows-1, j, shift(p.At(p.Rows-2, j), dy, 1))
	}
	for i := 0; i < p.Rows; i++ {
		p.Set(i, 0, shift(p.At(i, 1), dx, -1))
		p.Set(i, p.Cols-1, shift(p.At(i, p.Cols-2), dx, 1))
	}
	return p
}

// MinZ returns the lowest sample elevation.
func (m *Matrix) MinZ() float64 { return floats.Min(m.z()) }

// MaxZ returns the highest sample elevation.
func (m *Matrix) MaxZ() float64 { return floats.Max(m.z()) }

func (m *Matrix) z() []float64 {
	z := make([]float64, len(m.Data))
	for i, s := range m.Data {
		z[i] = s.Z
	}
	return z
}

// Footprint returns the planar bounds of the sample locations.
func (m *Matrix) Footprint() *geom.Bounds {
	b := geom.NewBounds()
	for _, s := range m.Data {
		p := s.XY()
		b.Extend(p.Bounds())
	}
	return b
}
