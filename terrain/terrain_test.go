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
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/spatialmodel/geo2fds/bingeom"
	"github.com/spatialmodel/geo2fds/mesh"
	"github.com/spatialmodel/geo2fds/surface"
)

// matrix returns an r×c sample matrix with spacing p rotated by theta
// degrees and centered on the origin.
func matrix(t *testing.T, r, c int, p, theta float64, z func(i, j int) float64) *mesh.Matrix {
	th := theta * math.Pi / 180
	dx := [2]float64{p * math.Cos(th), p * math.Sin(th)}
	dy := [2]float64{p * math.Sin(th), -p * math.Cos(th)}
	hi, hj := float64(r-1)/2, float64(c-1)/2
	var pts []mesh.Sample
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			fi, fj := float64(i)-hi, float64(j)-hj
			pts = append(pts, mesh.Sample{
				X: fj*dx[0] + fi*dy[0],
				Y: fj*dx[1] + fi*dy[1],
				Z: z(i, j),
			})
		}
	}
	m, err := mesh.NewMatrix(context.Background(), pts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func flat(int, int) float64 { return 100 }

func catalogA(t *testing.T) *surface.Catalog {
	c, err := surface.Parse(strings.NewReader("k,d\n0,&SURF ID='A' /\n"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func checkGeom(t *testing.T, g *bingeom.Geom, r, c, nsurf int) {
	t.Helper()
	nv := (r + 1) * (c + 1)
	if g.NVerts() != nv || g.NFaces() != 2*r*c || len(g.Surfs) != 2*r*c {
		t.Fatalf("%d verts, %d faces, %d surfs", g.NVerts(), g.NFaces(), len(g.Surfs))
	}
	for _, f := range g.Faces {
		if f < 1 || int(f) > nv {
			t.Fatalf("face index %d out of range", f)
		}
	}
	for _, s := range g.Surfs {
		if s < 1 || int(s) > nsurf {
			t.Fatalf("surface index %d out of range", s)
		}
	}
}

func TestNewGeom_flat(t *testing.T) {
	m := matrix(t, 3, 3, 10, 0, flat)
	g, err := NewGeom(context.Background(), m, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	checkGeom(t, g, 3, 3, 1)
	if g.Type != bingeom.Terrain || g.NSurfs != 1 {
		t.Errorf("type %d, nsurfs %d", g.Type, g.NSurfs)
	}
	var want []float64
	for _, y := range []float64{15, 5, -5, -15} {
		for _, x := range []float64{-15, -5, 5, 15} {
			want = append(want, x, y, 100)
		}
	}
	if !reflect.DeepEqual(g.Verts, want) {
		t.Errorf("verts: %v", pretty.Diff(g.Verts, want))
	}
	wantFaces := []int32{1, 5, 2, 6, 2, 5}
	if !reflect.DeepEqual(g.Faces[:6], wantFaces) {
		t.Errorf("first cell faces %v, want %v", g.Faces[:6], wantFaces)
	}
	for _, s := range g.Surfs {
		if s != 1 {
			t.Fatalf("surface %d", s)
		}
	}
}

// TestNewGeom_upward checks that every triangle is counterclockwise
// seen from above.
func TestNewGeom_upward(t *testing.T) {
	for _, theta := range []float64{0, 30, -20} {
		m := matrix(t, 4, 5, 10, theta, func(i, j int) float64 { return float64(i * j) })
		g, err := NewGeom(context.Background(), m, catalogA(t))
		if err != nil {
			t.Fatal(err)
		}
		for f := 0; f < g.NFaces(); f++ {
			v := func(k int) (float64, float64) {
				i := int(g.Faces[3*f+k]-1) * 3
				return g.Verts[i], g.Verts[i+1]
			}
			ax, ay := v(0)
			bx, by := v(1)
			cx, cy := v(2)
			if cross := (bx-ax)*(cy-ay) - (by-ay)*(cx-ax); cross <= 0 {
				t.Fatalf("θ=%g: face %d is not counterclockwise (%g)", theta, f, cross)
			}
		}
	}
}

func TestNewGeom_tilted(t *testing.T) {
	m := matrix(t, 3, 3, 10, 30, flat)
	if m.Rows != 3 || m.Cols != 3 {
		t.Fatalf("shape (%d,%d)", m.Rows, m.Cols)
	}
	g, err := NewGeom(context.Background(), m, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	checkGeom(t, g, 3, 3, 1)
	// The corner vertices are the rotated corners of the padded grid.
	th := 30 * math.Pi / 180
	x, y := -15*math.Cos(th)-15*math.Sin(th), -15*math.Sin(th)+15*math.Cos(th)
	if math.Abs(g.Verts[0]-x) > 1e-9 || math.Abs(g.Verts[1]-y) > 1e-9 {
		t.Errorf("first vertex (%g, %g), want (%g, %g)", g.Verts[0], g.Verts[1], x, y)
	}
}

func TestNewGeom_surfaces(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	cat, err := surface.Parse(strings.NewReader("k,d\n3,&SURF ID='A' /\n7,&SURF ID='B' /\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := matrix(t, 3, 4, 10, 0, flat)
	for k := range m.Data {
		m.Data[k].Cover = 3
	}
	// Cells (0,1) and (2,3) map to B, cell (1,1) to an unknown key.
	m.Data[1].Cover = 7
	m.Data[5].Override, m.Data[5].Overridden = 99, true
	m.Data[11].Override, m.Data[11].Overridden = 7, true
	g, err := NewGeom(context.Background(), m, cat)
	if err != nil {
		t.Fatal(err)
	}
	checkGeom(t, g, 3, 4, 2)
	want := []int32{1, 1, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2}
	if !reflect.DeepEqual(g.Surfs, want) {
		t.Errorf("surfs %v, want %v", g.Surfs, want)
	}
	if len(hook.Entries) != 1 {
		t.Errorf("want one warning for the unknown cover, have %d", len(hook.Entries))
	}
}

func TestNewGeom_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewGeom(ctx, matrix(t, 3, 3, 10, 0, flat), catalogA(t)); err != context.Canceled {
		t.Errorf("have %v", err)
	}
}

func TestNewObst_flat(t *testing.T) {
	m := matrix(t, 3, 3, 10, 0, flat)
	boxes, err := NewObst(context.Background(), m, 90, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	var centers, gaps int
	for _, b := range boxes {
		if b.Gap {
			gaps++
		} else {
			centers++
		}
		if b.SurfID != "A" || b.XB[4] != 90 || b.XB[5] != 100 {
			t.Errorf("box %+v", b)
		}
	}
	if centers != 9 || gaps != 4 {
		t.Errorf("%d center boxes and %d gap boxes", centers, gaps)
	}
	e := Overlap
	want := [6]float64{-15 - e, -5 + e, 5 - e, 15 + e, 90, 100}
	if !closeXB(boxes[0].XB, want) {
		t.Errorf("first box %v, want %v", boxes[0].XB, want)
	}
	wantGap := [6]float64{-10 - e, e, -e, 10 + e, 90, 100}
	if !closeXB(boxes[9].XB, wantGap) {
		t.Errorf("first gap box %v, want %v", boxes[9].XB, wantGap)
	}
}

func TestNewObst_gapHeight(t *testing.T) {
	m := matrix(t, 3, 3, 10, 0, func(i, j int) float64 { return float64(100 + 10*i + j) })
	boxes, err := NewObst(context.Background(), m, 50, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range boxes[:9] {
		if b.XB[5] < 100 {
			t.Errorf("center box top %g", b.XB[5])
		}
	}
	want := []float64{100, 101, 110, 111}
	for k, b := range boxes[9:] {
		if b.XB[5] != want[k] {
			t.Errorf("gap box %d top %g, want %g", k, b.XB[5], want[k])
		}
	}
}

func TestNewObst_gapHeightFalling(t *testing.T) {
	m := matrix(t, 3, 3, 10, 0, func(i, j int) float64 { return float64(200 - 10*i - j) })
	c, err := surface.Parse(strings.NewReader("k,d\n0,&SURF ID='A' /\n1,&SURF ID='B' /\n"))
	if err != nil {
		t.Fatal(err)
	}
	s := m.At(0, 0)
	s.Cover = 1
	m.Set(0, 0, s)
	boxes, err := NewObst(context.Background(), m, 50, c)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{200, 199, 190, 189}
	for k, b := range boxes[9:] {
		if b.XB[5] != want[k] {
			t.Errorf("gap box %d top %g, want %g", k, b.XB[5], want[k])
		}
	}
	if boxes[9].SurfID != "B" || boxes[10].SurfID != "A" {
		t.Errorf("gap surfaces %q %q", boxes[9].SurfID, boxes[10].SurfID)
	}
}

func closeXB(a, b [6]float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func covered(boxes []Box, x, y float64) bool {
	for _, b := range boxes {
		if x >= b.XB[0] && x <= b.XB[1] && y >= b.XB[2] && y <= b.XB[3] {
			return true
		}
	}
	return false
}

// TestNewObst_coverage checks that the boxes leave no holes over the
// area spanned by the sample centers, for straight and rotated grids.
func TestNewObst_coverage(t *testing.T) {
	const r, c, p = 5, 6, 10.
	for _, theta := range []float64{0, 3, -3, 8} {
		t.Run(fmt.Sprint(theta), func(t *testing.T) {
			m := matrix(t, r, c, p, theta, flat)
			boxes, err := NewObst(context.Background(), m, 90, catalogA(t))
			if err != nil {
				t.Fatal(err)
			}
			o := m.At(0, 0)
			dx := [2]float64{m.At(0, 1).X - o.X, m.At(0, 1).Y - o.Y}
			dy := [2]float64{m.At(1, 0).X - o.X, m.At(1, 0).Y - o.Y}
			// Stay 2% of a pixel inside the outermost centers.
			const margin = 0.02
			const n = 97
			for a := 0; a <= n; a++ {
				for b := 0; b <= n; b++ {
					u := margin + float64(a)/n*(c-1-2*margin)
					w := margin + float64(b)/n*(r-1-2*margin)
					x := o.X + u*dx[0] + w*dy[0]
					y := o.Y + u*dx[1] + w*dy[1]
					if !covered(boxes, x, y) {
						t.Fatalf("(%.3f, %.3f) is not covered", x, y)
					}
				}
			}
		})
	}
}

// TestNewObst_footprint checks that an unrotated grid is covered out to
// the outer pixel edges, and that a rotated grid leaves holes only in
// the outer half-cell ring.
func TestNewObst_footprint(t *testing.T) {
	const r, c, p = 5, 6, 10.
	for _, theta := range []float64{0, 3} {
		t.Run(fmt.Sprint(theta), func(t *testing.T) {
			m := matrix(t, r, c, p, theta, flat)
			boxes, err := NewObst(context.Background(), m, 90, catalogA(t))
			if err != nil {
				t.Fatal(err)
			}
			o := m.At(0, 0)
			dx := [2]float64{m.At(0, 1).X - o.X, m.At(0, 1).Y - o.Y}
			dy := [2]float64{m.At(1, 0).X - o.X, m.At(1, 0).Y - o.Y}
			const n = 120
			var holes int
			for a := 0; a <= n; a++ {
				for b := 0; b <= n; b++ {
					u := -0.5 + float64(a)/n*c
					w := -0.5 + float64(b)/n*r
					x := o.X + u*dx[0] + w*dy[0]
					y := o.Y + u*dx[1] + w*dy[1]
					if covered(boxes, x, y) {
						continue
					}
					holes++
					if u > 0 && u < c-1 && w > 0 && w < r-1 {
						t.Fatalf("(%.3f, %.3f) is not covered", x, y)
					}
				}
			}
			if theta == 0 && holes != 0 {
				t.Errorf("%d holes in an unrotated footprint", holes)
			}
			if theta != 0 && holes == 0 {
				t.Error("rotated footprint has no holes in the outer ring")
			}
		})
	}
}

// TestNewObst_mirrored checks that a grid whose columns run from east
// to west produces the same boxes as the equivalent west-to-east grid.
func TestNewObst_mirrored(t *testing.T) {
	m := matrix(t, 3, 4, 10, 0, flat)
	mirror := &mesh.Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]mesh.Sample, len(m.Data))}
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			mirror.Set(i, j, m.At(i, m.Cols-1-j))
		}
	}
	a, err := NewObst(context.Background(), m, 90, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewObst(context.Background(), mirror, 90, catalogA(t))
	if err != nil {
		t.Fatal(err)
	}
	sortBoxes := func(bx []Box) {
		sort.Slice(bx, func(i, j int) bool {
			for k := 0; k < 6; k++ {
				if bx[i].XB[k] != bx[j].XB[k] {
					return bx[i].XB[k] < bx[j].XB[k]
				}
			}
			return !bx[i].Gap && bx[j].Gap
		})
	}
	sortBoxes(a)
	sortBoxes(b)
	for k := range a {
		if !closeXB(a[k].XB, b[k].XB) || a[k].Gap != b[k].Gap {
			t.Fatalf("box %d: %v != %v", k, a[k], b[k])
		}
		if w := b[k].XB[1] - b[k].XB[0]; math.Abs(w-(10+2*Overlap)) > 1e-9 {
			t.Errorf("box %d width %g", k, w)
		}
	}
}
