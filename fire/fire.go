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

// Package fire transfers boundary conditions from fire perimeter
// polygons onto terrain sampling points.
package fire

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/mesh"
	"github.com/spatialmodel/geo2fds/surface"
)

// TinyDistanceFactor scales the pixel size to give the border distance
// of polygons smaller than one pixel.
const TinyDistanceFactor = 0.6

// BC is an optional boundary-condition attribute of a fire feature.
type BC struct {
	Key int
	// Valid is true when Key holds a value.
	Valid bool
	// Null is true when the attribute exists but is empty. Null
	// attributes do not mark any point.
	Null bool
}

// ParseBC parses a shapefile attribute value. ok is false when the
// attribute column does not exist.
func ParseBC(s string, ok bool) (BC, error) {
	if !ok {
		return BC{}, nil
	}
	s = strings.Trim(s, "\x00 ")
	if s == "" {
		return BC{Null: true}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return BC{}, fmt.Errorf("fire: invalid boundary condition %q", s)
	}
	return BC{Key: int(math.Round(f)), Valid: true}, nil
}

// Set returns a BC holding key.
func Set(key int) BC { return BC{Key: key, Valid: true} }

func (b BC) resolve(def int) (key int, stamp bool) {
	switch {
	case b.Valid:
		return b.Key, true
	case b.Null:
		return 0, false
	}
	return def, true
}

// Feature is a fire perimeter in origin-relative metric coordinates.
type Feature struct {
	geom.Polygonal
	BCIn, BCOut BC
}

// Shift translates f by (dx, dy).
func (f *Feature) Shift(dx, dy float64) error {
	g, err := f.Polygonal.Transform(func(x, y float64) (float64, float64, error) {
		return x + dx, y + dy, nil
	})
	if err != nil {
		return fmt.Errorf("fire: shifting feature: %v", err)
	}
	f.Polygonal = g.(geom.Polygonal)
	return nil
}

// Assignment sets the boundary condition of sample Index to BC.
type Assignment struct {
	Index, BC int
}

// samplePoint is a sampling point stored in the spatial index.
type samplePoint struct {
	geom.Point
	i int
}

// Compute returns the boundary-condition assignments that features
// make on samples, without modifying them. p is the sampling pixel size.
//
// A sample strictly inside a feature receives the feature's inside
// boundary condition and a sample outside it but closer than the
// border distance receives the border boundary condition. Polygons
// whose bounds are smaller than p in both directions are reduced to
// their centroid, which is inside the single sample whose pixel
// contains it; their border distance is TinyDistanceFactor*p. Larger
// polygons use a border distance of p. Missing attributes default to
// the catalog's BCInside and BCBorder. Assignments are returned in
// feature order so later features take precedence.
func Compute(ctx context.Context, samples []mesh.Sample, features []Feature, p float64, cat *surface.Catalog) ([]Assignment, error) {
	index := rtree.NewTree(25, 50)
	for i, s := range samples {
		index.Insert(&samplePoint{Point: s.XY(), i: i})
	}
	var o []Assignment
	for fi, f := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bcIn, stampIn := f.BCIn.resolve(cat.BCInside())
		bcOut, stampOut := f.BCOut.resolve(cat.BCBorder())

		b := f.Bounds()
		d := p
		tiny := b.Max.X-b.Min.X < p && b.Max.Y-b.Min.Y < p
		var c geom.Point
		if tiny {
			c = f.Centroid()
			d = TinyDistanceFactor * p
			b = &geom.Bounds{Min: c, Max: c}
		}
		search := &geom.Bounds{
			Min: geom.Point{X: b.Min.X - 2*d, Y: b.Min.Y - 2*d},
			Max: geom.Point{X: b.Max.X + 2*d, Y: b.Max.Y + 2*d},
		}
		var nIn, nOut int
		for _, gI := range index.SearchIntersect(search) {
			sp := gI.(*samplePoint)
			var inside bool
			var dist float64
			if tiny {
				inside = inPixel(c, sp.Point, p)
				dist = math.Hypot(c.X-sp.X, c.Y-sp.Y)
			} else {
				inside = sp.Point.Within(f.Polygonal) == geom.Inside
				if !inside {
					dist = boundaryDistance(sp.Point, f.Polygonal)
				}
			}
			switch {
			case inside && stampIn:
				o = append(o, Assignment{Index: sp.i, BC: bcIn})
				nIn++
			case !inside && dist < d && stampOut:
				o = append(o, Assignment{Index: sp.i, BC: bcOut})
				nOut++
			}
		}
		log.WithFields(log.Fields{
			"feature": fi,
			"bc_in":   bcIn,
			"bc_out":  bcOut,
			"inside":  nIn,
			"border":  nOut,
		}).Info("fire: boundary conditions transferred")
	}
	return o, nil
}

// inPixel reports whether c lies in the pixel of size p centered on s.
// Pixels are closed on their low side and open on their high side so
// that a point on a shared edge belongs to exactly one pixel.
func inPixel(c, s geom.Point, p float64) bool {
	dx, dy := c.X-s.X, c.Y-s.Y
	return dx >= -p/2 && dx < p/2 && dy >= -p/2 && dy < p/2
}

// boundaryDistance returns the distance from pt to the nearest edge of
// poly.
func boundaryDistance(pt geom.Point, poly geom.Polygonal) float64 {
	d := math.Inf(1)
	for _, pg := range poly.Polygons() {
		for _, ring := range pg {
			n := len(ring)
			for k := 0; k < n; k++ {
				d = math.Min(d, segmentDistance(pt, ring[k], ring[(k+1)%n]))
			}
		}
	}
	return d
}

func segmentDistance(p, a, b geom.Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	l2 := vx*vx + vy*vy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*vx + (p.Y-a.Y)*vy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*vx), p.Y-(a.Y+t*vy))
}

// Apply writes assignments into the override slot of samples, in order.
func Apply(samples []mesh.Sample, assignments []Assignment) {
	for _, a := range assignments {
		samples[a.Index].Override = a.BC
		samples[a.Index].Overridden = true
	}
}

// Transfer stamps the boundary conditions of features onto samples.
// Samples are only modified if all features are processed successfully.
func Transfer(ctx context.Context, samples []mesh.Sample, features []Feature, p float64, cat *surface.Catalog) error {
	a, err := Compute(ctx, samples, features, p, cat)
	if err != nil {
		return err
	}
	Apply(samples, a)
	return nil
}
