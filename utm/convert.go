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

package utm

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Converter converts coordinates between WGS84 and one UTM zone.
type Converter struct {
	EPSG string
	SR   *proj.SR

	fwd, inv proj.Transformer
}

// NewConverter returns a converter for the UTM zone with the given
// EPSG code.
func NewConverter(code string) (*Converter, error) {
	sr, err := SR(code)
	if err != nil {
		return nil, err
	}
	ll, err := proj.Parse(LongLat)
	if err != nil {
		return nil, fmt.Errorf("utm: parsing WGS84: %v", err)
	}
	c := &Converter{EPSG: code, SR: sr}
	if c.fwd, err = ll.NewTransform(sr); err != nil {
		return nil, fmt.Errorf("utm: creating transform to %s: %v", code, err)
	}
	if c.inv, err = sr.NewTransform(ll); err != nil {
		return nil, fmt.Errorf("utm: creating transform from %s: %v", code, err)
	}
	return c, nil
}

// ForPoint returns a converter for the UTM zone containing p.
func ForPoint(p GeographicPoint) (*Converter, error) {
	code, err := ZoneEPSG(p.Lon, p.Lat)
	if err != nil {
		return nil, err
	}
	return NewConverter(code)
}

// Project returns the UTM coordinates of p.
func (c *Converter) Project(p GeographicPoint) (x, y float64, err error) {
	x, y, err = c.fwd(p.Lon, p.Lat)
	if err != nil {
		return 0, 0, fmt.Errorf("utm: projecting %v: %v", p, err)
	}
	return x, y, nil
}

// Unproject returns the geographic coordinates of the UTM point (x, y).
func (c *Converter) Unproject(x, y float64) (GeographicPoint, error) {
	lon, lat, err := c.inv(x, y)
	if err != nil {
		return GeographicPoint{}, fmt.Errorf("utm: unprojecting (%g, %g): %v", x, y, err)
	}
	return GeographicPoint{Lon: lon, Lat: lat}, nil
}

// TransformBounds returns the bounding box, in the to reference, of
// rectangle b given in the from reference. Edges are densified so that
// curved edges of the transformed rectangle are enclosed.
func TransformBounds(b *geom.Bounds, from, to *proj.SR) (*geom.Bounds, error) {
	t, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("utm: creating transform: %v", err)
	}
	const n = 8
	o := geom.NewBounds()
	for i := 0; i <= n; i++ {
		f := float64(i) / n
		x := b.Min.X + f*(b.Max.X-b.Min.X)
		y := b.Min.Y + f*(b.Max.Y-b.Min.Y)
		for _, p := range []geom.Point{
			{X: x, Y: b.Min.Y}, {X: x, Y: b.Max.Y},
			{X: b.Min.X, Y: y}, {X: b.Max.X, Y: y},
		} {
			px, py, err := t(p.X, p.Y)
			if err != nil {
				return nil, fmt.Errorf("utm: transforming bounds: %v", err)
			}
			o.Extend(&geom.Bounds{Min: geom.Point{X: px, Y: py}, Max: geom.Point{X: px, Y: py}})
		}
	}
	return o, nil
}
