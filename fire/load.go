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

package fire

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/utm"
)

// Attribute columns holding per-feature boundary conditions.
const (
	BCInColumn  = "bc_in"
	BCOutColumn = "bc_out"
)

// Load reads the polygons of a fire perimeter shapefile and transforms
// them into spatial reference sr. Non-polygonal shapes are skipped.
func Load(path string, sr *proj.SR) ([]Feature, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("fire: opening perimeter shapefile: %w", err)
	}
	defer d.Close()

	inSR, err := d.SR()
	if err != nil {
		return nil, fmt.Errorf("%w: fire perimeter %s: %v", utm.ErrInvalidCRS, path, err)
	}
	trans, err := inSR.NewTransform(sr)
	if err != nil {
		return nil, fmt.Errorf("%w: fire perimeter %s: %v", utm.ErrInvalidCRS, path, err)
	}

	columns := bcColumns(d.Fields())
	var o []Feature
	for row := 0; ; row++ {
		g, fields, more := d.DecodeRowFields(columns...)
		if !more || d.Error() != nil {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("fire: transforming perimeter row %d: %v", row, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			log.WithFields(log.Fields{"row": row, "type": fmt.Sprintf("%T", gg)}).Warn("fire: skipping non-polygon shape")
			continue
		}
		f := Feature{Polygonal: poly}
		s, ok := fields[BCInColumn]
		if f.BCIn, err = ParseBC(s, ok); err != nil {
			return nil, fmt.Errorf("%s row %d: %v", path, row, err)
		}
		s, ok = fields[BCOutColumn]
		if f.BCOut, err = ParseBC(s, ok); err != nil {
			return nil, fmt.Errorf("%s row %d: %v", path, row, err)
		}
		o = append(o, f)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("fire: reading perimeter shapefile: %v", err)
	}
	log.WithFields(log.Fields{"path": path, "features": len(o)}).Info("fire: loaded perimeter")
	return o, nil
}

// bcColumns returns the boundary-condition columns present in fields.
// Absent columns are left to the catalog defaults.
func bcColumns(fields []goshp.Field) []string {
	var o []string
	for _, name := range []string{BCInColumn, BCOutColumn} {
		for _, f := range fields {
			if strings.EqualFold(f.String(), name) {
				o = append(o, name)
				break
			}
		}
	}
	return o
}
