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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/geo2fds/mesh"
)

// Sample reads elevation from dem and land cover from cover (which may
// be nil) at each point and returns the samples with coordinates made
// relative to origin. Land-cover pixels without data sample as 0.
func Sample(ctx context.Context, pts []geom.Point, origin geom.Point, dem, cover Layer) ([]mesh.Sample, error) {
	o := make([]mesh.Sample, len(pts))
	prog := mesh.NewProgress(ctx, len(pts))
	var missingCover int
	for i, p := range pts {
		if err := prog.Check(i); err != nil {
			return nil, err
		}
		z, ok := dem.At(p.X, p.Y)
		if !ok {
			return nil, fmt.Errorf("%w: %s at (%.2f, %.2f)", ErrNoData, dem.Name(), p.X, p.Y)
		}
		s := mesh.Sample{X: p.X - origin.X, Y: p.Y - origin.Y, Z: z}
		if cover != nil {
			if c, ok := cover.At(p.X, p.Y); ok {
				s.Cover = int(math.Round(c))
			} else {
				missingCover++
			}
		}
		o[i] = s
	}
	if missingCover > 0 {
		log.WithFields(log.Fields{
			"layer":  cover.Name(),
			"points": missingCover,
		}).Warn("raster: land cover has no data at some sampling points; using 0")
	}
	return o, nil
}

// WriteSamples writes samples to a point shapefile at path with
// coordinates translated back by origin. Existing files are replaced.
func WriteSamples(path string, samples []mesh.Sample, origin geom.Point) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("raster: creating sampling layer directory: %v", err)
	}
	fields := []goshp.Field{
		goshp.FloatField("z", 14, 3),
		goshp.NumberField("cover", 10),
		goshp.NumberField("bc", 10),
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("raster: creating sampling layer: %v", err)
	}
	for _, s := range samples {
		p := geom.Point{X: s.X + origin.X, Y: s.Y + origin.Y}
		if err := e.EncodeFields(p, s.Z, s.Cover, s.BC()); err != nil {
			e.Close()
			return fmt.Errorf("raster: writing sampling layer: %v", err)
		}
	}
	e.Close()
	return nil
}
