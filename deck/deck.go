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


// Package deck writes the text input deck of the fire simulator.
package deck

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ctessum/geom"

	"github.com/spatialmodel/geo2fds/domain"
	"github.com/spatialmodel/geo2fds/surface"
	"github.com/spatialmodel/geo2fds/terrain"
	"github.com/spatialmodel/geo2fds/utm"
)

// MultID is the ID of the multiplier that replicates the domain mesh.
const MultID = "Meshes"

// PathLen is the longest project path written to the deck header.
const PathLen = 60

// Deck holds everything written to an input deck.
type Deck struct {
	CHID    string
	Version string
	// Project is the path of the project the deck was generated for.
	Project string

	DEMLayer, LandUseLayer, FireLayer string

	// EPSG is the code of the UTM reference system; OriginUTM is the
	// domain origin in it.
	EPSG      string
	Origin    utm.GeographicPoint
	OriginUTM geom.Point
	Time      time.Time

	TBegin, TEnd float64
	// TerrainImage is the texture image draped on the terrain, if any.
	TerrainImage string

	Domain  *domain.Domain
	Catalog *surface.Catalog
	Wind    []WindPoint

	// BinaryFile is the name of the terrain geometry file. When empty,
	// the terrain is written as the Obst boxes.
	BinaryFile string
	Obst       []terrain.Box

	// Text is appended before the TAIL record.
	Text string
}

// Shorten trims path to at most n characters, keeping its end.
func Shorten(path string, n int) string {
	r := []rune(path)
	if len(r) <= n {
		return path
	}
	if n <= 3 {
		return string(r[len(r)-n:])
	}
	return "..." + string(r[len(r)-n+3:])
}

// OSMURL returns an OpenStreetMap link centered on p.
func OSMURL(p utm.GeographicPoint) string {
	return fmt.Sprintf("http://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=15/%.6f/%.6f",
		p.Lat, p.Lon, p.Lat, p.Lon)
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) printf(format string, a ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, a...)
}

func xb(b [6]float64) string {
	return fmt.Sprintf("%.3f,%.3f,%.3f,%.3f,%.3f,%.3f", b[0], b[1], b[2], b[3], b[4], b[5])
}

func boolean(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// Compose writes d to w.
func Compose(w io.Writer, d *Deck) error {
	if d.Domain == nil || d.Catalog == nil {
		return errors.New("deck: missing domain or surface catalog")
	}
	o := &writer{w: w}
	header(o, d)

	o.printf("\n! Run\n")
	o.printf("&HEAD CHID='%s', TITLE='Description of %s' /\n", d.CHID, d.CHID)
	o.printf("&TIME T_BEGIN=%s, T_END=%s /\n", num(d.TBegin), num(d.TEnd))
	o.printf("&MISC ORIGIN_LAT=%.7f, ORIGIN_LON=%.7f, NORTH_BEARING=0., TERRAIN_CASE=T", d.Origin.Lat, d.Origin.Lon)
	if d.TerrainImage != "" {
		o.printf(", TERRAIN_IMAGE='%s'", d.TerrainImage)
	}
	o.printf(" /\n")

	dom := d.Domain
	dx, dy := dom.MeshSize()
	o.printf("\n! Domain and its boundary conditions\n")
	o.printf("! %d×%d meshes of %d×%d×%d cells of %s m\n", dom.Nx, dom.Ny,
		dom.IJK[0], dom.IJK[1], dom.IJK[2], num(dom.CellSize))
	o.printf("&MULT ID='%s', DX=%.3f, DY=%.3f, I_UPPER=%d, J_UPPER=%d /\n", MultID, dx, dy, dom.Nx-1, dom.Ny-1)
	o.printf("&MESH IJK=%d,%d,%d, MULT_ID='%s', XB=%s /\n", dom.IJK[0], dom.IJK[1], dom.IJK[2], MultID, xb(dom.MeshXB()))
	for _, mb := range []string{"XMIN", "XMAX", "YMIN", "YMAX", "ZMAX"} {
		o.printf("&VENT MB='%s', SURF_ID='OPEN' /\n", mb)
	}

	z := dom.Z1 - dom.CellSize/2
	o.printf("\n! Wind probes at the origin\n")
	for _, q := range []string{"U", "V", "W"} {
		o.printf("&DEVC ID='Origin_%s', XYZ=0.,0.,%.3f, QUANTITY='%s-VELOCITY' /\n", q, z, q)
	}

	o.printf("\n! Wind\n")
	if len(d.Wind) == 0 {
		o.printf("! No wind table\n")
	} else {
		o.printf("&WIND SPEED=1., RAMP_SPEED='%s', RAMP_DIRECTION='%s' /\n", SpeedRamp, DirectionRamp)
		ws, wd := WindRamps(d.Wind)
		for _, r := range []Ramp{ws, wd} {
			if o.err == nil {
				_, o.err = r.WriteTo(w)
			}
		}
	}

	o.printf("\n! Boundary conditions\n")
	for _, l := range d.Catalog.Lines() {
		o.printf("%s\n", l)
	}

	o.printf("\n! Terrain\n")
	if d.BinaryFile != "" {
		o.printf("&GEOM ID='Terrain', SURF_ID=%s, BINARY_FILE='%s', IS_TERRAIN=T, EXTEND_TERRAIN=F /\n",
			d.Catalog.IDList(), d.BinaryFile)
	} else {
		for _, b := range d.Obst {
			o.printf("&OBST XB=%s, SURF_ID='%s' /\n", xb(b.XB), b.SurfID)
		}
	}

	if t := strings.TrimRight(d.Text, "\n"); t != "" {
		o.printf("\n%s\n", t)
	}
	o.printf("\n&TAIL /\n")
	if o.err != nil {
		return fmt.Errorf("deck: writing %s: %w", d.CHID, o.err)
	}
	return nil
}

func header(o *writer, d *Deck) {
	layer := func(name string) string {
		if name == "" {
			return "none"
		}
		return name
	}
	o.printf("! Generated by geo2fds %s\n", d.Version)
	o.printf("! Project: <%s>\n", Shorten(d.Project, PathLen))
	o.printf("! DEM layer: <%s>\n", layer(d.DEMLayer))
	o.printf("! Landuse layer: <%s>\n", layer(d.LandUseLayer))
	o.printf("! Fire layer: <%s>\n", layer(d.FireLayer))
	o.printf("! Reference system: %s\n", utm.Describe(d.EPSG))
	o.printf("! Domain origin: %.1f, %.1f\n", d.OriginUTM.X, d.OriginUTM.Y)
	o.printf("!   <%s>\n", OSMURL(d.Origin))
	o.printf("! Export OBST: %s\n", boolean(d.BinaryFile == ""))
	o.printf("! Date: <%s>\n", d.Time.Format("Mon Jan 2 15:04:05 2006"))
}
