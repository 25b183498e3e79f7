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

// Package utm chooses a metric coordinate reference system for a
// geographic point and converts coordinates into and out of it.
package utm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/golang/geo/s2"
)

// EarthRadius is the radius of the Earth at the equator.
const EarthRadius = 6.3781e6 // meters

// LongLat is the proj4 definition of WGS84 geographic coordinates.
const LongLat = "+proj=longlat +datum=WGS84 +no_defs"

const webMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs"

var (
	// ErrOutOfRange is returned for a longitude or latitude outside of
	// the valid range.
	ErrOutOfRange = errors.New("utm: coordinate out of range")

	// ErrInvalidCRS is returned when a coordinate reference system
	// cannot be understood.
	ErrInvalidCRS = errors.New("utm: invalid coordinate reference system")
)

// GeographicPoint is a WGS84 location in decimal degrees.
type GeographicPoint struct {
	Lon, Lat float64
}

// LatLng returns p as an s2.LatLng.
func (p GeographicPoint) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// String formats p as "lon, lat".
func (p GeographicPoint) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lon, p.Lat)
}

// GreatCircle returns the distance in meters between a and b on a
// spherical Earth.
func GreatCircle(a, b GeographicPoint) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadius
}

// Zone returns the UTM zone number and hemisphere containing the
// point (lon, lat).
func Zone(lon, lat float64) (number int, north bool, err error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, false, fmt.Errorf("%w: lon=%g, lat=%g", ErrOutOfRange, lon, lat)
	}
	number = int(math.Floor((lon+180)/6)) + 1
	if number > 60 {
		number = 60 // lon == 180
	}
	switch {
	case lat >= 56 && lat < 64 && lon >= 3 && lon < 12:
		number = 32 // Norway
	case lat >= 72 && lat < 84 && lon >= 0 && lon < 42: // Svalbard
		switch {
		case lon < 9:
			number = 31
		case lon < 21:
			number = 33
		case lon < 33:
			number = 35
		default:
			number = 37
		}
	}
	return number, lat >= -1e-6, nil
}

// ZoneEPSG returns the EPSG code ("EPSG:326nn" in the northern
// hemisphere, "EPSG:327nn" in the southern) of the UTM zone
// containing (lon, lat).
func ZoneEPSG(lon, lat float64) (string, error) {
	n, north, err := Zone(lon, lat)
	if err != nil {
		return "", err
	}
	return epsg(n, north), nil
}

func epsg(zone int, north bool) string {
	if north {
		return fmt.Sprintf("EPSG:326%02d", zone)
	}
	return fmt.Sprintf("EPSG:327%02d", zone)
}

// parseEPSG splits a UTM EPSG code into its zone number and hemisphere.
func parseEPSG(code string) (zone int, north, ok bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !strings.HasPrefix(c, "EPSG:") {
		return 0, false, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(c, "EPSG:"))
	if err != nil {
		return 0, false, false
	}
	switch {
	case n > 32600 && n <= 32660:
		return n - 32600, true, true
	case n > 32700 && n <= 32760:
		return n - 32700, false, true
	}
	return 0, false, false
}

// Proj4 returns the proj4 definition of a UTM EPSG code.
func Proj4(code string) (string, error) {
	zone, north, ok := parseEPSG(code)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a WGS84 UTM zone", ErrInvalidCRS, code)
	}
	s := fmt.Sprintf("+proj=utm +zone=%d", zone)
	if !north {
		s += " +south"
	}
	return s + " +datum=WGS84 +units=m +no_defs", nil
}

// SR returns the spatial reference of a UTM EPSG code.
func SR(code string) (*proj.SR, error) {
	def, err := Proj4(code)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("utm: parsing %s: %v", code, err)
	}
	return sr, nil
}

// Describe returns a human readable name for a UTM EPSG code, for
// example "WGS 84 / UTM zone 32N".
func Describe(code string) string {
	zone, north, ok := parseEPSG(code)
	if !ok {
		return code
	}
	h := "N"
	if !north {
		h = "S"
	}
	return fmt.Sprintf("WGS 84 / UTM zone %d%s", zone, h)
}

// ParseCRS returns the spatial reference described by s, which may be
// one of "EPSG:4326", "EPSG:3857", a WGS84 UTM EPSG code, or a proj4 or
// WKT definition.
func ParseCRS(s string) (*proj.SR, error) {
	s = strings.TrimSpace(s)
	var def string
	switch strings.ToUpper(s) {
	case "":
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidCRS)
	case "EPSG:4326", "CRS:84", "WGS84":
		def = LongLat
	case "EPSG:3857", "EPSG:900913":
		def = webMercator
	default:
		if _, _, ok := parseEPSG(s); ok {
			return SR(s)
		}
		if strings.HasPrefix(strings.ToUpper(s), "EPSG:") {
			return nil, fmt.Errorf("%w: unsupported code %s", ErrInvalidCRS, s)
		}
		def = s
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCRS, err)
	}
	return sr, nil
}

// IsLongLat reports whether s describes WGS84 geographic coordinates.
func IsLongLat(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EPSG:4326", "CRS:84", "WGS84", strings.ToUpper(LongLat):
		return true
	}
	return false
}
