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


package deck

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// ErrMalformedWind is returned for a wind table row that does not hold
// three numbers.
var ErrMalformedWind = errors.New("deck: malformed wind table")

// Ramp IDs of the wind speed and direction tables.
const (
	SpeedRamp     = "ws"
	DirectionRamp = "wd"
)

// WindPoint is the wind at time T (s): Speed in m/s, blowing from
// Direction in degrees clockwise from north.
type WindPoint struct {
	T, Speed, Direction float64
}

// LoadWind reads a wind table from a CSV file, or from the first sheet
// of an .xlsx workbook.
func LoadWind(path string) ([]WindPoint, error) {
	var rows [][]string
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("deck: opening wind table: %w", err)
		}
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", ErrMalformedWind, path)
		}
		for _, row := range f.Sheets[0].Rows {
			var rec []string
			for _, cell := range row.Cells {
				rec = append(rec, cell.Value)
			}
			rows = append(rows, rec)
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("deck: opening wind table: %w", err)
		}
		defer f.Close()
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("deck: reading wind table: %w", err)
		}
	}
	w, err := parseWind(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ParseWind reads a comma-delimited wind table: a header row followed by
// time, speed and direction rows.
func ParseWind(r io.Reader) ([]WindPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("deck: reading wind table: %w", err)
	}
	return parseWind(rows)
}

func parseWind(rows [][]string) ([]WindPoint, error) {
	var o []WindPoint
	for n, r := range rows {
		if n == 0 || len(r) == 0 || (len(r) == 1 && strings.TrimSpace(r[0]) == "") {
			continue
		}
		if len(r) < 3 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrMalformedWind, n+1, len(r))
		}
		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(r[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %q is not a number", ErrMalformedWind, n+1, r[i])
			}
			v[i] = f
		}
		o = append(o, WindPoint{T: v[0], Speed: v[1], Direction: v[2]})
	}
	return o, nil
}

// WindRamps returns the speed and direction ramps of w.
func WindRamps(w []WindPoint) (speed, direction Ramp) {
	speed.ID, direction.ID = SpeedRamp, DirectionRamp
	for _, p := range w {
		speed.Points = append(speed.Points, RampPoint{T: p.T, F: p.Speed})
		direction.Points = append(direction.Points, RampPoint{T: p.T, F: p.Direction})
	}
	return speed, direction
}
