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
	"fmt"
	"io"
	"strconv"
)

// RampPoint is a time and value pair.
type RampPoint struct{ T, F float64 }

// Ramp is a named time series.
type Ramp struct {
	ID     string
	Points []RampPoint
}

// Len returns the number of points in the ramp.
func (r Ramp) Len() int { return len(r.Points) }

// XY returns the time and value at index i, where i < Len().
func (r Ramp) XY(i int) (float64, float64) { return r.Points[i].T, r.Points[i].F }

// WriteTo writes one RAMP record per point.
func (r Ramp) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for i := 0; i < r.Len(); i++ {
		t, f := r.XY(i)
		m, err := fmt.Fprintf(w, "&RAMP ID='%s', T=%s, F=%s /\n", r.ID, num(t), num(f))
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// num formats f with as few digits as needed and no exponent.
func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
