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

package mesh

import "context"

// Progress polls a context for cancellation once every one percent of
// a loop's iterations.
type Progress struct {
	ctx  context.Context
	step int
}

// NewProgress returns a Progress for a loop of n iterations.
func NewProgress(ctx context.Context, n int) *Progress {
	s := n / 100
	if s < 1 {
		s = 1
	}
	return &Progress{ctx: ctx, step: s}
}

// Check returns the context's error if iteration i is a polling point
// and the context has been canceled.
func (p *Progress) Check(i int) error {
	if i%p.step != 0 {
		return nil
	}
	return p.ctx.Err()
}
