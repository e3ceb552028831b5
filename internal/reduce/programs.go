// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package reduce

import (
	"github.com/mlnoga/spotlight/internal/grid"
)

// Scan direction of a compaction
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

func (a Axis) String() string {
	if a == Horizontal {
		return "h"
	}
	return "v"
}

// Returns the position of (x,y) along the axis
func (a Axis) pos(x, y int) int {
	if a == Horizontal {
		return x
	}
	return y
}

// Returns the number of cells along the axis
func (a Axis) length(r grid.Reader) int {
	w, h := r.Bounds()
	if a == Horizontal {
		return w
	}
	return h
}

// Samples the cell d steps further along the axis
func (a Axis) at(r grid.Reader, x, y, d int) grid.Cell {
	if a == Horizontal {
		return r.At(x+d, y)
	}
	return r.At(x, y+d)
}

// Keeps only labels pointing at their own pixel
type rootFilterProgram struct{}

func (rootFilterProgram) Name() string { return "rootFilter" }

func (rootFilterProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	c := src[0].At(x, y)
	if c != 0 && grid.LabelOf(c) == grid.LabelAt(x, y) {
		return c
	}
	return 0
}

func nonRoot(c grid.Cell) grid.Cell {
	if c == 0 {
		return 1
	}
	return 0
}

// First running sum pass: counts the non-root cells among the pixel and its predecessor.
// Source 0 holds the roots.
type sumInitProgram struct {
	Axis Axis
}

func (p sumInitProgram) Name() string { return "sumInit" + p.Axis.String() }

func (p sumInitProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	roots := src[0]
	v := nonRoot(roots.At(x, y))
	if p.Axis.pos(x, y) > 0 {
		v += nonRoot(p.Axis.at(roots, x, y, -1))
	}
	return v
}

// Doubling pass: adds the partial sum Step cells before. Source 0 holds the sums
type sumStepProgram struct {
	Axis Axis
	Step int
}

func (p sumStepProgram) Name() string { return "sumStep" + p.Axis.String() }

func (p sumStepProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	sums := src[0]
	v := sums.At(x, y)
	if p.Axis.pos(x, y) >= p.Step {
		v += p.Axis.at(sums, x, y, -p.Step)
	}
	return v
}

// One step of the binary search for the root that moves into a destination cell.
// Source 0 holds the roots, source 1 the running sums in the low half and the current search offset in the high half.
// The offset counts the leading positions s with sum(d+s)-s > 0. Positions beyond the end continue the last sum,
// which keeps that predicate prefix-closed. The final step emits the root found, or zero.
type searchProgram struct {
	Axis  Axis
	Step  int
	Final bool
}

func (p searchProgram) Name() string {
	if p.Final {
		return "searchFinal" + p.Axis.String()
	}
	return "searchStep" + p.Axis.String()
}

func (p searchProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	roots, state := src[0], src[1]
	n := p.Axis.length(state)
	d := p.Axis.pos(x, y)
	own := state.At(x, y)
	s := int(own.Hi())

	sum := func(offset int) int {
		if d+offset >= n {
			return int(p.Axis.at(state, x, y, n-1-d).Lo())
		}
		return int(p.Axis.at(state, x, y, offset).Lo())
	}
	if probe := s + p.Step - 1; sum(probe)-probe > 0 {
		s += p.Step
	}

	if !p.Final {
		return grid.CellFromHalves(own.Lo(), uint16(s))
	}
	if d+s >= n || sum(s) != s {
		return 0
	}
	return p.Axis.at(roots, x, y, s)
}
