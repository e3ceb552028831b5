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

package spotstats

import (
	"github.com/mlnoga/spotlight/internal/grid"
)

// One of the four diagonal directions. Each component is split into four quadrants around its root,
// and every quadrant is filled and summed separately.
type Quadrant struct {
	FX, FY int // +1 or -1
}

// Quadrants in processing order
var Quadrants = [4]Quadrant{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}}

func (q Quadrant) String() string {
	sign := func(f int) string {
		if f > 0 {
			return "+"
		}
		return "-"
	}
	return sign(q.FX) + sign(q.FY)
}

// Returns true if the pixel at (x,y) belongs to this quadrant of the root at (rx,ry).
// Zero offsets count as positive, so the four quadrants partition the plane.
func (q Quadrant) Contains(x, y, rx, ry int) bool {
	dx, dy := x-rx, y-ry
	return (dx >= 0) == (q.FX > 0) && (dy >= 0) == (q.FY > 0)
}

// Corner offsets sampled at the given step: along x, along y and diagonally
func (q Quadrant) corners(step int) [3][2]int {
	return [3][2]int{{q.FX * step, 0}, {0, q.FY * step}, {q.FX * step, q.FY * step}}
}

// Extends labels into unlabelled cells. Each zero cell samples three cells at the given step
// in the quadrant direction, and adopts the label whose root is nearest. Source 0 holds the labels.
type fillProgram struct {
	Quadrant Quadrant
	Step     int
}

func (p fillProgram) Name() string { return "fill" }

func (p fillProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	labels := src[0]
	if c := labels.At(x, y); c != 0 {
		return c
	}
	best, bestDsq := grid.Cell(0), 0
	for _, o := range p.Quadrant.corners(p.Step) {
		c := labels.At(x+o[0], y+o[1])
		if c == 0 {
			continue
		}
		rx, ry := grid.LabelOf(c).Root()
		dsq := (rx-x)*(rx-x) + (ry-y)*(ry-y)
		if best == 0 || dsq < bestDsq || (dsq == bestDsq && c > best) {
			best, bestDsq = c, dsq
		}
	}
	return best
}

// Kind of value accumulated by the doubling window passes
type Measure int

const (
	MeasureCount     Measure = iota // area and luminance
	MeasureCentroidX                // signed sum of (rx-x)*intensity
	MeasureCentroidY                // signed sum of (ry-y)*intensity
)

func (m Measure) String() string {
	switch m {
	case MeasureCount:
		return "count"
	case MeasureCentroidX:
		return "centroidX"
	default:
		return "centroidY"
	}
}

// Returns the sum of two cells holding this measure
func (m Measure) add(a, b grid.Cell) grid.Cell {
	if m == MeasureCount {
		return grid.CountsOf(a).Add(grid.CountsOf(b)).Cell()
	}
	return grid.SignedOf(a).Add(grid.SignedOf(b)).Cell()
}

// Initial value of each labelled pixel in the quadrant, zero elsewhere.
// Source 0 holds the labels, source 1 the intensities.
type measureInitProgram struct {
	Quadrant Quadrant
	Measure  Measure
}

func (p measureInitProgram) Name() string { return p.Measure.String() + "Init" }

func (p measureInitProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	c := src[0].At(x, y)
	if c == 0 {
		return 0
	}
	rx, ry := grid.LabelOf(c).Root()
	if !p.Quadrant.Contains(x, y, rx, ry) {
		return 0
	}
	lum := int64(grid.IntensityOf(src[1].At(x, y)))
	switch p.Measure {
	case MeasureCount:
		return grid.Counts{Area: 1, Lum: uint16(lum)}.Cell()
	case MeasureCentroidX:
		return grid.SignedOf64(int64(rx-x) * lum).Cell()
	default:
		return grid.SignedOf64(int64(ry-y) * lum).Cell()
	}
}

// Doubling window pass: adds the partial sums of the three corner cells at the given step,
// if they carry the same filled label. Source 0 holds the filled labels, source 1 the partial sums.
type windowProgram struct {
	Quadrant Quadrant
	Measure  Measure
	Step     int
}

func (p windowProgram) Name() string { return p.Measure.String() + "Window" }

func (p windowProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	labels, sums := src[0], src[1]
	own := labels.At(x, y)
	if own == 0 {
		return 0
	}
	v := sums.At(x, y)
	for _, o := range p.Quadrant.corners(p.Step) {
		if labels.At(x+o[0], y+o[1]) == own {
			v = p.Measure.add(v, sums.At(x+o[0], y+o[1]))
		}
	}
	return v
}

// Copies the compacted root table into the label columns of the result table. Source 0 holds the compacted grid
type tableInitProgram struct {
	Offset int
}

func (p tableInitProgram) Name() string { return "tableInit" }

func (p tableInitProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	if x >= p.Offset {
		return 0
	}
	return src[0].At(x, y)
}

// Result table column slots, in multiples of the offset
const (
	slotLabel = iota
	slotCounts
	slotSumX
	slotSumY
)

func slotOf(m Measure) int {
	switch m {
	case MeasureCount:
		return slotCounts
	case MeasureCentroidX:
		return slotSumX
	default:
		return slotSumY
	}
}

// Looks up the aggregate at each table entry's root pixel and stores it in the entry's slot.
// Source 0 holds the result table, source 1 the aggregates.
type saveProgram struct {
	Offset  int
	Measure Measure
}

func (p saveProgram) Name() string { return "save" }

func (p saveProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	slot := slotOf(p.Measure)
	if x < slot*p.Offset || x >= (slot+1)*p.Offset {
		return 0
	}
	c := src[0].At(x-slot*p.Offset, y)
	if c == 0 {
		return 0
	}
	rx, ry := grid.LabelOf(c).Root()
	return src[1].At(rx, ry)
}

// Adds saved aggregates into the slot of the result table, leaving all other columns intact.
// Source 0 holds the result table, source 1 the saved aggregates.
type blendProgram struct {
	Offset  int
	Measure Measure
}

func (p blendProgram) Name() string { return "blend" }

func (p blendProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	c := src[0].At(x, y)
	slot := slotOf(p.Measure)
	if x < slot*p.Offset || x >= (slot+1)*p.Offset {
		return c
	}
	return p.Measure.add(c, src[1].At(x, y))
}
