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

package label

import (
	"github.com/mlnoga/spotlight/internal/grid"
)

// Offsets of the neighbours later in raster order. Together with the pixel itself they form the forward mask,
// their negation plus the pixel itself forms the backward mask.
var forwardMask = [4][2]int{{1, 0}, {-1, 1}, {0, 1}, {1, 1}}

// All eight neighbours
var neighbours = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

// Thresholds the intensity image in source 0 and gives each surviving pixel its own label.
// Pixels without any neighbour at or above the threshold are dropped as hot pixels.
type thresholdProgram struct {
	Threshold float32 // normalized to [0,1]
}

func (p thresholdProgram) Name() string { return "threshold" }

func (p thresholdProgram) above(c grid.Cell) bool {
	return float32(grid.IntensityOf(c))/255 >= p.Threshold
}

func (p thresholdProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	img := src[0]
	if !p.above(img.At(x, y)) {
		return 0
	}
	for _, n := range neighbours {
		if p.above(img.At(x+n[0], y+n[1])) {
			return grid.LabelAt(x, y).Cell()
		}
	}
	return 0
}

// Assigns each labelled pixel the highest label in its forward or backward mask
type mergeProgram struct {
	Forward bool
}

func (p mergeProgram) Name() string {
	if p.Forward {
		return "mergeForward"
	}
	return "mergeBackward"
}

func (p mergeProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	labels := src[0]
	best := labels.At(x, y)
	if best == 0 {
		return 0
	}
	f := 1
	if !p.Forward {
		f = -1
	}
	for _, o := range forwardMask {
		if c := labels.At(x+f*o[0], y+f*o[1]); c > best {
			best = c
		}
	}
	return best
}

// Replaces each label by the label found at the pixel it points to
type consolidateProgram struct{}

func (consolidateProgram) Name() string { return "consolidate" }

func (consolidateProgram) Eval(x, y int, src []grid.Reader) grid.Cell {
	labels := src[0]
	c := labels.At(x, y)
	if c == 0 {
		return 0
	}
	rx, ry := grid.LabelOf(c).Root()
	if target := labels.At(rx, ry); target != 0 {
		return target
	}
	return c
}
