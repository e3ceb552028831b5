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

package median

import (
	"github.com/mlnoga/spotlight/internal/grid"
)

// 3x3 median filter over the intensity channel of the first source.
// Copies the outermost rows and columns unchanged.
type Filter3x3 struct{}

func (Filter3x3) Name() string { return "median3x3" }

func (Filter3x3) Eval(x, y int, src []grid.Reader) grid.Cell {
	in := src[0]
	w, h := in.Bounds()
	if x == 0 || y == 0 || x == w-1 || y == h-1 {
		return in.At(x, y)
	}
	var gathered [9]uint8
	j := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			gathered[j] = uint8(grid.IntensityOf(in.At(x+dx, y+dy)))
			j++
		}
	}
	return grid.Intensity(Median9(&gathered)).Cell()
}

// Calculates the median of nine values, modifying them in place.
// Sorting network from http://ndevilla.free.fr/median/median/src/optmed.c
func Median9(a *[9]uint8) uint8 {
	if a[0] > a[1] {
		a[0], a[1] = a[1], a[0]
	}
	if a[3] > a[4] {
		a[3], a[4] = a[4], a[3]
	}
	if a[6] > a[7] {
		a[6], a[7] = a[7], a[6]
	}
	if a[1] > a[2] {
		a[1], a[2] = a[2], a[1]
	}
	if a[4] > a[5] {
		a[4], a[5] = a[5], a[4]
	}
	if a[7] > a[8] {
		a[7], a[8] = a[8], a[7]
	}
	if a[0] > a[1] {
		a[0], a[1] = a[1], a[0]
	}
	if a[3] > a[4] {
		a[3], a[4] = a[4], a[3]
	}
	if a[6] > a[7] {
		a[6], a[7] = a[7], a[6]
	}
	if a[0] > a[3] {
		a[3] = a[0]
	}
	if a[3] > a[6] {
		a[6] = a[3]
	}
	if a[1] > a[4] {
		a[1], a[4] = a[4], a[1]
	}
	if a[4] > a[7] {
		a[4] = a[7]
	}
	if a[1] > a[4] {
		a[4] = a[1]
	}
	if a[5] > a[8] {
		a[5] = a[8]
	}
	if a[2] > a[5] {
		a[2] = a[5]
	}
	if a[2] > a[4] {
		a[2], a[4] = a[4], a[2]
	}
	if a[4] > a[6] {
		a[4] = a[6]
	}
	if a[2] > a[4] {
		a[4] = a[2]
	}
	return a[4]
}
