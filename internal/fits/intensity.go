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

package fits

import (
	"math"
)

// Converts the luminance to 8-bit intensities. Images with 8-bit integer data are taken
// as they are, others are scaled linearly from their minimum to their maximum.
func (f *Image) ToIntensity() []uint8 {
	if f.Stats == nil {
		f.UpdateStats()
	}
	size := f.Width() * f.Height()
	res := make([]uint8, size)

	min, scale := float32(0), float32(1)
	if f.Bitpix != 8 {
		min = f.Stats.Min
		scale = 0
		if f.Stats.Max > f.Stats.Min {
			scale = 255 / (f.Stats.Max - f.Stats.Min)
		}
	}
	for i := range res {
		v := (f.luminance(i) - min) * scale
		if math.IsNaN(float64(v)) || v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		res[i] = uint8(v + 0.5)
	}
	return res
}
