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

package grid

// Largest supported image dimension. Labels store coordinates plus one in 16 bits
const MaxDimension = 65534

// A grid cell with four 8-bit channels, packed little-endian: channel 0 is the lowest byte.
// Stages reinterpret the same cell through the typed views below.
type Cell uint32

// Returns channel i in [0,3]
func (c Cell) Channel(i int) uint8 { return uint8(c >> (8 * uint(i))) }

// Returns the low 16 bits, channels 0 and 1
func (c Cell) Lo() uint16 { return uint16(c) }

// Returns the high 16 bits, channels 2 and 3
func (c Cell) Hi() uint16 { return uint16(c >> 16) }

// Creates a cell from two 16-bit halves
func CellFromHalves(lo, hi uint16) Cell { return Cell(lo) | Cell(hi)<<16 }

// Creates a cell from four channel values
func CellFromChannels(c0, c1, c2, c3 uint8) Cell {
	return Cell(c0) | Cell(c1)<<8 | Cell(c2)<<16 | Cell(c3)<<24
}

// Raw 8-bit intensity, stored in channel 0
type Intensity uint8

func (i Intensity) Cell() Cell { return Cell(i) }

func IntensityOf(c Cell) Intensity { return Intensity(c.Channel(0)) }

// A connected component label: the coordinate of the component's root pixel, plus one on each axis.
// The zero label marks background. X lives in the low half and Y in the high half, so comparing
// packed cells orders labels by y first, then x.
type Label struct {
	X, Y uint16
}

// Returns the label of the pixel at (x,y)
func LabelAt(x, y int) Label { return Label{uint16(x + 1), uint16(y + 1)} }

func LabelOf(c Cell) Label { return Label{c.Lo(), c.Hi()} }

func (l Label) Cell() Cell { return CellFromHalves(l.X, l.Y) }

func (l Label) IsBackground() bool { return l.X == 0 && l.Y == 0 }

// Returns the zero-based root pixel coordinate this label points to
func (l Label) Root() (x, y int) { return int(l.X) - 1, int(l.Y) - 1 }

// Pixel count and luminance sum of a component, as two saturating 16-bit accumulators
type Counts struct {
	Area, Lum uint16
}

func CountsOf(c Cell) Counts { return Counts{c.Lo(), c.Hi()} }

func (n Counts) Cell() Cell { return CellFromHalves(n.Area, n.Lum) }

// Returns the channel-wise saturating sum
func (n Counts) Add(o Counts) Counts {
	return Counts{addSat16(n.Area, o.Area), addSat16(n.Lum, o.Lum)}
}

func addSat16(a, b uint16) uint16 {
	s := uint32(a) + uint32(b)
	if s > 0xffff {
		return 0xffff
	}
	return uint16(s)
}

// Signed accumulator with a 24-bit magnitude. Encoded as sign and magnitude:
// the low 24 bits hold |v|, a non-zero top byte marks negative values.
type Signed int32

const (
	SignedMax  = Signed(1<<24 - 1)
	SignedMin  = -SignedMax
	signedMask = 1<<24 - 1
)

// Clamps v into the representable range
func SignedOf64(v int64) Signed {
	if v > int64(SignedMax) {
		return SignedMax
	}
	if v < int64(SignedMin) {
		return SignedMin
	}
	return Signed(v)
}

func SignedOf(c Cell) Signed {
	mag := Signed(c & signedMask)
	if c>>24 != 0 {
		return -mag
	}
	return mag
}

func (s Signed) Cell() Cell {
	if s < 0 {
		return Cell(-s)&signedMask | 0xff<<24
	}
	return Cell(s) & signedMask
}

// Returns the saturating sum
func (s Signed) Add(o Signed) Signed { return SignedOf64(int64(s) + int64(o)) }
