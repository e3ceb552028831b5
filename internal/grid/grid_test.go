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

import (
	"image"
	"testing"
)

func TestLabelOrderingIsRowMajor(t *testing.T) {
	tests := []struct {
		lx, ly, hx, hy int // low and high pixel
	}{
		{0, 0, 1, 0},
		{5, 0, 0, 1},
		{100, 3, 2, 4},
		{65533, 10, 0, 11},
	}
	for _, test := range tests {
		lo, hi := LabelAt(test.lx, test.ly).Cell(), LabelAt(test.hx, test.hy).Cell()
		if lo >= hi {
			t.Errorf("got label (%d,%d)=%#x >= (%d,%d)=%#x; want smaller", test.lx, test.ly, lo, test.hx, test.hy, hi)
		}
	}
	if LabelAt(0, 0).Cell() == 0 || LabelAt(0, 0).IsBackground() {
		t.Errorf("got background label for pixel (0,0)")
	}
	if x, y := LabelOf(LabelAt(17, 42).Cell()).Root(); x != 17 || y != 42 {
		t.Errorf("got root (%d,%d); want (17,42)", x, y)
	}
}

func TestSignedEncoding(t *testing.T) {
	for _, v := range []Signed{0, 1, -1, 255, -256, 1000, -123456, SignedMax, SignedMin} {
		if got := SignedOf(v.Cell()); got != v {
			t.Errorf("got %d; want %d", got, v)
		}
	}
	if c := Signed(-5).Cell(); c.Channel(3) != 0xff || c&0xffffff != 5 {
		t.Errorf("got %#x; want sign byte and magnitude 5", c)
	}
	if got := SignedOf64(1 << 30); got != SignedMax {
		t.Errorf("got %d; want saturation at %d", got, SignedMax)
	}
	if got := SignedOf64(-1 << 30); got != SignedMin {
		t.Errorf("got %d; want saturation at %d", got, SignedMin)
	}
	if got := SignedMax.Add(1); got != SignedMax {
		t.Errorf("got %d; want saturated sum", got)
	}
	if got := Signed(-7).Add(10); got != 3 {
		t.Errorf("got %d; want 3", got)
	}
}

func TestCountsAddSaturates(t *testing.T) {
	got := Counts{Area: 10, Lum: 65000}.Add(Counts{Area: 5, Lum: 1000})
	if got.Area != 15 || got.Lum != 65535 {
		t.Errorf("got %+v; want area 15 and saturated luminance", got)
	}
	if c := CountsOf(got.Cell()); c != got {
		t.Errorf("got %+v; want %+v", c, got)
	}
}

func TestChannels(t *testing.T) {
	c := CellFromChannels(1, 2, 3, 4)
	for i := 0; i < 4; i++ {
		if c.Channel(i) != uint8(i+1) {
			t.Errorf("channel %d: got %d; want %d", i, c.Channel(i), i+1)
		}
	}
	if c.Lo() != 0x0201 || c.Hi() != 0x0403 {
		t.Errorf("got halves %#x %#x; want 0x201 0x403", c.Lo(), c.Hi())
	}
	if CellFromHalves(c.Lo(), c.Hi()) != c {
		t.Errorf("got %#x from halves; want %#x", CellFromHalves(c.Lo(), c.Hi()), c)
	}
	if IntensityOf(c) != 1 {
		t.Errorf("got intensity %d; want 1", IntensityOf(c))
	}
}

func TestGridBorderReadsZero(t *testing.T) {
	g, err := NewIntensityGrid(3, 2, []uint8{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if g.At(2, 1) != 6 || g.At(0, 1) != 4 {
		t.Errorf("got %d %d; want 6 4", g.At(2, 1), g.At(0, 1))
	}
	for _, p := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 2}, {-5, 7}} {
		if g.At(p[0], p[1]) != 0 {
			t.Errorf("got %d at (%d,%d); want zero outside", g.At(p[0], p[1]), p[0], p[1])
		}
	}
	if _, err := NewIntensityGrid(3, 2, []uint8{1}); err == nil {
		t.Errorf("got no error for short pixel data")
	}
	if _, err := NewGridFromCells(0, 2, nil); err == nil {
		t.Errorf("got no error for zero width")
	}
	g.Clear()
	for _, c := range g.Cells {
		if c != 0 {
			t.Fatalf("got %d after clear; want 0", c)
		}
	}
}

func TestBytesClipsRegion(t *testing.T) {
	g := NewGrid(4, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			g.Set(x, y, LabelAt(x, y).Cell())
		}
	}
	buf, r := g.Bytes(image.Rect(2, 1, 10, 10))
	if r != image.Rect(2, 1, 4, 3) {
		t.Fatalf("got region %v; want (2,1)-(4,3)", r)
	}
	if len(buf) != 2*2*CellBytes {
		t.Fatalf("got %d bytes; want 16", len(buf))
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got, want := CellFromBytes(buf, 2, x, y), LabelAt(x+2, y+1).Cell(); got != want {
				t.Errorf("got %#x at (%d,%d); want %#x", got, x, y, want)
			}
		}
	}
	if _, r := g.Bytes(image.Rect(5, 5, 6, 6)); !r.Empty() {
		t.Errorf("got region %v; want empty", r)
	}
}

func TestPingPong(t *testing.T) {
	a, b, c := NewGrid(1, 1), NewGrid(1, 1), NewGrid(1, 1)
	pp := NewPingPong(a, b)
	if pp.Read() != a || pp.Write() != b {
		t.Fatalf("got wrong initial roles")
	}
	pp.Swap()
	if pp.Read() != b || pp.Write() != a {
		t.Errorf("got wrong roles after swap")
	}
	if old := pp.Replace(c); old != b || pp.Read() != c || pp.Write() != a {
		t.Errorf("got wrong roles after replace")
	}
	cur, free := pp.Handoff()
	if cur != c || free != a {
		t.Errorf("got %p %p from handoff; want %p %p", cur, free, c, a)
	}
	if pp.Read() != nil || pp.Write() != nil {
		t.Errorf("got grids left after handoff")
	}
}
