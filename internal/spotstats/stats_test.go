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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/label"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/reduce"
	"github.com/mlnoga/spotlight/internal/spot"
	"github.com/mlnoga/spotlight/internal/synth"
)

// Runs labeling, reduction and statistics on the given pixels
func runStats(t *testing.T, c Config, width, height int, pixels []uint8) ([]spot.Spot, *grid.Grid, int) {
	t.Helper()
	exec := pass.NewCPU(4, 64)
	img, err := grid.NewIntensityGrid(width, height, pixels)
	if err != nil {
		t.Fatal(err)
	}
	labels, _, err := label.NewEngine(label.DefaultConfig(), exec).Run(img)
	if err != nil {
		t.Fatal(err)
	}
	compacted, _, _, err := reduce.NewEngine(exec).Run(labels)
	if err != nil {
		t.Fatal(err)
	}
	before := exec.Allocated()
	e := NewEngine(c, exec)
	spots, err := e.Run(img, labels, compacted)
	if err != nil {
		t.Fatal(err)
	}
	if exec.Allocated() != before {
		t.Errorf("got %d bytes allocated after stats; want %d", exec.Allocated(), before)
	}
	return spots, labels, e.Dropped
}

// Host reference: per component area, luminance and centroid sums, keyed by root
func hostStats(labels *grid.Grid, pixels []uint8) map[[2]int32]spot.Spot {
	res := map[[2]int32]spot.Spot{}
	for y := 0; y < labels.Height; y++ {
		for x := 0; x < labels.Width; x++ {
			c := labels.At(x, y)
			if c == 0 {
				continue
			}
			rx, ry := grid.LabelOf(c).Root()
			key := [2]int32{int32(rx), int32(ry)}
			s := res[key]
			v := int32(pixels[y*labels.Width+x])
			s.RootX, s.RootY = key[0], key[1]
			s.Area++
			s.Luminance += uint32(v)
			s.SumX += int32(rx-x) * v
			s.SumY += int32(ry-y) * v
			res[key] = s
		}
	}
	return res
}

func TestSingleBlock(t *testing.T) {
	pixels := synth.Blocks(8, 8, 200, [4]int{3, 3, 5, 5})
	spots, _, _ := runStats(t, DefaultConfig(), 8, 8, pixels)
	if len(spots) != 1 {
		t.Fatalf("got %d spots; want 1", len(spots))
	}
	s := spots[0]
	if s.Area != 4 || s.Luminance != 800 || s.RootX != 4 || s.RootY != 4 {
		t.Errorf("got area %d lum %d root (%d,%d); want area 4 lum 800 root (4,4)", s.Area, s.Luminance, s.RootX, s.RootY)
	}
	if s.X != 3.5 || s.Y != 3.5 {
		t.Errorf("got centroid (%g,%g); want (3.5,3.5)", s.X, s.Y)
	}
}

func TestSquareCentroid(t *testing.T) {
	pixels := synth.Blocks(12, 12, 255, [4]int{2, 4, 7, 9})
	spots, _, _ := runStats(t, DefaultConfig(), 12, 12, pixels)
	if len(spots) != 1 {
		t.Fatalf("got %d spots; want 1", len(spots))
	}
	if s := spots[0]; s.Area != 25 || s.X != 4 || s.Y != 6 {
		t.Errorf("got area %d centroid (%g,%g); want 25 at (4,6)", s.Area, s.X, s.Y)
	}
}

func TestRandomRectanglesMatchHost(t *testing.T) {
	const cell, cols, rows = 10, 9, 7
	for seed := uint32(1); seed <= 4; seed++ {
		rng := fastrand.RNG{}
		rng.Seed(seed)
		width, height := cols*cell, rows*cell
		pixels := make([]uint8, width*height)
		for k := 0; k < cols*rows; k++ {
			if rng.Uint32n(3) == 0 {
				continue
			}
			x0 := k%cols*cell + 1 + int(rng.Uint32n(2))
			y0 := k/cols*cell + 1 + int(rng.Uint32n(2))
			w, h := 2+int(rng.Uint32n(5)), 2+int(rng.Uint32n(5))
			for y := y0; y < y0+h; y++ {
				for x := x0; x < x0+w; x++ {
					pixels[y*width+x] = uint8(128 + rng.Uint32n(128))
				}
			}
		}

		c := DefaultConfig()
		c.MinArea = 0
		spots, labels, _ := runStats(t, c, width, height, pixels)
		want := hostStats(labels, pixels)
		if len(spots) != len(want) {
			t.Errorf("seed %d: got %d spots; want %d", seed, len(spots), len(want))
		}
		for _, s := range spots {
			w, ok := want[[2]int32{s.RootX, s.RootY}]
			if !ok {
				t.Errorf("seed %d: got unknown root (%d,%d)", seed, s.RootX, s.RootY)
				continue
			}
			if s.Area != w.Area || s.Luminance != w.Luminance || s.SumX != w.SumX || s.SumY != w.SumY {
				t.Errorf("seed %d: got %+v; want %+v", seed, s, w)
			}
		}
	}
}

func TestConcaveSpotNeedsFill(t *testing.T) {
	// a thick C opening to the right. Without fill, the empty notch cuts the
	// window chain from the root at (8,10) to the upper arm.
	pixels := synth.Blocks(12, 12, 200, [4]int{1, 1, 9, 3}, [4]int{1, 3, 3, 9}, [4]int{1, 9, 9, 11})
	tests := []struct {
		fill int
		area uint32
	}{
		{0, 36},
		{1, 36},
		{2, 44},
	}
	for _, test := range tests {
		c := DefaultConfig()
		c.FillIterations = test.fill
		spots, labels, _ := runStats(t, c, 12, 12, pixels)
		if len(spots) != 1 {
			t.Fatalf("fill %d: got %d spots; want 1", test.fill, len(spots))
		}
		if s := spots[0]; s.RootX != 8 || s.RootY != 10 || s.Area != test.area {
			t.Errorf("fill %d: got root (%d,%d) area %d; want (8,10) area %d", test.fill, s.RootX, s.RootY, s.Area, test.area)
		}
		if test.fill == 2 {
			want := hostStats(labels, pixels)[[2]int32{8, 10}]
			if s := spots[0]; s.Area != want.Area || s.Luminance != want.Luminance || s.SumX != want.SumX || s.SumY != want.SumY {
				t.Errorf("got %+v; want %+v", s, want)
			}
		}
	}
}

func TestMinArea(t *testing.T) {
	pixels := synth.Blocks(16, 8, 200, [4]int{1, 1, 3, 2}, [4]int{8, 2, 11, 5})
	c := DefaultConfig()
	c.MinArea = 3
	spots, _, _ := runStats(t, c, 16, 8, pixels)
	if len(spots) != 1 || spots[0].Area != 9 {
		t.Errorf("got %+v; want one spot of area 9", spots)
	}
	c.MinArea = 0
	spots, _, _ = runStats(t, c, 16, 8, pixels)
	if len(spots) != 2 {
		t.Errorf("got %d spots without area limit; want 2", len(spots))
	}
}

func TestTableOverflowDropsExtraRoots(t *testing.T) {
	// six two pixel components whose roots share row 1
	var rects [][4]int
	for i := 0; i < 6; i++ {
		rects = append(rects, [4]int{3 * i, 0, 3*i + 1, 2})
	}
	pixels := synth.Blocks(18, 4, 200, rects...)
	c := DefaultConfig()
	c.Offset, c.MinArea = 4, 0
	spots, _, dropped := runStats(t, c, 18, 4, pixels)
	if dropped != 2 {
		t.Errorf("got %d dropped roots; want 2", dropped)
	}
	if len(spots) != 4 {
		t.Fatalf("got %d spots; want 4", len(spots))
	}
	for i, s := range spots {
		if s.RootX != int32(3*i) || s.RootY != 1 || s.Area != 2 {
			t.Errorf("spot %d: got %+v; want root (%d,1) area 2", i, s, 3*i)
		}
	}
}

func putCell(buf []byte, width, x, y int, c grid.Cell) {
	binary.LittleEndian.PutUint32(buf[(y*width+x)*grid.CellBytes:], uint32(c))
}

func TestExtract(t *testing.T) {
	const offset, height = 2, 2
	width := 4 * offset
	table := make([]byte, width*height*grid.CellBytes)
	entries := []struct {
		x, y   int
		l      grid.Label
		counts grid.Counts
		sx, sy int64
	}{
		{0, 0, grid.LabelAt(10, 20), grid.Counts{Area: 5, Lum: 100}, 50, -25},
		{1, 0, grid.LabelAt(3, 4), grid.Counts{Area: 2, Lum: 60}, 0, 0},   // too small
		{0, 1, grid.LabelAt(7, 7), grid.Counts{Area: 9, Lum: 0}, 0, 0},    // dark
		{1, 1, grid.LabelAt(0, 0), grid.Counts{Area: 3, Lum: 300}, -150, 0},
	}
	for _, e := range entries {
		putCell(table, width, e.x, e.y, e.l.Cell())
		putCell(table, width, e.x+offset, e.y, e.counts.Cell())
		putCell(table, width, e.x+2*offset, e.y, grid.SignedOf64(e.sx).Cell())
		putCell(table, width, e.x+3*offset, e.y, grid.SignedOf64(e.sy).Cell())
	}
	spots := Extract(table, width, height, offset, 3)
	want := []spot.Spot{
		{X: 9.5, Y: 20.25, RootX: 10, RootY: 20, Area: 5, Luminance: 100, SumX: 50, SumY: -25},
		{X: 0.5, Y: 0, RootX: 0, RootY: 0, Area: 3, Luminance: 300, SumX: -150},
	}
	if len(spots) != len(want) {
		t.Fatalf("got %d spots; want %d", len(spots), len(want))
	}
	for i := range want {
		if spots[i] != want[i] {
			t.Errorf("spot %d: got %+v; want %+v", i, spots[i], want[i])
		}
	}
}

func TestQuadrantsPartitionPlane(t *testing.T) {
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			n := 0
			for _, q := range Quadrants {
				if q.Contains(5+dx, 5+dy, 5, 5) {
					n++
				}
			}
			if n != 1 {
				t.Errorf("offset (%d,%d): got %d quadrants; want 1", dx, dy, n)
			}
		}
	}
}

func TestFillPicksNearestRoot(t *testing.T) {
	labels := grid.NewGrid(6, 6)
	near, far := grid.LabelAt(2, 1), grid.LabelAt(5, 5)
	labels.Set(2, 1, near.Cell())
	labels.Set(1, 2, far.Cell())
	p := fillProgram{Quadrant: Quadrant{1, 1}, Step: 1}
	if got := p.Eval(1, 1, []grid.Reader{labels}); got != near.Cell() {
		t.Errorf("got %v; want nearest root %v", grid.LabelOf(got), near)
	}
	if got := p.Eval(2, 1, []grid.Reader{labels}); got != near.Cell() {
		t.Errorf("got %v for labelled cell; want it unchanged", grid.LabelOf(got))
	}
	if got := p.Eval(4, 4, []grid.Reader{labels}); got != 0 {
		t.Errorf("got %v with no labelled corner; want background", grid.LabelOf(got))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		c    Config
		want bool
	}{
		{DefaultConfig(), true},
		{Config{Offset: 0, WindowPasses: 4}, false},
		{Config{Offset: 10, FillIterations: -1}, false},
		{Config{Offset: 10, WindowPasses: 16}, false},
	}
	for _, test := range tests {
		if got := test.c.Validate() == nil; got != test.want {
			t.Errorf("%+v: got valid %v; want %v", test.c, got, test.want)
		}
	}
}

func TestDimensionLimit(t *testing.T) {
	exec := pass.NewCPU(2, 64)
	w := grid.MaxDimension + 1
	g := grid.NewGrid(w, 2)
	g.Set(w-1, 1, grid.CellFromHalves(0xffff, 2))
	if _, err := NewEngine(DefaultConfig(), exec).RunTable(g, g, g); !errors.Is(err, pass.ErrDimensions) {
		t.Errorf("got %v; want %v", err, pass.ErrDimensions)
	}
	if len(exec.Timings()) != 0 || exec.Allocated() != 0 {
		t.Errorf("got %d programs run and %d bytes allocated; want none", len(exec.Timings()), exec.Allocated())
	}
}
