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

package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/spot"
	"github.com/mlnoga/spotlight/internal/synth"
)

func discField(t *testing.T, seed uint32, minRadius float32) *synth.Frame {
	t.Helper()
	c := synth.DefaultConfig()
	c.Profile, c.MinRadius, c.Seed = synth.ProfileDisc, minRadius, seed
	f, err := synth.Generate(c)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func truth(f *synth.Frame) []spot.Point2D {
	pts := make([]spot.Point2D, len(f.Stars))
	for i, s := range f.Stars {
		pts[i] = spot.Point2D{X: s.X, Y: s.Y, Index: i}
	}
	return pts
}

func TestBlock(t *testing.T) {
	pixels := synth.Blocks(8, 8, 200, [4]int{3, 3, 5, 5})
	res, err := New(DefaultConfig(), pass.NewCPU(2, 16), nil).Run(1, 8, 8, pixels)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Spots) != 1 {
		t.Fatalf("got %d spots; want 1", len(res.Spots))
	}
	if s := res.Spots[0]; s.X != 3.5 || s.Y != 3.5 || s.Area != 4 || s.Luminance != 800 {
		t.Errorf("got %+v; want area 4, luminance 800 at (3.5,3.5)", s)
	}
	if res.Threshold != DefaultConfig().Label.Threshold {
		t.Errorf("got threshold %g; want default %g", res.Threshold, DefaultConfig().Label.Threshold)
	}
}

func TestEmptyImage(t *testing.T) {
	res, err := New(DefaultConfig(), pass.NewCPU(2, 16), nil).Run(1, 16, 9, make([]uint8, 16*9))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Spots) != 0 {
		t.Errorf("got %d spots in a black image; want 0", len(res.Spots))
	}
}

func TestStarField(t *testing.T) {
	for seed := uint32(1); seed <= 3; seed++ {
		f := discField(t, seed, 1.5)
		exec := pass.NewCPU(4, 64)
		res, err := New(DefaultConfig(), exec, nil).Run(int(seed), f.Width, f.Height, f.Pixels)
		if err != nil {
			t.Fatal(err)
		}
		m := spot.Match(res.Spots, truth(f), 1.5)
		if m.Matched != len(f.Stars) || m.Spurious != 0 {
			t.Errorf("seed %d: got %+v; want all %d stars matched without spurious spots", seed, m, len(f.Stars))
		}
		if exec.Allocated() != 0 {
			t.Errorf("seed %d: got %d bytes still allocated; want 0", seed, exec.Allocated())
		}
	}
}

func TestThreadCountDoesNotChangeResult(t *testing.T) {
	f := discField(t, 5, 1.5)
	var want []spot.Spot
	for _, threads := range []int{1, 3, 16} {
		res, err := New(DefaultConfig(), pass.NewCPU(threads, 64), nil).Run(1, f.Width, f.Height, f.Pixels)
		if err != nil {
			t.Fatal(err)
		}
		if want == nil {
			want = res.Spots
			continue
		}
		if len(res.Spots) != len(want) {
			t.Fatalf("%d threads: got %d spots; want %d", threads, len(res.Spots), len(want))
		}
		for i := range want {
			if res.Spots[i] != want[i] {
				t.Errorf("%d threads: spot %d: got %+v; want %+v", threads, i, res.Spots[i], want[i])
			}
		}
	}
}

func TestAutoSigmaAndMedian(t *testing.T) {
	f := discField(t, 2, 2.5)
	c := DefaultConfig()
	c.AutoSigma, c.Median = 5, true
	res, err := New(c, pass.NewCPU(4, 64), nil).Run(1, f.Width, f.Height, f.Pixels)
	if err != nil {
		t.Fatal(err)
	}
	if res.Background == nil {
		t.Fatalf("got no background estimate")
	}
	if res.Threshold <= 24.0/255 || res.Threshold >= 230.0/255 {
		t.Errorf("got threshold %g; want between noise and star peak", res.Threshold)
	}
	if m := spot.Match(res.Spots, truth(f), 1.5); m.Matched != len(f.Stars) {
		t.Errorf("got %+v; want all %d stars matched", m, len(f.Stars))
	}
}

func TestDimensionErrors(t *testing.T) {
	tests := []struct {
		w, h   int
		pixels []uint8
	}{
		{0, 4, nil},
		{4, -1, nil},
		{grid.MaxDimension + 1, 1, nil},
		{4, 4, make([]uint8, 15)},
	}
	p := New(DefaultConfig(), pass.NewCPU(1, 16), nil)
	for _, test := range tests {
		if _, err := p.Run(1, test.w, test.h, test.pixels); !errors.Is(err, pass.ErrDimensions) {
			t.Errorf("%dx%d with %d pixels: got %v; want %v", test.w, test.h, len(test.pixels), err, pass.ErrDimensions)
		}
	}
}

func TestBudgetExceeded(t *testing.T) {
	f := discField(t, 1, 1.5)
	_, err := New(DefaultConfig(), pass.NewCPU(1, 1), nil).Run(1, f.Width, f.Height, f.Pixels)
	if !errors.Is(err, pass.ErrBudget) {
		t.Errorf("got %v; want %v", err, pass.ErrBudget)
	}
}

func TestDebugOutput(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig()
	c.DumpGrids, c.Palette = true, "hash"
	c.LabelImage = filepath.Join(dir, "labels%d.png")
	pixels := synth.Blocks(8, 6, 200, [4]int{1, 1, 3, 3})
	var log bytes.Buffer
	if _, err := New(c, pass.NewCPU(1, 16), &log).Run(7, 8, 6, pixels); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"7: *** LABEL PHASE START", "7: Labels:", "7: Result table labels:", "7: Found 1 spots"} {
		if !strings.Contains(log.String(), want) {
			t.Errorf("got log without %q", want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "labels7.png")); err != nil {
		t.Errorf("got %v; want label image", err)
	}

	c.Palette = "rainbow"
	if _, err := New(c, pass.NewCPU(1, 16), nil).Run(7, 8, 6, pixels); err == nil {
		t.Errorf("got no error for unknown palette")
	}
}

func TestTableOverflowIsLogged(t *testing.T) {
	// six two pixel components whose roots share row 1
	var rects [][4]int
	for i := 0; i < 6; i++ {
		rects = append(rects, [4]int{3 * i, 0, 3*i + 1, 2})
	}
	c := DefaultConfig()
	c.Stats.Offset, c.Stats.MinArea = 4, 0
	var log bytes.Buffer
	res, err := New(c, pass.NewCPU(2, 16), &log).Run(5, 18, 4, synth.Blocks(18, 4, 200, rects...))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Spots) != 4 || res.Dropped != 2 {
		t.Errorf("got %d spots and %d dropped; want 4 and 2", len(res.Spots), res.Dropped)
	}
	if want := "5: Warning: 2 spots beyond 4 per table row dropped"; !strings.Contains(log.String(), want) {
		t.Errorf("got log without %q", want)
	}
}

func TestExpandID(t *testing.T) {
	tests := []struct {
		pattern string
		id      int
		want    string
	}{
		{"spots%d.csv", 12, "spots12.csv"},
		{"spots.csv", 12, "spots.csv"},
		{"", 3, ""},
	}
	for _, test := range tests {
		if got := ExpandID(test.pattern, test.id); got != test.want {
			t.Errorf("%q %d: got %q; want %q", test.pattern, test.id, got, test.want)
		}
	}
}
