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

package synth

import (
	"testing"
)

func TestGenerate(t *testing.T) {
	c := DefaultConfig()
	c.Profile = ProfileDisc
	f, err := Generate(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Stars) != c.Stars || len(f.HotPixels) != c.HotPixels {
		t.Errorf("got %d stars and %d hot pixels; want %d and %d", len(f.Stars), len(f.HotPixels), c.Stars, c.HotPixels)
	}
	for _, s := range f.Stars {
		if s.Radius < c.MinRadius || s.Radius > c.MaxRadius {
			t.Errorf("got radius %g; want in [%g,%g]", s.Radius, c.MinRadius, c.MaxRadius)
		}
		if v := f.Pixels[int(s.Y+0.5)*f.Width+int(s.X+0.5)]; v != c.Peak {
			t.Errorf("got center value %d at (%g,%g); want %d", v, s.X, s.Y, c.Peak)
		}
	}
	for _, h := range f.HotPixels {
		x, y := h[0], h[1]
		if f.Pixels[y*f.Width+x] != 255 {
			t.Errorf("got hot pixel value %d at (%d,%d); want 255", f.Pixels[y*f.Width+x], x, y)
		}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if (dx != 0 || dy != 0) && f.Pixels[(y+dy)*f.Width+x+dx] >= c.Noise {
					t.Errorf("got bright neighbour next to hot pixel (%d,%d)", x, y)
				}
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	c := DefaultConfig()
	a, err := Generate(c)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Generate(c)
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("got different pixel %d for the same seed", i)
		}
	}
	c.Seed++
	d, _ := Generate(c)
	if d.Stars[0] == a.Stars[0] && d.Pixels[0] == a.Pixels[0] && d.Pixels[1] == a.Pixels[1] {
		t.Errorf("got identical frames for different seeds")
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []func(*Config){
		func(c *Config) { c.Width = 0 },
		func(c *Config) { c.MinRadius = 0 },
		func(c *Config) { c.MaxRadius = c.MinRadius / 2 },
		func(c *Config) { c.Stars = 10000 },
	}
	for i, modify := range tests {
		c := DefaultConfig()
		modify(&c)
		if _, err := Generate(c); err == nil {
			t.Errorf("case %d: got no error for %+v", i, c)
		}
	}
}

func TestBlocks(t *testing.T) {
	pixels := Blocks(4, 3, 9, [4]int{1, 1, 3, 2})
	want := []uint8{0, 0, 0, 0, 0, 9, 9, 0, 0, 0, 0, 0}
	for i := range want {
		if pixels[i] != want[i] {
			t.Errorf("got %v; want %v", pixels, want)
			break
		}
	}
}
