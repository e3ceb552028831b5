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
	"sort"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/pass"
)

func TestMedian9(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(42)
	for i := 0; i < 1000; i++ {
		var a [9]uint8
		for j := range a {
			a[j] = uint8(rng.Uint32n(256))
		}
		sorted := append([]uint8(nil), a[:]...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		want := sorted[4]
		if got := Median9(&a); got != want {
			t.Errorf("Median9(%v)=%d; want %d", sorted, got, want)
		}
	}
}

func TestFilter3x3RemovesHotPixel(t *testing.T) {
	pixels := make([]uint8, 5*5)
	pixels[2*5+2] = 255
	pixels[0] = 200 // border is copied
	in, err := grid.NewIntensityGrid(5, 5, pixels)
	if err != nil {
		t.Fatal(err)
	}
	out := grid.NewGrid(5, 5)
	e := pass.NewCPU(2, 64)
	if err := e.RunPass(Filter3x3{}, []*grid.Grid{in}, out); err != nil {
		t.Fatal(err)
	}
	if got := grid.IntensityOf(out.At(2, 2)); got != 0 {
		t.Errorf("center=%d; want 0", got)
	}
	if got := grid.IntensityOf(out.At(0, 0)); got != 200 {
		t.Errorf("corner=%d; want 200", got)
	}
}
