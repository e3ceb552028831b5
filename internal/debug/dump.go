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

package debug

import (
	"fmt"
	"io"

	"github.com/mlnoga/spotlight/internal/grid"
)

// Prints each cell of the grid as its two 16-bit halves, one grid row per line
func PrintLabels(w io.Writer, g *grid.Grid) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := g.At(x, y)
			fmt.Fprintf(w, "%3d,%3d ", c.Lo(), c.Hi())
		}
		fmt.Fprintln(w)
	}
}

// Prints each cell of the grid as a signed sum, one grid row per line
func PrintSigned(w io.Writer, g *grid.Grid) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			fmt.Fprintf(w, "%7d ", grid.SignedOf(g.At(x, y)))
		}
		fmt.Fprintln(w)
	}
}
