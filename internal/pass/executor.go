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

package pass

import (
	"errors"
	"fmt"
	"image"

	"github.com/mlnoga/spotlight/internal/grid"
)

var (
	ErrDimensions = errors.New("invalid grid dimensions")
	ErrNoProgram  = errors.New("no program bound")
	ErrNoGrid     = errors.New("nil grid bound")
	ErrAlias      = errors.New("destination grid is also bound as a source")
	ErrBudget     = errors.New("grid allocation exceeds memory budget")
	ErrRegion     = errors.New("empty readback region")
)

// A per-cell program. Eval computes the new value of destination cell (x,y)
// from the bound sources only. Uniforms are fields of the implementing type.
type Program interface {
	Name() string
	Eval(x, y int, src []grid.Reader) grid.Cell
}

// Adapts a plain function into a Program
type ProgramFunc struct {
	ID string
	F  func(x, y int, src []grid.Reader) grid.Cell
}

func (p ProgramFunc) Name() string { return p.ID }

func (p ProgramFunc) Eval(x, y int, src []grid.Reader) grid.Cell { return p.F(x, y, src) }

// Executes full passes of per-cell programs over grids
type Executor interface {
	// Allocates a grid, optionally initialized with the given cells (copied)
	CreateGrid(width, height int, data []grid.Cell) (*grid.Grid, error)

	// Evaluates p for every cell of dst, reading only from the state of src as it was before the call.
	// Returns after all cells are written.
	RunPass(p Program, src []*grid.Grid, dst *grid.Grid) error

	// Copies a region of a grid to host memory, four bytes per cell
	Readback(g *grid.Grid, r image.Rectangle) ([]byte, error)

	// Returns a grid's memory to the executor
	Release(g *grid.Grid)
}

// Checks the bindings of a pass
func validate(p Program, src []*grid.Grid, dst *grid.Grid) error {
	if p == nil {
		return ErrNoProgram
	}
	if err := checkBound(dst); err != nil {
		return err
	}
	for _, s := range src {
		if err := checkBound(s); err != nil {
			return err
		}
		if s == dst {
			return ErrAlias
		}
	}
	return nil
}

// Rejects nil, released and malformed grids
func checkBound(g *grid.Grid) error {
	if g == nil {
		return ErrNoGrid
	}
	if g.Cells == nil || len(g.Cells) != g.Width*g.Height {
		return fmt.Errorf("%w: %dx%d grid holds %d cells", ErrNoGrid, g.Width, g.Height, len(g.Cells))
	}
	return nil
}

// Checks that an image of the given size can be labeled
func CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 || width > grid.MaxDimension || height > grid.MaxDimension {
		return fmt.Errorf("%w: %dx%d outside 1..%d", ErrDimensions, width, height, grid.MaxDimension)
	}
	return nil
}

// Returns ceil(log2(n)), at least 1. Number of doubling passes needed to span n cells
func CeilLog2(n int) int {
	k := 0
	for (1 << uint(k)) < n {
		k++
	}
	if k < 1 {
		k = 1
	}
	return k
}
