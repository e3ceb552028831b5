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

package reduce

import (
	"errors"
	"fmt"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/pass"
)

// Compacts root labels into a dense table anchored at the top left corner.
// Roots are first packed to the left of each row, then each column is packed to the top.
// Column c of the result thus lists the c-th root of every row holding more than c roots,
// ordered by source row. Within a row, roots keep their order by x.
type Engine struct {
	Exec pass.Executor
}

func NewEngine(exec pass.Executor) *Engine {
	return &Engine{Exec: exec}
}

// Returns the running sum and search programs compacting along one axis of the given length
func Schedule(a Axis, length int) (sums, search []pass.Program) {
	k := pass.CeilLog2(length)
	sums = append(sums, sumInitProgram{Axis: a})
	for i := 1; i < k; i++ {
		sums = append(sums, sumStepProgram{Axis: a, Step: 1 << uint(i)})
	}
	for i := k - 1; i >= 0; i-- {
		search = append(search, searchProgram{Axis: a, Step: 1 << uint(i), Final: i == 0})
	}
	return sums, search
}

// Compacts the root labels of the given label grid. Returns the compacted grid and two free grids
// of the same size, all owned by the caller. The label grid is not modified.
func (e *Engine) Run(labels *grid.Grid) (compacted, free1, free2 *grid.Grid, err error) {
	if labels == nil {
		return nil, nil, nil, errors.New("reduce: nil label grid")
	}
	if err := pass.CheckDimensions(labels.Width, labels.Height); err != nil {
		return nil, nil, nil, fmt.Errorf("reduce: %w", err)
	}
	var gs [3]*grid.Grid
	for i := range gs {
		if gs[i], err = e.Exec.CreateGrid(labels.Width, labels.Height, nil); err != nil {
			for _, g := range gs[:i] {
				e.Exec.Release(g)
			}
			return nil, nil, nil, fmt.Errorf("reduce: %w", err)
		}
	}
	fail := func(stage string, err error) (*grid.Grid, *grid.Grid, *grid.Grid, error) {
		for _, g := range gs {
			e.Exec.Release(g)
		}
		return nil, nil, nil, fmt.Errorf("reduce: %s: %w", stage, err)
	}

	roots := gs[0]
	if err := e.Exec.RunPass(rootFilterProgram{}, []*grid.Grid{labels}, roots); err != nil {
		return fail("root filter", err)
	}
	pp := grid.NewPingPong(gs[1], gs[2])
	if err := e.compact(Horizontal, labels.Width, roots, pp); err != nil {
		return fail("horizontal", err)
	}

	// the horizontal result becomes the roots of the vertical run,
	// and the old roots take its place in the pair
	rows := pp.Replace(roots)
	if err := e.compact(Vertical, labels.Height, rows, pp); err != nil {
		return fail("vertical", err)
	}
	compacted, free1 = pp.Handoff()
	return compacted, free1, rows, nil
}

// Runs running sum and binary search along one axis. The result is current in pp afterwards
func (e *Engine) compact(a Axis, length int, roots *grid.Grid, pp *grid.PingPong) error {
	sums, search := Schedule(a, length)
	for i, p := range sums {
		src := pp.Read()
		if i == 0 {
			src = roots
		}
		if err := e.Exec.RunPass(p, []*grid.Grid{src}, pp.Write()); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		pp.Swap()
	}
	for _, p := range search {
		if err := e.Exec.RunPass(p, []*grid.Grid{roots, pp.Read()}, pp.Write()); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		pp.Swap()
	}
	return nil
}
