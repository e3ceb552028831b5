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
	"errors"
	"fmt"
	"image"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/spot"
)

// Statistics parameters
type Config struct {
	Offset         int `json:"offset" yaml:"offset"`                 // column stride between table slots, and maximum spots per table row
	FillIterations int `json:"fillIterations" yaml:"fillIterations"` // fill passes per quadrant
	WindowPasses   int `json:"windowPasses" yaml:"windowPasses"`     // doubling passes, the window spans 2^n pixels per quadrant
	MinArea        int `json:"minArea" yaml:"minArea"`               // smaller components are not reported
}

func DefaultConfig() Config {
	return Config{Offset: 10, FillIterations: 2, WindowPasses: 4, MinArea: 3}
}

func (c Config) Validate() error {
	if c.Offset <= 0 {
		return fmt.Errorf("table offset %d must be positive", c.Offset)
	}
	if c.FillIterations < 0 || c.WindowPasses < 0 {
		return fmt.Errorf("negative iteration count fill=%d window=%d", c.FillIterations, c.WindowPasses)
	}
	if c.WindowPasses > 15 {
		return fmt.Errorf("window passes %d exceed the 16-bit coordinate range", c.WindowPasses)
	}
	return nil
}

// Returns the width of the result table
func (c Config) TableWidth() int { return 4 * c.Offset }

// Computes per spot area, luminance and centroid sums into a result table, and extracts spots from it
type Engine struct {
	Config  Config
	Exec    pass.Executor
	Dropped int // roots of the last run beyond Offset per row, missing from the table

	table  *grid.PingPong // result table, 4*Offset x height
	saved  *grid.Grid     // scratch for save passes, table sized
	filled *grid.PingPong // fill results, image sized
	sums   *grid.PingPong // partial window sums, image sized
}

func NewEngine(c Config, exec pass.Executor) *Engine {
	return &Engine{Config: c, Exec: exec}
}

// Runs the statistics passes over all four quadrants and returns the extracted spots.
// The original intensity image, the labels and the compacted root table are read only.
func (e *Engine) Run(orig, labels, compacted *grid.Grid) ([]spot.Spot, error) {
	table, err := e.RunTable(orig, labels, compacted)
	if err != nil {
		return nil, err
	}
	return Extract(table, e.Config.TableWidth(), compacted.Height, e.Config.Offset, e.Config.MinArea), nil
}

// Runs the statistics passes and returns the raw result table as read back from the executor
func (e *Engine) RunTable(orig, labels, compacted *grid.Grid) (table []byte, err error) {
	if orig == nil || labels == nil || compacted == nil {
		return nil, errors.New("stats: nil input grid")
	}
	if orig.Width != labels.Width || orig.Height != labels.Height ||
		compacted.Width != labels.Width || compacted.Height != labels.Height {
		return nil, fmt.Errorf("stats: mismatched grids %dx%d, %dx%d, %dx%d", orig.Width, orig.Height,
			labels.Width, labels.Height, compacted.Width, compacted.Height)
	}
	if err := pass.CheckDimensions(labels.Width, labels.Height); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if err := e.Config.Validate(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if err := e.allocate(labels.Width, labels.Height); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer e.release()

	e.Dropped = 0
	if err := e.Exec.RunPass(tableInitProgram{Offset: e.Config.Offset}, []*grid.Grid{compacted}, e.table.Write()); err != nil {
		return nil, fmt.Errorf("stats: table init: %w", err)
	}
	e.table.Swap()
	if e.Dropped, err = e.countDropped(compacted); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	for _, q := range Quadrants {
		filled, err := e.fill(q, labels)
		if err != nil {
			return nil, fmt.Errorf("stats: quadrant %s: fill: %w", q, err)
		}
		for _, m := range []Measure{MeasureCount, MeasureCentroidX, MeasureCentroidY} {
			if err := e.measure(q, m, orig, labels, filled); err != nil {
				return nil, fmt.Errorf("stats: quadrant %s: %s: %w", q, m, err)
			}
		}
	}

	buf, err := e.Exec.Readback(e.table.Read(), image.Rect(0, 0, e.Config.TableWidth(), labels.Height))
	if err != nil {
		return nil, fmt.Errorf("stats: readback: %w", err)
	}
	return buf, nil
}

// Counts the roots in the compacted grid that do not fit into the table.
// Column c only holds c-th roots, so column Offset is empty unless some row overflows.
func (e *Engine) countDropped(compacted *grid.Grid) (int, error) {
	off, w, h := e.Config.Offset, compacted.Width, compacted.Height
	if w <= off {
		return 0, nil
	}
	first, err := e.Exec.Readback(compacted, image.Rect(off, 0, off+1, h))
	if err != nil {
		return 0, err
	}
	overflow := false
	for y := 0; y < h && !overflow; y++ {
		overflow = grid.CellFromBytes(first, 1, 0, y) != 0
	}
	if !overflow {
		return 0, nil
	}
	rest, err := e.Exec.Readback(compacted, image.Rect(off, 0, w, h))
	if err != nil {
		return 0, err
	}
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w-off; x++ {
			if grid.CellFromBytes(rest, w-off, x, y) != 0 {
				n++
			}
		}
	}
	return n, nil
}

// Allocates the private grids of one run
func (e *Engine) allocate(width, height int) error {
	sizes := [][2]int{
		{e.Config.TableWidth(), height}, {e.Config.TableWidth(), height}, {e.Config.TableWidth(), height},
		{width, height}, {width, height}, {width, height}, {width, height},
	}
	gs := make([]*grid.Grid, 0, len(sizes))
	for _, s := range sizes {
		g, err := e.Exec.CreateGrid(s[0], s[1], nil)
		if err != nil {
			for _, g := range gs {
				e.Exec.Release(g)
			}
			return err
		}
		gs = append(gs, g)
	}
	e.table = grid.NewPingPong(gs[0], gs[1])
	e.saved = gs[2]
	e.filled = grid.NewPingPong(gs[3], gs[4])
	e.sums = grid.NewPingPong(gs[5], gs[6])
	return nil
}

func (e *Engine) release() {
	for _, pp := range []*grid.PingPong{e.table, e.filled, e.sums} {
		a, b := pp.Handoff()
		e.Exec.Release(a)
		e.Exec.Release(b)
	}
	e.Exec.Release(e.saved)
	e.table, e.saved, e.filled, e.sums = nil, nil, nil, nil
}

// Fills the labels for one quadrant and returns the filled grid
func (e *Engine) fill(q Quadrant, labels *grid.Grid) (*grid.Grid, error) {
	filled := labels
	for n := 0; n < e.Config.FillIterations; n++ {
		if err := e.Exec.RunPass(fillProgram{Quadrant: q, Step: 1 << uint(n)}, []*grid.Grid{filled}, e.filled.Write()); err != nil {
			return nil, err
		}
		e.filled.Swap()
		filled = e.filled.Read()
	}
	return filled, nil
}

// Accumulates one measure for one quadrant at the root pixels, then saves and blends it into the table
func (e *Engine) measure(q Quadrant, m Measure, orig, labels, filled *grid.Grid) error {
	if err := e.Exec.RunPass(measureInitProgram{Quadrant: q, Measure: m}, []*grid.Grid{labels, orig}, e.sums.Write()); err != nil {
		return err
	}
	e.sums.Swap()
	for n := 0; n < e.Config.WindowPasses; n++ {
		p := windowProgram{Quadrant: q, Measure: m, Step: 1 << uint(n)}
		if err := e.Exec.RunPass(p, []*grid.Grid{filled, e.sums.Read()}, e.sums.Write()); err != nil {
			return err
		}
		e.sums.Swap()
	}

	if err := e.Exec.RunPass(saveProgram{Offset: e.Config.Offset, Measure: m}, []*grid.Grid{e.table.Read(), e.sums.Read()}, e.saved); err != nil {
		return err
	}
	if err := e.Exec.RunPass(blendProgram{Offset: e.Config.Offset, Measure: m}, []*grid.Grid{e.table.Read(), e.saved}, e.table.Write()); err != nil {
		return err
	}
	e.table.Swap()
	return nil
}

// Decodes a result table read back from the executor. Entries with fewer than minArea pixels
// or zero luminance are skipped. Spots are returned in table order, row by row.
func Extract(table []byte, width, height, offset, minArea int) []spot.Spot {
	var spots []spot.Spot
	for y := 0; y < height; y++ {
		for x := 0; x < offset && x < width; x++ {
			l := grid.LabelOf(grid.CellFromBytes(table, width, x, y))
			if l.IsBackground() {
				continue
			}
			counts := grid.CountsOf(grid.CellFromBytes(table, width, x+slotCounts*offset, y))
			if int(counts.Area) < minArea || counts.Lum == 0 {
				continue
			}
			sumX := grid.SignedOf(grid.CellFromBytes(table, width, x+slotSumX*offset, y))
			sumY := grid.SignedOf(grid.CellFromBytes(table, width, x+slotSumY*offset, y))
			rx, ry := l.Root()
			spots = append(spots, spot.Spot{
				X:         float32(rx) - float32(sumX)/float32(counts.Lum),
				Y:         float32(ry) - float32(sumY)/float32(counts.Lum),
				RootX:     int32(rx),
				RootY:     int32(ry),
				Area:      uint32(counts.Area),
				Luminance: uint32(counts.Lum),
				SumX:      int32(sumX),
				SumY:      int32(sumY),
			})
		}
	}
	return spots
}
