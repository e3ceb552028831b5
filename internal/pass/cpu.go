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
	"fmt"
	"image"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	"github.com/mlnoga/spotlight/internal/grid"
)

// Executes passes on the CPU. Rows of the destination grid are split into bands,
// one goroutine per band, and each pass waits for all bands before returning.
type CPU struct {
	MaxThreads  int   // number of concurrent bands
	BudgetBytes int64 // upper limit for live grid memory

	allocated int64 // live grid memory, accessed atomically

	mu      sync.Mutex
	timings map[string]*ProgramTiming
}

// Accumulated execution statistics for one program
type ProgramTiming struct {
	Name    string
	Passes  int
	Elapsed time.Duration
}

// Creates a CPU executor. maxThreads<=0 uses GOMAXPROCS, budgetMB<=0 uses 70% of physical memory
func NewCPU(maxThreads int, budgetMB int64) *CPU {
	if maxThreads <= 0 {
		maxThreads = runtime.GOMAXPROCS(0)
	}
	budget := budgetMB * 1024 * 1024
	if budgetMB <= 0 {
		budget = int64(memory.TotalMemory() / 10 * 7)
	}
	return &CPU{
		MaxThreads:  maxThreads,
		BudgetBytes: budget,
		timings:     map[string]*ProgramTiming{},
	}
}

// Describes the executing device
func (e *CPU) Describe() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("CPU executor on %s (%d logical cores, L2 %d KiB, AVX2 %v) with %d threads and %d MiB grid budget",
		brand, cpuid.CPU.LogicalCores, cpuid.CPU.Cache.L2/1024, cpuid.CPU.AVX2(), e.MaxThreads, e.BudgetBytes/1024/1024)
}

func (e *CPU) CreateGrid(width, height int, data []grid.Cell) (*grid.Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}
	if data != nil && len(data) != width*height {
		return nil, fmt.Errorf("%w: %d cells of data for %dx%d grid", ErrDimensions, len(data), width, height)
	}
	size := int64(width) * int64(height) * grid.CellBytes
	if total := atomic.AddInt64(&e.allocated, size); total > e.BudgetBytes {
		atomic.AddInt64(&e.allocated, -size)
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrBudget, size, total-size, e.BudgetBytes)
	}
	g := grid.NewGrid(width, height)
	copy(g.Cells, data)
	return g, nil
}

func (e *CPU) Release(g *grid.Grid) {
	if g == nil || g.Cells == nil {
		return
	}
	atomic.AddInt64(&e.allocated, -g.SizeBytes())
	g.Cells = nil
}

// Returns the number of bytes currently allocated to live grids
func (e *CPU) Allocated() int64 { return atomic.LoadInt64(&e.allocated) }

func (e *CPU) RunPass(p Program, src []*grid.Grid, dst *grid.Grid) error {
	if err := validate(p, src, dst); err != nil {
		return err
	}
	start := time.Now()

	readers := make([]grid.Reader, len(src))
	for i, s := range src {
		readers[i] = s
	}

	bands := e.MaxThreads
	if bands > dst.Height {
		bands = dst.Height
	}
	if bands < 1 {
		bands = 1
	}
	rowsPerBand := (dst.Height + bands - 1) / bands

	var wg sync.WaitGroup
	for y0 := 0; y0 < dst.Height; y0 += rowsPerBand {
		y1 := y0 + rowsPerBand
		if y1 > dst.Height {
			y1 = dst.Height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				row := dst.Cells[y*dst.Width : (y+1)*dst.Width]
				for x := range row {
					row[x] = p.Eval(x, y, readers)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	e.record(p.Name(), time.Since(start))
	return nil
}

func (e *CPU) Readback(g *grid.Grid, r image.Rectangle) ([]byte, error) {
	if g == nil || g.Cells == nil {
		return nil, ErrNoGrid
	}
	buf, clipped := g.Bytes(r)
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: %v on %dx%d grid", ErrRegion, r, g.Width, g.Height)
	}
	return buf, nil
}

func (e *CPU) record(name string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timings[name]
	if !ok {
		t = &ProgramTiming{Name: name}
		e.timings[name] = t
	}
	t.Passes++
	t.Elapsed += d
}

// Returns a snapshot of per-program statistics, sorted by name
func (e *CPU) Timings() []ProgramTiming {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make([]ProgramTiming, 0, len(e.timings))
	for _, t := range e.timings {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Prints per-program statistics
func (e *CPU) PrintTimings(w io.Writer) {
	for _, t := range e.Timings() {
		fmt.Fprintf(w, "%-16s %5d passes %10.3f ms\n", t.Name, t.Passes, float64(t.Elapsed.Microseconds())/1000)
	}
}
