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
	"encoding/binary"
	"fmt"
	"image"
)

// Bytes per serialized cell
const CellBytes = 4

// Read-only access to a grid. Passes receive their sources through this interface only.
type Reader interface {
	Bounds() (width, height int)
	// Returns the cell at (x,y), or zero outside the grid
	At(x, y int) Cell
}

// A fixed size 2D array of cells, stored row by row
type Grid struct {
	Width  int
	Height int
	Cells  []Cell
}

// Allocates a zeroed grid
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Cells: make([]Cell, width*height)}
}

// Creates a grid over the given cells, which are not copied
func NewGridFromCells(width, height int, cells []Cell) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("%d cells given for %dx%d grid", len(cells), width, height)
	}
	return &Grid{Width: width, Height: height, Cells: cells}, nil
}

// Creates an intensity grid from 8-bit pixel values, one byte per cell
func NewIntensityGrid(width, height int, pixels []uint8) (*Grid, error) {
	if len(pixels) != width*height {
		return nil, fmt.Errorf("%d pixels given for %dx%d grid", len(pixels), width, height)
	}
	cells := make([]Cell, len(pixels))
	for i, p := range pixels {
		cells[i] = Intensity(p).Cell()
	}
	return NewGridFromCells(width, height, cells)
}

func (g *Grid) Bounds() (width, height int) { return g.Width, g.Height }

func (g *Grid) At(x, y int) Cell {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Cells[y*g.Width+x]
}

func (g *Grid) Set(x, y int, c Cell) { g.Cells[y*g.Width+x] = c }

// Sets all cells to zero
func (g *Grid) Clear() {
	for i := range g.Cells {
		g.Cells[i] = 0
	}
}

// Returns the size of the grid in bytes
func (g *Grid) SizeBytes() int64 { return int64(len(g.Cells)) * CellBytes }

// Serializes the cells within r, clipped to the grid, row by row with four bytes per cell
func (g *Grid) Bytes(r image.Rectangle) ([]byte, image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, g.Width, g.Height))
	buf := make([]byte, r.Dx()*r.Dy()*CellBytes)
	o := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Cells[y*g.Width+r.Min.X : y*g.Width+r.Max.X]
		for _, c := range row {
			binary.LittleEndian.PutUint32(buf[o:], uint32(c))
			o += CellBytes
		}
	}
	return buf, r
}

// Decodes the cell at (x,y) from a buffer produced by Bytes for a region of the given width
func CellFromBytes(buf []byte, width, x, y int) Cell {
	o := (y*width + x) * CellBytes
	return Cell(binary.LittleEndian.Uint32(buf[o:]))
}

// Two grids of equal size alternating strictly between read and write roles.
// Exactly one grid is current at any time.
type PingPong struct {
	bufs [2]*Grid
	cur  int
}

// Creates a pair from two distinct grids. The first one is current
func NewPingPong(current, next *Grid) *PingPong {
	return &PingPong{bufs: [2]*Grid{current, next}}
}

// Returns the current grid, i.e. the last one written
func (p *PingPong) Read() *Grid { return p.bufs[p.cur] }

// Returns the grid the next pass writes to
func (p *PingPong) Write() *Grid { return p.bufs[1-p.cur] }

// Makes the last written grid current
func (p *PingPong) Swap() { p.cur = 1 - p.cur }

// Replaces the current grid, returning the old one
func (p *PingPong) Replace(g *Grid) (old *Grid) {
	old, p.bufs[p.cur] = p.bufs[p.cur], g
	return old
}

// Hands both grids over to the caller and empties the pair
func (p *PingPong) Handoff() (current, free *Grid) {
	current, free = p.bufs[p.cur], p.bufs[1-p.cur]
	p.bufs = [2]*Grid{}
	p.cur = 0
	return current, free
}
