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
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"

	"github.com/mlnoga/spotlight/internal/fits"
	"github.com/mlnoga/spotlight/internal/grid"
)

// Maps grid cells to display colors
type Palette int

const (
	PaletteHCL  Palette = iota // evenly spaced hues per label, constant chroma and luminance
	PaletteHash                // channel hash, gives neighbouring labels very different colors
)

func ParsePalette(s string) (Palette, error) {
	switch strings.ToLower(s) {
	case "", "hcl":
		return PaletteHCL, nil
	case "hash":
		return PaletteHash, nil
	}
	return PaletteHCL, fmt.Errorf("unknown palette '%s'", s)
}

// Returns the display color of a cell. Zero cells are black
func (p Palette) Color(c grid.Cell) color.RGBA {
	if c == 0 {
		return color.RGBA{0, 0, 0, 255}
	}
	if p == PaletteHash {
		c0, c1, c2, c3 := uint32(c.Channel(0)), uint32(c.Channel(1)), uint32(c.Channel(2)), uint32(c.Channel(3))
		return color.RGBA{
			R: uint8(((5*c0 + 7*c1 + 1) * (c2 + c3 + 1)) % 256),
			G: uint8(((3*c2 + 2*c1 + 1) * (c0 + c3 + 1)) % 256),
			B: uint8((c0 + c1 + c2 + c3) % 256),
			A: 255,
		}
	}
	// hue advances by about the golden angle per label value
	h := float64((uint64(c)*137)%360) + float64(c.Hi()%7)*0.5
	r, g, b := colorful.Hcl(h, 0.6, 0.7).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// Renders a grid in false colors
func LabelImage(g *grid.Grid, p Palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetRGBA(x, y, p.Color(g.At(x, y)))
		}
	}
	return img
}

// Writes a false color rendering of the grid to a PNG or TIFF file, depending on the suffix
func WriteLabelImage(fileName string, g *grid.Grid, p Palette) error {
	var write func(w io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".png":
		write = func(w io.Writer) error { return png.Encode(w, LabelImage(g, p)) }
	case ".tif", ".tiff":
		write = func(w io.Writer) error {
			return tiff.Encode(w, LabelImage(g, p), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	default:
		return fmt.Errorf("unsupported label image suffix '%s'", ext)
	}
	return fits.WriteFile(fileName, write)
}
