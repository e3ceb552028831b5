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

package fits

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path"
	"strings"
)

// Color of spot markers in previews
var markerColor = color.RGBA{255, 64, 32, 255}

// Writes a stretched preview of the luminance with the current spots marked.
// The format follows the extension: .jpg and .jpeg are JPEG, .png is PNG, .tif and .tiff 16-bit TIFF without markers.
func (f *Image) WritePreviewToFile(fileName string, gamma float32, quality int) error {
	min, max := f.Stats.Min, f.Stats.Max
	var write func(w io.Writer) error
	switch ext := strings.ToLower(path.Ext(fileName)); ext {
	case ".jpg", ".jpeg":
		write = func(w io.Writer) error { return f.WriteMonoJPG(w, min, max, gamma, quality) }
	case ".png":
		write = func(w io.Writer) error { return png.Encode(w, f.markedImage(min, max, gamma)) }
	case ".tif", ".tiff":
		write = func(w io.Writer) error { return f.WriteMonoTIFF16(w, min, max, gamma) }
	default:
		return fmt.Errorf("%d: unknown preview format %s", f.ID, ext)
	}
	return WriteFile(fileName, write)
}

// Write the luminance with spot markers to JPG, using the given min, max and gamma.
func (f *Image) WriteMonoJPG(writer io.Writer, min, max, gamma float32, quality int) error {
	return jpeg.Encode(writer, f.markedImage(min, max, gamma), &jpeg.Options{Quality: quality})
}

// Renders the luminance in gray and draws a cross at each spot centroid
func (f *Image) markedImage(min, max, gamma float32) *image.RGBA {
	width, height := f.Width(), f.Height()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := uint8(f.normalized(y*width+x, min, max, gamma) * 255)
			img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
		}
	}
	for _, s := range f.Spots {
		r := int(math.Ceil(math.Sqrt(float64(s.Area)))) + 2
		cx, cy := int(s.X+0.5), int(s.Y+0.5)
		for d := r / 2; d <= r; d++ {
			for _, p := range [4][2]int{{cx - d, cy}, {cx + d, cy}, {cx, cy - d}, {cx, cy + d}} {
				if image.Pt(p[0], p[1]).In(img.Rect) {
					img.SetRGBA(p[0], p[1], markerColor)
				}
			}
		}
	}
	return img
}
