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
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Reads a TIFF, PNG, JPEG or BMP image. Color images become 3-channel FITS images
func (f *Image) ReadRaster(r io.Reader) error {
	t, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}

	width, height := t.Bounds().Dx(), t.Bounds().Dy()
	bitpix, channels := colorModelToBitpixAndChannels(t.ColorModel())
	if channels == 0 {
		bitpix, channels = 8, 3 // paletted and YCbCr images
	}

	f.Bitpix = bitpix
	f.Naxisn = []int32{int32(width), int32(height), int32(channels)}
	if channels == 1 {
		f.Naxisn = f.Naxisn[:2]
	}
	f.Pixels = int32(width) * int32(height) * int32(channels)
	f.Bzero, f.Bscale = 0, 1
	f.Data = make([]float32, f.Pixels)
	size := width * height

	// native depth, 8-bit models scale down from the 16-bit color interface
	shift := uint(8)
	if bitpix == 16 {
		shift = 0
	}
	min := t.Bounds().Min
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := t.At(min.X+x, min.Y+y).RGBA()
			i := y*width + x
			if channels == 1 {
				f.Data[i] = float32(r >> shift)
			} else {
				f.Data[i] = float32(r >> shift)
				f.Data[i+size] = float32(g >> shift)
				f.Data[i+2*size] = float32(b >> shift)
			}
		}
	}
	f.UpdateStats()
	return nil
}

func colorModelToBitpixAndChannels(m color.Model) (bitpix, channels int32) {
	switch m {
	case color.RGBAModel:
		return 8, 3
	case color.RGBA64Model:
		return 16, 3
	case color.NRGBAModel:
		return 8, 3
	case color.NRGBA64Model:
		return 16, 3
	case color.AlphaModel:
		return 8, 1
	case color.Alpha16Model:
		return 16, 1
	case color.GrayModel:
		return 8, 1
	case color.Gray16Model:
		return 16, 1
	default:
		return 0, 0
	}
}

// Write the luminance to a 16-bit grayscale TIFF, using the given min, max and gamma.
func (f *Image) WriteMonoTIFF16ToFile(fileName string, min, max, gamma float32) error {
	return WriteFile(fileName, func(w io.Writer) error { return f.WriteMonoTIFF16(w, min, max, gamma) })
}

// Write the luminance to a 16-bit grayscale TIFF, using the given min, max and gamma.
func (f *Image) WriteMonoTIFF16(writer io.Writer, min, max, gamma float32) error {
	width, height := f.Width(), f.Height()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(f.normalized(y*width+x, min, max, gamma) * 65535)})
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Returns the luminance of pixel i mapped from [min,max] to [0,1] with the given gamma
func (f *Image) normalized(i int, min, max, gamma float32) float32 {
	v := (f.luminance(i) - min) / (max - min)
	// replace NaNs with zeros for export, else output breaks
	if math.IsNaN(float64(v)) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if gamma != 1 {
		v = float32(math.Pow(float64(v), float64(1/gamma)))
	}
	return v
}
