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
	"math"
	"strings"

	"github.com/mlnoga/spotlight/internal/spot"
)

// A FITS image, or a raster image converted into one.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating
	Bzero  float32 // Zero offset. True pixel value is Bzero + Bscale * Data[i]
	Bscale float32 // Value scaler. True pixel value is Bzero + Bscale * Data[i]
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int32   // Number of pixels in the image. Product of Naxisn[]

	Data []float32 // The image data, channel planes one after another

	Exposure float32 // Image exposure in seconds

	Stats *Stats // Minimum, maximum and mean of the luminance

	Spots []spot.Spot    // Spot detections
	Truth []spot.Point2D // Known spot positions of synthetic images, for validation
}

// Basic statistics of the image data
type Stats struct {
	Min, Max, Mean float32
}

func (s *Stats) String() string {
	return fmt.Sprintf("min %.4g max %.4g mean %.4g", s.Min, s.Max, s.Mean)
}

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bscale: 1,
	}
}

// Creates a FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	img := &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Bscale: 1,
		Naxisn: append([]int32(nil), naxisn...),
		Pixels: numPixels,
		Data:   data,
	}
	img.UpdateStats()
	return img
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float32
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float32),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
	}
}

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80  // Line size of a FITS header

func (f *Image) Width() int  { return int(f.Naxisn[0]) }
func (f *Image) Height() int { return int(f.Naxisn[1]) }

// Number of color channels, 1 for grayscale
func (f *Image) Channels() int {
	if len(f.Naxisn) < 3 {
		return 1
	}
	return int(f.Naxisn[2])
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Checks the image is a 2D grayscale or 3-channel color image
func (f *Image) checkShape() error {
	if len(f.Naxisn) < 2 || len(f.Naxisn) > 3 {
		return fmt.Errorf("%d: unsupported image dimensions %s", f.ID, f.DimensionsToString())
	}
	if c := f.Channels(); c != 1 && c != 3 {
		return fmt.Errorf("%d: unsupported number of channels %d", f.ID, c)
	}
	return nil
}

// Returns the luminance of pixel i. Color images use Rec. 709 weights
func (f *Image) luminance(i int) float32 {
	if f.Channels() == 1 {
		return f.Data[i]
	}
	size := f.Width() * f.Height()
	return 0.2126*f.Data[i] + 0.7152*f.Data[i+size] + 0.0722*f.Data[i+2*size]
}

// Recomputes minimum, maximum and mean of the luminance, ignoring NaNs
func (f *Image) UpdateStats() {
	if len(f.Naxisn) < 2 {
		return
	}
	size := f.Width() * f.Height()
	min, max, sum, n := float32(math.MaxFloat32), float32(-math.MaxFloat32), float64(0), 0
	for i := 0; i < size && i < len(f.Data); i++ {
		v := f.luminance(i)
		if math.IsNaN(float64(v)) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		min, max = 0, 0
		n = 1
	}
	f.Stats = &Stats{Min: min, Max: max, Mean: float32(sum / float64(n))}
}
