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

package synth

import (
	"fmt"
	"math"

	"github.com/valyala/fastrand"
)

// Brightness profile of a synthetic star
type Profile int

const (
	ProfileDisc     Profile = iota // uniform disc, exact centroids
	ProfileGaussian                // gaussian with sigma = radius/2
)

// Parameters of a synthetic star field
type Config struct {
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	Stars     int     `json:"stars" yaml:"stars"`
	MinRadius float32 `json:"minRadius" yaml:"minRadius"`
	MaxRadius float32 `json:"maxRadius" yaml:"maxRadius"`
	Peak      uint8   `json:"peak" yaml:"peak"`           // brightness of star centers
	Noise     uint8   `json:"noise" yaml:"noise"`         // background noise is uniform in [0,Noise)
	HotPixels int     `json:"hotPixels" yaml:"hotPixels"` // isolated single bright pixels
	Profile   Profile `json:"profile" yaml:"profile"`
	Seed      uint32  `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Width: 256, Height: 256, Stars: 40,
		MinRadius: 1.2, MaxRadius: 3,
		Peak: 230, Noise: 24, HotPixels: 10,
		Profile: ProfileGaussian, Seed: 1,
	}
}

// Ground truth for one generated star
type Star struct {
	X, Y   float32 // pixel coordinates of the center
	Radius float32
	Peak   uint8
}

// A generated frame with 8-bit pixels and its ground truth
type Frame struct {
	Width, Height int
	Pixels        []uint8
	Stars         []Star
	HotPixels     [][2]int
}

// Generates a star field. Stars sit on a jittered lattice so they never touch,
// hot pixels are placed on lattice cells left empty.
func Generate(c Config) (*Frame, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.MinRadius <= 0 || c.MaxRadius < c.MinRadius {
		return nil, fmt.Errorf("invalid radius range [%g,%g]", c.MinRadius, c.MaxRadius)
	}
	rng := fastrand.RNG{}
	rng.Seed(c.Seed)

	f := &Frame{Width: c.Width, Height: c.Height, Pixels: make([]uint8, c.Width*c.Height)}
	if c.Noise > 0 {
		for i := range f.Pixels {
			f.Pixels[i] = uint8(rng.Uint32n(uint32(c.Noise)))
		}
	}

	cell := int(math.Ceil(float64(c.MaxRadius)))*2 + 6
	cols, rows := c.Width/cell, c.Height/cell
	if cols*rows < c.Stars+c.HotPixels {
		return nil, fmt.Errorf("%dx%d frame has room for %d objects, %d requested", c.Width, c.Height, cols*rows, c.Stars+c.HotPixels)
	}

	// shuffle lattice cells
	order := make([]int, cols*rows)
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := int(rng.Uint32n(uint32(i + 1)))
		order[i], order[j] = order[j], order[i]
	}

	slack := cell - int(math.Ceil(float64(c.MaxRadius)))*2 - 4
	for k := 0; k < c.Stars; k++ {
		cx, cy := order[k]%cols*cell, order[k]/cols*cell
		r := c.MinRadius + (c.MaxRadius-c.MinRadius)*float32(rng.Uint32n(1001))/1000
		jx, jy := float32(0), float32(0)
		if slack > 0 {
			jx, jy = float32(rng.Uint32n(uint32(slack*4)))/4, float32(rng.Uint32n(uint32(slack*4)))/4
		}
		s := Star{
			X:      float32(cx) + float32(cell)/2 - float32(slack)/2 + jx,
			Y:      float32(cy) + float32(cell)/2 - float32(slack)/2 + jy,
			Radius: r,
			Peak:   c.Peak,
		}
		f.draw(s, c.Profile)
		f.Stars = append(f.Stars, s)
	}
	for k := c.Stars; k < c.Stars+c.HotPixels; k++ {
		x, y := order[k]%cols*cell+cell/2, order[k]/cols*cell+cell/2
		f.Pixels[y*f.Width+x] = 255
		f.HotPixels = append(f.HotPixels, [2]int{x, y})
	}
	return f, nil
}

// Draws a star on top of the background, keeping the brighter value per pixel
func (f *Frame) draw(s Star, p Profile) {
	r := int(math.Ceil(float64(s.Radius))) + 1
	x0, y0 := int(s.X), int(s.Y)
	sigma := float64(s.Radius) / 2
	for y := y0 - r; y <= y0+r; y++ {
		for x := x0 - r; x <= x0+r; x++ {
			if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
				continue
			}
			dx, dy := float64(x)-float64(s.X), float64(y)-float64(s.Y)
			d2 := dx*dx + dy*dy
			var v float64
			switch p {
			case ProfileDisc:
				if d2 <= float64(s.Radius*s.Radius) {
					v = float64(s.Peak)
				}
			default:
				v = float64(s.Peak) * math.Exp(-d2/(2*sigma*sigma))
			}
			if uint8(v) > f.Pixels[y*f.Width+x] {
				f.Pixels[y*f.Width+x] = uint8(v)
			}
		}
	}
}

// Creates a black frame with uniform rectangles of the given brightness, for exact tests
func Blocks(width, height int, value uint8, rects ...[4]int) []uint8 {
	pixels := make([]uint8, width*height)
	for _, r := range rects {
		for y := r[1]; y < r[3]; y++ {
			for x := r[0]; x < r[2]; x++ {
				pixels[y*width+x] = value
			}
		}
	}
	return pixels
}
