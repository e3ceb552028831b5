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

package stats

import (
	"fmt"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Location and scale estimator modes
type LSEstimatorMode int

const (
	LSEMeanStdDev     LSEstimatorMode = iota // mean and standard deviation of all pixels
	LSESampledMedian                         // iterative sigma-clipped sampled median and MAD
	LSEHistogramPeak                         // normal distribution fitted to the histogram peak
)

func (m LSEstimatorMode) String() string {
	switch m {
	case LSEMeanStdDev:
		return "mean/stddev"
	case LSESampledMedian:
		return "sampled median/MAD"
	case LSEHistogramPeak:
		return "histogram peak"
	}
	return fmt.Sprintf("LSEstimatorMode(%d)", int(m))
}

// Location and scale of the image background, in 8-bit intensity units
type Background struct {
	Location float32
	Scale    float32
}

func (b Background) String() string {
	return fmt.Sprintf("location %.4g scale %.4g", b.Location, b.Scale)
}

// Number of samples drawn by the sampled estimator
const numSamples = 4096

// Estimates the background of 8-bit pixel data with the given mode
func EstimateBackground(pixels []uint8, mode LSEstimatorMode, seed uint32) (Background, error) {
	if len(pixels) == 0 {
		return Background{}, fmt.Errorf("no pixels")
	}
	switch mode {
	case LSEMeanStdDev:
		data := make([]float64, len(pixels))
		for i, p := range pixels {
			data[i] = float64(p)
		}
		mean, std := stat.MeanStdDev(data, nil)
		return Background{float32(mean), float32(std)}, nil

	case LSESampledMedian:
		return sampledMedianMAD(pixels, seed), nil

	case LSEHistogramPeak:
		bins := Histogram(pixels)
		mode, std, err := GetModeStdDevFromHistogram(bins[:])
		if err != nil {
			return Background{}, err
		}
		return Background{mode, std}, nil
	}
	return Background{}, fmt.Errorf("unknown estimator mode %d", int(mode))
}

// Sampled median and normalized median absolute deviation, with three rounds of
// clipping samples more than 3 scales above the location
func sampledMedianMAD(pixels []uint8, seed uint32) Background {
	rng := fastrand.RNG{}
	rng.Seed(seed)
	n := numSamples
	if n > len(pixels) {
		n = len(pixels)
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(pixels[rng.Uint32n(uint32(len(pixels)))])
	}

	var loc, scale float64
	devs := make([]float64, 0, n)
	for round := 0; round < 3 && len(samples) > 0; round++ {
		sort.Float64s(samples)
		loc = stat.Quantile(0.5, stat.Empirical, samples, nil)
		devs = devs[:0]
		for _, s := range samples {
			d := s - loc
			if d < 0 {
				d = -d
			}
			devs = append(devs, d)
		}
		sort.Float64s(devs)
		scale = 1.4826 * stat.Quantile(0.5, stat.Empirical, devs, nil)

		kept := samples[:0]
		for _, s := range samples {
			if s <= loc+3*scale {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(samples) || len(kept) == 0 {
			break
		}
		samples = kept
	}
	return Background{float32(loc), float32(scale)}
}

// Returns a threshold in [0,1] at sigma scales above the background location.
// A minimum scale of one intensity step keeps flat backgrounds from thresholding their own noise.
func (b Background) Threshold(sigma float32) float32 {
	scale := b.Scale
	if scale < 1 {
		scale = 1
	}
	t := (b.Location + sigma*scale) / 255
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
