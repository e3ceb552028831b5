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
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Histogram of 8-bit pixel values
func Histogram(pixels []uint8) (bins [256]int32) {
	for _, p := range pixels {
		bins[p]++
	}
	return bins
}

// Returns the location and the value of the histogram peak
func GetPeak(bins []int32) (x, y float32) {
	maxIndex, maxValue := 0, int32(math.MinInt32)
	for i, v := range bins {
		if v > maxValue {
			maxIndex, maxValue = i, v
		}
	}
	return float32(maxIndex), float32(maxValue)
}

// Fits a normal distribution to the histogram around its peak, and returns its mode and standard deviation
func GetModeStdDevFromHistogram(bins []int32) (mode, stdDev float32, err error) {
	peak, peakVal := GetPeak(bins)

	// minimize the distance between the histogram and a scaled normal distribution
	x0 := []float64{float64(peakVal) * 5, float64(peak), 5.0}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, mu, sigma := x[0], x[1], math.Abs(x[2])+1e-3
			scaler := alpha / (sigma * math.Sqrt(2*math.Pi))
			sumSqDiff := 0.0
			for i, y := range bins {
				xmusig := (float64(i) - mu) / sigma
				diff := float64(y) - scaler*math.Exp(-0.5*xmusig*xmusig)
				sumSqDiff += diff * diff
			}
			return math.Sqrt(sumSqDiff / float64(len(bins)))
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return -1, -1, err
	}
	return float32(result.X[1]), float32(math.Abs(result.X[2])), nil
}
