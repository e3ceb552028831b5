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

package spot

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// A spot extracted from an image, as found by connected component statistics
type Spot struct {
	X         float32 `json:"x"`         // luminance weighted centroid x, in pixels
	Y         float32 `json:"y"`         // luminance weighted centroid y, in pixels
	RootX     int32   `json:"rootX"`     // x coordinate of the component's root pixel
	RootY     int32   `json:"rootY"`     // y coordinate of the component's root pixel
	Area      uint32  `json:"area"`      // number of pixels
	Luminance uint32  `json:"luminance"` // summed 8-bit intensities
	SumX      int32   `json:"sumX"`      // sum of (RootX-x)*intensity
	SumY      int32   `json:"sumY"`      // sum of (RootY-y)*intensity
}

// Prints given spots as CSV
func PrintSpots(w io.Writer, spots []Spot) {
	fmt.Fprintln(w, "X,Y,RootX,RootY,Area,Luminance,SumX,SumY")
	for _, s := range spots {
		fmt.Fprintf(w, "%g,%g,%d,%d,%d,%d,%d,%d\n", s.X, s.Y, s.RootX, s.RootY, s.Area, s.Luminance, s.SumX, s.SumY)
	}
}

// Summary statistics over a list of spots
type Summary struct {
	Count         int     `json:"count"`
	MeanArea      float64 `json:"meanArea"`
	StdDevArea    float64 `json:"stdDevArea"`
	MeanLuminance float64 `json:"meanLuminance"`
	MaxLuminance  uint32  `json:"maxLuminance"`
}

func Summarize(spots []Spot) Summary {
	s := Summary{Count: len(spots)}
	if len(spots) == 0 {
		return s
	}
	areas := make([]float64, len(spots))
	lums := make([]float64, len(spots))
	for i, sp := range spots {
		areas[i], lums[i] = float64(sp.Area), float64(sp.Luminance)
		if sp.Luminance > s.MaxLuminance {
			s.MaxLuminance = sp.Luminance
		}
	}
	s.MeanArea, s.StdDevArea = stat.MeanStdDev(areas, nil)
	s.MeanLuminance = stat.Mean(lums, nil)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d spots, area %.3g +/- %.3g, mean luminance %.4g, max luminance %d",
		s.Count, s.MeanArea, s.StdDevArea, s.MeanLuminance, s.MaxLuminance)
}
