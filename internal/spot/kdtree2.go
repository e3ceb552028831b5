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
	"math"
	"sort"
)

// A point in the image plane, with the index of the object it came from
type Point2D struct {
	X, Y  float32
	Index int
}

func Dist2DSquared(a, b Point2D) float32 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// A pointerless kd-tree with k=2 dimensions, built by recursively sorting the array
type KDTree2 []Point2D

// Builds the tree in place. Even depths pivot on X
func (points KDTree2) Make() {
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	l := len(points)
	if l > 1 {
		points[:l/2].makeY()
		if l > 2 {
			points[l/2+1:].makeY()
		}
	}
}

// Odd depths pivot on Y
func (points KDTree2) makeY() {
	sort.Slice(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	l := len(points)
	if l > 1 {
		points[:l/2].Make()
		if l > 2 {
			points[l/2+1:].Make()
		}
	}
}

// Returns the point nearest to p and its squared distance. The tree must not be empty
func (kdt KDTree2) NearestNeighbor(p Point2D) (Point2D, float32) {
	return kdt.nearest(p, 0)
}

func (kdt KDTree2) nearest(p Point2D, depth int) (closest Point2D, closestDsq float32) {
	l := len(kdt)
	mid := kdt[l/2]
	closest, closestDsq = mid, Dist2DSquared(p, mid)

	distToPlane := p.X - mid.X
	if depth%2 == 1 {
		distToPlane = p.Y - mid.Y
	}
	near, far := kdt[:l/2], kdt[l/2+1:]
	if distToPlane > 0 {
		near, far = far, near
	}
	if len(near) > 0 {
		if pt, dsq := near.nearest(p, depth+1); dsq < closestDsq {
			closest, closestDsq = pt, dsq
		}
	}
	if len(far) > 0 && distToPlane*distToPlane <= closestDsq {
		if pt, dsq := far.nearest(p, depth+1); dsq < closestDsq {
			closest, closestDsq = pt, dsq
		}
	}
	return closest, closestDsq
}

// Result of matching extracted spots against reference positions
type MatchResult struct {
	Matched  int     `json:"matched"`  // reference points with a spot within the radius
	Missed   int     `json:"missed"`   // reference points without
	Spurious int     `json:"spurious"` // spots not matching any reference point
	RMSError float32 `json:"rmsError"` // root mean square distance of matched pairs
	MaxError float32 `json:"maxError"` // largest distance of a matched pair
}

// Matches each reference point to its nearest spot within maxDist
func Match(spots []Spot, refs []Point2D, maxDist float32) MatchResult {
	res := MatchResult{}
	if len(spots) == 0 {
		res.Missed = len(refs)
		return res
	}
	kdt := make(KDTree2, len(spots))
	for i, s := range spots {
		kdt[i] = Point2D{X: s.X, Y: s.Y, Index: i}
	}
	kdt.Make()

	used := make([]bool, len(spots))
	sumSq := float64(0)
	for _, r := range refs {
		pt, dsq := kdt.NearestNeighbor(r)
		if dsq > maxDist*maxDist || used[pt.Index] {
			res.Missed++
			continue
		}
		used[pt.Index] = true
		res.Matched++
		sumSq += float64(dsq)
		if d := float32(math.Sqrt(float64(dsq))); d > res.MaxError {
			res.MaxError = d
		}
	}
	res.Spurious = len(spots) - res.Matched
	if res.Matched > 0 {
		res.RMSError = float32(math.Sqrt(sumSq / float64(res.Matched)))
	}
	return res
}
