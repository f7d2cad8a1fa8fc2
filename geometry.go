package main

import (
	"math"

	"github.com/paulmach/orb"
)

// Epsilon widens the accepted crossing interval to (0, 1+Epsilon) so that a
// query ray passing exactly through a polygon vertex is not lost to rounding.
var Epsilon = machineEpsilon()

// machineEpsilon returns 100 times the largest power of two u for which
// 1+u rounds to 1.
func machineEpsilon() float64 {
	u := 1.0
	for {
		u /= 2.0
		if 1.0+u <= 1.0 {
			break
		}
	}
	return 100.0 * u
}

// LineSegment represents a line segment between two points
type LineSegment struct {
	P1, P2 orb.Point
}

// DoSegmentsCross checks if two segments cross at a single interior point.
// Shared endpoints and collinear overlaps do not count, so polygons that
// merely touch along an edge or at a corner are not reported.
func DoSegmentsCross(seg1, seg2 LineSegment) bool {
	p1, p2 := seg1.P1, seg1.P2
	p3, p4 := seg2.P1, seg2.P2

	if p1 == p3 || p1 == p4 || p2 == p3 || p2 == p4 {
		return false
	}

	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// direction calculates the cross product to determine orientation
func direction(p1, p2, p3 orb.Point) float64 {
	return (p3[0]-p1[0])*(p2[1]-p1[1]) - (p2[0]-p1[0])*(p3[1]-p1[1])
}

// crossesEdge reports whether the segment from q back to ref crosses the
// polygon edge a->b.
//
// s runs along the edge from a (s=0) to b (s=1) and t along the query segment
// from q (t=0) to ref (t=1). Both must fall in the open interval (0, 1+Epsilon):
// a vertex is counted once, as the end of the edge that arrives at it, and a
// point lying on the edge itself is never counted.
func crossesEdge(ref, q, a, b orb.Point) bool {
	dx, dy := q[0]-ref[0], q[1]-ref[1]
	ex, ey := b[0]-a[0], b[1]-a[1]

	d := ex*dy - ey*dx
	// Parallel, collinear or zero-length edges have no single crossing.
	if math.Abs(d) <= Epsilon*(math.Abs(ex*dy)+math.Abs(ey*dx)) {
		return false
	}

	s := (dx*(a[1]-q[1]) - dy*(a[0]-q[0])) / d
	t := ((a[0]-q[0])*ey - (a[1]-q[1])*ex) / d

	return 0.0 < s && s < 1.0+Epsilon && 0.0 < t && t < 1.0+Epsilon
}

// crossingCount counts the edges of the closed vertex cycle crossed by the
// segment ref->q.
func crossingCount(vertices []orb.Point, ref, q orb.Point) int {
	n := len(vertices)
	count := 0
	for i := 0; i < n; i++ {
		if crossesEdge(ref, q, vertices[i], vertices[(i+1)%n]) {
			count++
		}
	}
	return count
}

// strictlyInside reports whether q lies in the interior of b.
func strictlyInside(b orb.Bound, q orb.Point) bool {
	return b.Min[0] < q[0] && q[0] < b.Max[0] && b.Min[1] < q[1] && q[1] < b.Max[1]
}

// boundsOverlap checks whether two closed rectangles share at least one point.
func boundsOverlap(a, b orb.Bound) bool {
	return a.Min[0] <= b.Max[0] && b.Min[0] <= a.Max[0] &&
		a.Min[1] <= b.Max[1] && b.Min[1] <= a.Max[1]
}

func boundArea(b orb.Bound) float64 {
	return (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
}

// ReferencePoint returns the ray-casting anchor used for every query against
// polygons enclosed by bound: one unit below and left of its minimum corner.
func ReferencePoint(bound orb.Bound) orb.Point {
	return orb.Point{bound.Min[0] - 1.0, bound.Min[1] - 1.0}
}
