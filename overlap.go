package main

import (
	"github.com/golang/glog"
	"github.com/paulmach/orb"
)

// OverlapPair names two polygons sharing interior area. A < B.
type OverlapPair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// FindOverlaps reports polygon pairs that overlap: their boundaries cross, or
// a vertex of one lies inside the other. Candidates come from bounding box
// intersection in the region index. Polygons that only touch along an edge or
// at a corner are not reported.
func FindOverlaps(store *PolygonStore, regions *RegionIndex) []OverlapPair {
	var pairs []OverlapPair

	for i := 0; i < store.Len(); i++ {
		a := store.Polygon(i)
		for _, j := range regions.QueryRegion(a.Bound) {
			if j <= i {
				continue
			}
			if polygonsOverlap(a, store.Polygon(j)) {
				pairs = append(pairs, OverlapPair{A: i, B: j})
			}
		}
	}

	return pairs
}

// LogOverlaps warns about every overlapping pair.
func LogOverlaps(pairs []OverlapPair) {
	for _, p := range pairs {
		glog.Warningf("Polygons %d and %d overlap; points in both resolve to polygon %d", p.A, p.B, p.A)
	}
	if len(pairs) > 0 {
		glog.Warningf("%d overlapping polygon pairs found", len(pairs))
	}
}

// polygonsOverlap checks if a and b share interior area
func polygonsOverlap(a, b *Polygon) bool {
	if len(a.Vertices) < 3 || len(b.Vertices) < 3 {
		return false
	}

	// Quick bounding box check first
	if !boundsOverlap(a.Bound, b.Bound) {
		return false
	}

	ref := ReferencePoint(a.Bound.Union(b.Bound))

	// A vertex strictly inside the other polygon
	for _, v := range a.Vertices {
		if strictlyInside(b.Bound, v) && b.Contains(ref, v) && !onBoundary(b, v) {
			return true
		}
	}
	for _, v := range b.Vertices {
		if strictlyInside(a.Bound, v) && a.Contains(ref, v) && !onBoundary(a, v) {
			return true
		}
	}

	// Edges crossing each other
	na, nb := len(a.Vertices), len(b.Vertices)
	for i := 0; i < na; i++ {
		ea := LineSegment{P1: a.Vertices[i], P2: a.Vertices[(i+1)%na]}
		for j := 0; j < nb; j++ {
			eb := LineSegment{P1: b.Vertices[j], P2: b.Vertices[(j+1)%nb]}
			if DoSegmentsCross(ea, eb) {
				return true
			}
		}
	}

	return false
}

// onBoundary checks whether v lies on one of the edges of p
func onBoundary(p *Polygon, v orb.Point) bool {
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		a, b := p.Vertices[i], p.Vertices[(i+1)%n]
		if direction(a, b, v) != 0 {
			continue
		}
		if v[0] >= min(a[0], b[0]) && v[0] <= max(a[0], b[0]) &&
			v[1] >= min(a[1], b[1]) && v[1] <= max(a[1], b[1]) {
			return true
		}
	}
	return false
}
