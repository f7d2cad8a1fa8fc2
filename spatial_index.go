package main

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/glog"
	"github.com/paulmach/orb"
)

// polygonEntry wraps a stored polygon for R-tree storage
type polygonEntry struct {
	id   int
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (p *polygonEntry) Bounds() rtreego.Rect {
	return p.bbox
}

// RegionIndex answers rectangle queries ("which polygons have a bounding box
// touching this box") over a PolygonStore. Point containment goes through
// SpatialIndex instead.
type RegionIndex struct {
	tree *rtreego.Rtree
}

// NewRegionIndex indexes the bounding box of every polygon in the store.
func NewRegionIndex(store *PolygonStore) *RegionIndex {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node

	for i := 0; i < store.Len(); i++ {
		bbox, err := boundToRect(store.Polygon(i).Bound)
		if err != nil {
			glog.Warningf("Polygon %d left out of the region index: %v", i, err)
			continue
		}
		tree.Insert(&polygonEntry{id: i, bbox: bbox})
	}

	return &RegionIndex{tree: tree}
}

// QueryRegion returns the ascending ids of polygons whose bounding box
// intersects the given box.
func (ri *RegionIndex) QueryRegion(bound orb.Bound) []int {
	bbox, err := boundToRect(bound)
	if err != nil {
		return []int{}
	}

	results := ri.tree.SearchIntersect(bbox)
	ids := make([]int, 0, len(results))
	for _, item := range results {
		ids = append(ids, item.(*polygonEntry).id)
	}
	sort.Ints(ids)

	return ids
}

// Size returns the number of indexed polygons.
func (ri *RegionIndex) Size() int {
	return ri.tree.Size()
}

// boundToRect converts a bound to an R-tree rectangle. Degenerate sides are
// kept as zero-length intervals.
func boundToRect(b orb.Bound) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0], b.Min[1]},
		rtreego.Point{b.Max[0], b.Max[1]},
	)
}
