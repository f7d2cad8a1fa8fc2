package main

import (
	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// NoPolygon is the id reported when a point lies outside every polygon.
const NoPolygon = -1

// maxTreeDepth bounds recursion for regions far larger than the mean polygon.
const maxTreeDepth = 64

// ErrDegenerateRegion is returned when the region to index has no extent on an axis.
var ErrDegenerateRegion = errors.New("degenerate index region")

type nodeKind uint8

const (
	leafNode nodeKind = iota
	splitNode
)

// treeNode covers a rectangle of the plane and lists the polygons whose
// bounding boxes overlap it. Split nodes exclusively own their two children.
type treeNode struct {
	kind    nodeKind
	axis    int
	split   float64
	region  orb.Bound
	members []int
	left    *treeNode
	right   *treeNode
}

// IndexStats describes the shape of a built index.
type IndexStats struct {
	Polygons int     `json:"polygons"`
	Nodes    int     `json:"nodes"`
	Leaves   int     `json:"leaves"`
	Depth    int     `json:"depth"`
	MinArea  float64 `json:"minArea"`
}

// SpatialIndex is a binary space-partitioning tree over a PolygonStore.
// Once built it is never modified, so Contains may be called from any number
// of goroutines at once.
type SpatialIndex struct {
	store *PolygonStore
	root  *treeNode
	stats IndexStats
}

// treeBuilder carries the state of a single BuildIndex call.
type treeBuilder struct {
	store   *PolygonStore
	minArea float64
	stats   IndexStats
}

// NewIndex builds a store from rings and indexes it over the union of the
// polygon bounding boxes.
func NewIndex(rings [][]orb.Point) (*SpatialIndex, error) {
	store, err := NewPolygonStore(rings)
	if err != nil {
		return nil, err
	}
	return BuildIndex(store, store.Bound())
}

// BuildIndex partitions the store's polygons over region.
//
// Nodes alternate their split axis with depth, starting with x, and split
// their region at its midpoint. A node becomes a leaf when it holds no
// polygon or its area drops below the mean polygon bounding-box area.
// Polygons whose bounding box straddles a split line are kept in both
// children, and member order is preserved, so leaves list ascending ids.
func BuildIndex(store *PolygonStore, region orb.Bound) (*SpatialIndex, error) {
	if store == nil || store.Len() == 0 {
		return nil, ErrEmptyInput
	}
	for axis := 0; axis < 2; axis++ {
		if region.Min[axis] >= region.Max[axis] {
			return nil, errors.Wrapf(ErrDegenerateRegion, "axis %d spans [%g, %g]",
				axis, region.Min[axis], region.Max[axis])
		}
	}

	b := &treeBuilder{
		store:   store,
		minArea: store.MeanArea(),
	}
	b.stats.Polygons = store.Len()
	b.stats.MinArea = b.minArea

	members := make([]int, store.Len())
	for i := range members {
		members[i] = i
	}
	root := b.build(members, region, 0, 0)

	glog.V(1).Infof("Spatial index built: %d polygons, %d nodes, %d leaves, depth %d, min area %g",
		b.stats.Polygons, b.stats.Nodes, b.stats.Leaves, b.stats.Depth, b.minArea)

	return &SpatialIndex{store: store, root: root, stats: b.stats}, nil
}

func (b *treeBuilder) build(members []int, region orb.Bound, axis, depth int) *treeNode {
	b.stats.Nodes++
	if depth > b.stats.Depth {
		b.stats.Depth = depth
	}

	node := &treeNode{region: region, members: members}

	// A zero mean area means every bounding box is flat. No point is strictly
	// inside one, so splitting could only duplicate members.
	if len(members) == 0 || boundArea(region) < b.minArea || b.minArea <= 0 || depth >= maxTreeDepth {
		node.kind = leafNode
		b.stats.Leaves++
		return node
	}

	node.kind = splitNode
	node.axis = axis
	node.split = (region.Max[axis] + region.Min[axis]) / 2.0

	var left, right []int
	for _, id := range members {
		bound := b.store.polygons[id].Bound
		if bound.Min[axis] < node.split {
			left = append(left, id)
		}
		if bound.Max[axis] > node.split {
			right = append(right, id)
		}
	}

	leftRegion, rightRegion := region, region
	leftRegion.Max[axis] = node.split
	rightRegion.Min[axis] = node.split

	next := 1 - axis
	node.left = b.build(left, leftRegion, next, depth+1)
	node.right = b.build(right, rightRegion, next, depth+1)

	return node
}

// Contains returns the id of the first polygon containing q, or NoPolygon.
//
// ref is the ray-casting anchor and MUST lie strictly outside every polygon
// in the index (ReferencePoint of the indexed bounds satisfies this). It is
// not checked: a ref inside a polygon silently yields wrong answers.
//
// A point is only tested against polygons whose bounding box strictly
// contains it, so points on the outer edge of a bounding box, including
// extreme vertices, are outside. Where polygons overlap, the lowest id in the
// leaf reached by q wins.
func (idx *SpatialIndex) Contains(ref, q orb.Point) (int, bool) {
	n := idx.root
	for n.kind == splitNode {
		if len(n.members) == 0 {
			return NoPolygon, false
		}
		if q[n.axis] < n.split {
			n = n.left
		} else {
			n = n.right
		}
	}

	for _, id := range n.members {
		p := &idx.store.polygons[id]
		if !strictlyInside(p.Bound, q) {
			continue
		}
		if p.Contains(ref, q) {
			return p.ID, true
		}
	}
	return NoPolygon, false
}

// Store returns the indexed polygons.
func (idx *SpatialIndex) Store() *PolygonStore {
	return idx.store
}

// Stats returns node counts gathered during the build.
func (idx *SpatialIndex) Stats() IndexStats {
	return idx.stats
}

// walk visits nodes depth-first, parents before children.
func (idx *SpatialIndex) walk(fn func(n *treeNode, depth int)) {
	var visit func(n *treeNode, depth int)
	visit = func(n *treeNode, depth int) {
		fn(n, depth)
		if n.kind == splitNode {
			visit(n.left, depth+1)
			visit(n.right, depth+1)
		}
	}
	visit(idx.root, 0)
}
