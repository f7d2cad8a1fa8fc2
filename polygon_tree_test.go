package main

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIndex(t *testing.T, rings ...[]orb.Point) *SpatialIndex {
	t.Helper()
	idx, err := NewIndex(rings)
	require.NoError(t, err)
	return idx
}

func TestContainsSquare(t *testing.T) {
	idx := mustIndex(t, square(0, 0, 4))
	ref := orb.Point{-1, -1}
	require.Equal(t, ref, ReferencePoint(idx.Store().Bound()))

	tests := []struct {
		name string
		q    orb.Point
		want int
	}{
		{"centre", orb.Point{2, 2}, 0},
		{"off centre", orb.Point{0.5, 3.5}, 0},
		{"outside", orb.Point{5, 5}, NoPolygon},
		{"left of square", orb.Point{-0.5, 2}, NoPolygon},
		// Points on the bounding box are rejected before the crossing test.
		{"on vertex", orb.Point{4, 4}, NoPolygon},
		{"on origin", orb.Point{0, 0}, NoPolygon},
		{"on edge", orb.Point{0, 2}, NoPolygon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := idx.Contains(ref, tt.q)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.want != NoPolygon, ok)
		})
	}
}

func TestContainsReferenceInsideIsUndefined(t *testing.T) {
	idx := mustIndex(t, square(0, 0, 4))

	// With ref outside, (2,2) is inside.
	id, ok := idx.Contains(orb.Point{-1, -1}, orb.Point{2, 2})
	require.True(t, ok)
	require.Equal(t, 0, id)

	// ref inside the square breaks the contract: the segment ref->q crosses
	// no edge and interior points come back as outside.
	ref := orb.Point{1, 1}
	for _, q := range []orb.Point{{2, 2}, {3, 1.5}, {0.5, 3}} {
		id, ok := idx.Contains(ref, q)
		assert.False(t, ok, "point %v", q)
		assert.Equal(t, NoPolygon, id)
	}
}

func TestContainsNonConvex(t *testing.T) {
	// An L shape: the notch (3, 3) is inside the bounding box only.
	l := []orb.Point{{0, 0}, {4, 0}, {4, 2}, {2, 2}, {2, 4}, {0, 4}}
	idx := mustIndex(t, l)
	ref := ReferencePoint(idx.Store().Bound())

	_, ok := idx.Contains(ref, orb.Point{3, 3.2})
	assert.False(t, ok)
	_, ok = idx.Contains(ref, orb.Point{3.5, 2.5})
	assert.False(t, ok)

	id, ok := idx.Contains(ref, orb.Point{1, 3})
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	id, ok = idx.Contains(ref, orb.Point{3, 1.2})
	assert.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestContainsDisjoint(t *testing.T) {
	idx := mustIndex(t, square(0, 0, 2), square(3, 3, 2))
	ref := ReferencePoint(idx.Store().Bound())

	id, _ := idx.Contains(ref, orb.Point{1, 0.5})
	assert.Equal(t, 0, id)
	id, _ = idx.Contains(ref, orb.Point{4, 3.5})
	assert.Equal(t, 1, id)
	id, _ = idx.Contains(ref, orb.Point{2.5, 2.7})
	assert.Equal(t, NoPolygon, id)
}

func TestContainsOverlapLowestID(t *testing.T) {
	a := square(0, 0, 4)
	b := square(2, 2, 4)

	idx := mustIndex(t, a, b)
	ref := ReferencePoint(idx.Store().Bound())

	id, _ := idx.Contains(ref, orb.Point{3, 3.5})
	assert.Equal(t, 0, id)
	id, _ = idx.Contains(ref, orb.Point{1, 1.5})
	assert.Equal(t, 0, id)
	id, _ = idx.Contains(ref, orb.Point{5, 5.5})
	assert.Equal(t, 1, id)

	// Same shapes, reversed input: the overlap now belongs to b.
	idx = mustIndex(t, b, a)
	id, _ = idx.Contains(ref, orb.Point{3, 3.5})
	assert.Equal(t, 0, id)
	assert.Equal(t, b, idx.Store().Polygon(id).Vertices)
}

// jitteredQuads returns n*n convex quadrilaterals, one per 3x3 cell.
func jitteredQuads(n int, rnd *rand.Rand) [][]orb.Point {
	j := func() float64 { return 0.3 * rnd.Float64() }

	var rings [][]orb.Point
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			x, y := 3*float64(i), 3*float64(k)
			rings = append(rings, []orb.Point{
				{x + j(), y + j()},
				{x + 2 - j(), y + j()},
				{x + 2 - j(), y + 2 - j()},
				{x + j(), y + 2 - j()},
			})
		}
	}
	return rings
}

func TestContainsVerticesNudgedInward(t *testing.T) {
	rings := jitteredQuads(8, rand.New(rand.NewPCG(1, 2)))
	idx := mustIndex(t, rings...)
	ref := ReferencePoint(idx.Store().Bound())

	for id, ring := range rings {
		centroid, _ := planar.CentroidArea(orb.Polygon{orb.Ring(ring)})
		for _, v := range ring {
			q := orb.Point{
				v[0] + 1e-6*(centroid[0]-v[0]),
				v[1] + 1e-6*(centroid[1]-v[1]),
			}
			got, ok := idx.Contains(ref, q)
			require.True(t, ok, "polygon %d vertex %v", id, v)
			require.Equal(t, id, got, "polygon %d vertex %v", id, v)
		}
	}
}

func TestContainsIdempotent(t *testing.T) {
	rings := jitteredQuads(5, rand.New(rand.NewPCG(3, 4)))
	idx := mustIndex(t, rings...)
	ref := ReferencePoint(idx.Store().Bound())

	rnd := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 1000; i++ {
		q := orb.Point{15 * rnd.Float64(), 15 * rnd.Float64()}
		id1, ok1 := idx.Contains(ref, q)
		id2, ok2 := idx.Contains(ref, q)
		require.Equal(t, id1, id2)
		require.Equal(t, ok1, ok2)
	}
}

// star returns a non-convex star polygon with 2*points vertices around c.
func star(c orb.Point, inner, outer float64, points int, rnd *rand.Rand) []orb.Point {
	var ring []orb.Point
	n := 2 * points
	for i := 0; i < n; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		r *= 0.9 + 0.2*rnd.Float64()
		angle := 2 * math.Pi * (float64(i) + 0.1*rnd.Float64()) / float64(n)
		ring = append(ring, orb.Point{c[0] + r*math.Cos(angle), c[1] + r*math.Sin(angle)})
	}
	return ring
}

func TestContainsMatchesRingContains(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 8))

	var rings [][]orb.Point
	for i := 0; i < 6; i++ {
		for k := 0; k < 6; k++ {
			c := orb.Point{10*float64(i) + 5, 10*float64(k) + 5}
			rings = append(rings, star(c, 1.5, 4.5, 5+rnd.IntN(6), rnd))
		}
	}
	idx := mustIndex(t, rings...)
	ref := ReferencePoint(idx.Store().Bound())

	inside := 0
	for i := 0; i < 20000; i++ {
		q := orb.Point{60 * rnd.Float64(), 60 * rnd.Float64()}

		want := NoPolygon
		for id, ring := range rings {
			if planar.RingContains(orb.Ring(ring), q) {
				want = id
				break
			}
		}

		got, ok := idx.Contains(ref, q)
		require.Equal(t, want, got, "point %v", q)
		if ok {
			inside++
		}
	}
	assert.Greater(t, inside, 0)
}

func TestContainsConcurrent(t *testing.T) {
	rings := jitteredQuads(10, rand.New(rand.NewPCG(9, 10)))
	idx := mustIndex(t, rings...)
	ref := ReferencePoint(idx.Store().Bound())

	rnd := rand.New(rand.NewPCG(11, 12))
	points := make([]orb.Point, 5000)
	want := make([]int, len(points))
	for i := range points {
		points[i] = orb.Point{30 * rnd.Float64(), 30 * rnd.Float64()}
		want[i], _ = idx.Contains(ref, points[i])
	}

	var wg sync.WaitGroup
	got := make([][]int, 8)
	for w := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := make([]int, len(points))
			for i, q := range points {
				res[i], _ = idx.Contains(ref, q)
			}
			got[w] = res
		}()
	}
	wg.Wait()

	for _, res := range got {
		require.Equal(t, want, res)
	}
}

func TestBuildIndexInvariants(t *testing.T) {
	rnd := rand.New(rand.NewPCG(13, 14))
	rings := jitteredQuads(6, rnd)
	// A few large polygons straddling many split lines.
	rings = append(rings, square(1, 1, 14), star(orb.Point{9, 9}, 2, 7, 6, rnd))

	store, err := NewPolygonStore(rings)
	require.NoError(t, err)
	idx, err := BuildIndex(store, store.Bound())
	require.NoError(t, err)

	minArea := store.MeanArea()
	leaves, nodes, depth := 0, 0, 0
	idx.walk(func(n *treeNode, d int) {
		nodes++
		if d > depth {
			depth = d
		}
		for k := 1; k < len(n.members); k++ {
			require.Less(t, n.members[k-1], n.members[k], "members in ascending id order")
		}

		if n.kind == leafNode {
			leaves++
			require.True(t, len(n.members) == 0 || boundArea(n.region) < minArea || d >= maxTreeDepth)
			return
		}

		require.Equal(t, d%2, n.axis, "axis alternates with depth")
		require.Equal(t, (n.region.Min[n.axis]+n.region.Max[n.axis])/2, n.split)
		require.Equal(t, n.split, n.left.region.Max[n.axis])
		require.Equal(t, n.split, n.right.region.Min[n.axis])
		require.Equal(t, n.region.Min, n.left.region.Min)
		require.Equal(t, n.region.Max, n.right.region.Max)

		left := map[int]bool{}
		for _, id := range n.left.members {
			left[id] = true
			require.True(t, boundsOverlap(store.Polygon(id).Bound, n.left.region))
		}
		right := map[int]bool{}
		for _, id := range n.right.members {
			right[id] = true
			require.True(t, boundsOverlap(store.Polygon(id).Bound, n.right.region))
		}

		for _, id := range n.members {
			b := store.Polygon(id).Bound
			require.True(t, left[id] || right[id], "polygon %d lost at split", id)
			if b.Min[n.axis] < n.split && b.Max[n.axis] > n.split {
				require.True(t, left[id] && right[id], "straddling polygon %d in both children", id)
			}
		}
	})

	stats := idx.Stats()
	assert.Equal(t, len(rings), stats.Polygons)
	assert.Equal(t, nodes, stats.Nodes)
	assert.Equal(t, leaves, stats.Leaves)
	assert.Equal(t, depth, stats.Depth)
	assert.Equal(t, minArea, stats.MinArea)
	assert.Greater(t, stats.Depth, 1)
}

func TestDegeneratePolygonNeverContains(t *testing.T) {
	collinear := []orb.Point{{0, 0}, {1, 1}, {2, 2}}
	idx := mustIndex(t, collinear, square(5, 5, 2))
	ref := ReferencePoint(idx.Store().Bound())

	for _, q := range []orb.Point{{1, 1}, {0.5, 0.5}, {1.5, 0.5}, {0.5, 1.5}, {1, 1.0000001}} {
		id, ok := idx.Contains(ref, q)
		assert.False(t, ok, "point %v", q)
		assert.Equal(t, NoPolygon, id)
	}

	id, ok := idx.Contains(ref, orb.Point{6, 6.5})
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestAllZeroAreaTerminates(t *testing.T) {
	// Every bounding box is a segment, so the mean area is zero.
	idx := mustIndex(t,
		[]orb.Point{{0, 1}, {1, 1}, {2, 1}},
		[]orb.Point{{1, 0}, {1, 1}, {1, 2}},
	)
	stats := idx.Stats()
	assert.Equal(t, 0.0, stats.MinArea)
	assert.Equal(t, 1, stats.Nodes)
	assert.Equal(t, 0, stats.Depth)

	for _, q := range []orb.Point{{1, 1}, {0.5, 1}, {1, 0.5}, {1.5, 1.5}} {
		_, ok := idx.Contains(orb.Point{-1, -1}, q)
		assert.False(t, ok, "point %v", q)
	}
}

func TestBuildIndexDegenerateRegion(t *testing.T) {
	_, err := NewIndex([][]orb.Point{{{0, 0}, {1, 0}, {2, 0}}})
	require.True(t, errors.Is(err, ErrDegenerateRegion))

	store, err := NewPolygonStore([][]orb.Point{square(0, 0, 1)})
	require.NoError(t, err)

	_, err = BuildIndex(store, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 1}})
	require.True(t, errors.Is(err, ErrDegenerateRegion))
	assert.Contains(t, err.Error(), "axis 0")

	_, err = BuildIndex(store, orb.Bound{Min: orb.Point{0, 2}, Max: orb.Point{1, 1}})
	require.True(t, errors.Is(err, ErrDegenerateRegion))
	assert.Contains(t, err.Error(), "axis 1")

	_, err = BuildIndex(nil, orb.Bound{Max: orb.Point{1, 1}})
	require.True(t, errors.Is(err, ErrEmptyInput))
}

func TestBuildIndexOverLargerRegion(t *testing.T) {
	store, err := NewPolygonStore([][]orb.Point{square(0, 0, 4)})
	require.NoError(t, err)

	idx, err := BuildIndex(store, orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})
	require.NoError(t, err)

	ref := orb.Point{-11, -11}
	id, ok := idx.Contains(ref, orb.Point{1, 3})
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	_, ok = idx.Contains(ref, orb.Point{-5, 3})
	assert.False(t, ok)
}
