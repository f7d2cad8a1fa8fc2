package main

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// MaxVertices is the largest vertex count accepted for a single polygon.
const MaxVertices = 1000

var (
	// ErrEmptyInput is returned when a store or index is built from zero polygons.
	ErrEmptyInput = errors.New("no polygons supplied")
)

// TooManyVerticesError identifies a polygon exceeding MaxVertices.
type TooManyVerticesError struct {
	Position int // index of the polygon in the input
	Count    int // its vertex count
}

func (e *TooManyVerticesError) Error() string {
	return fmt.Sprintf("polygon %d has %d vertices (%d max)", e.Position, e.Count, MaxVertices)
}

// Polygon is a closed planar vertex cycle with its cached bounding box.
// Edge i joins Vertices[i] to Vertices[(i+1)%N].
type Polygon struct {
	ID       int         `json:"id"`
	Vertices []orb.Point `json:"vertices"`
	Bound    orb.Bound   `json:"-"`
}

// Contains tests the polygon alone, without the bounding box pre-check.
// ref must lie outside the polygon.
func (p *Polygon) Contains(ref, q orb.Point) bool {
	return crossingCount(p.Vertices, ref, q)%2 == 1
}

// PolygonStore owns every polygon. Other structures refer to polygons by
// their index, which equals their ID.
type PolygonStore struct {
	polygons []Polygon
	bound    orb.Bound
}

// NewPolygonStore copies rings into an immutable store, in input order.
func NewPolygonStore(rings [][]orb.Point) (*PolygonStore, error) {
	if len(rings) == 0 {
		return nil, ErrEmptyInput
	}

	store := &PolygonStore{polygons: make([]Polygon, len(rings))}
	for i, ring := range rings {
		if len(ring) > MaxVertices {
			return nil, &TooManyVerticesError{Position: i, Count: len(ring)}
		}
		vertices := make([]orb.Point, len(ring))
		copy(vertices, ring)

		store.polygons[i] = Polygon{
			ID:       i,
			Vertices: vertices,
			Bound:    calculateBoundingBox(vertices),
		}
		if i == 0 {
			store.bound = store.polygons[i].Bound
		} else {
			store.bound = store.bound.Union(store.polygons[i].Bound)
		}
	}

	return store, nil
}

// Len returns the number of polygons.
func (s *PolygonStore) Len() int {
	return len(s.polygons)
}

// Polygon returns the polygon with the given id. The result must not be modified.
func (s *PolygonStore) Polygon(id int) *Polygon {
	return &s.polygons[id]
}

// Bound returns the union of all polygon bounding boxes.
func (s *PolygonStore) Bound() orb.Bound {
	return s.bound
}

// MeanArea returns the mean bounding-box area over all polygons.
func (s *PolygonStore) MeanArea() float64 {
	sum := 0.0
	for i := range s.polygons {
		sum += boundArea(s.polygons[i].Bound)
	}
	return sum / float64(len(s.polygons))
}

// calculateBoundingBox computes the axis-aligned bounding box of a vertex list
func calculateBoundingBox(vertices []orb.Point) orb.Bound {
	if len(vertices) == 0 {
		return orb.Bound{}
	}

	b := orb.Bound{Min: vertices[0], Max: vertices[0]}
	for _, v := range vertices[1:] {
		b = b.Extend(v)
	}
	return b
}
