package main

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrMissingLimits is returned when limits are needed but not all are set.
var ErrMissingLimits = errors.New("xmin, xmax, ymin and ymax are all required")

// Limits holds the optional user overrides of the working rectangle. A nil
// field keeps the value derived from the polygons.
type Limits struct {
	XMin, XMax, YMin, YMax *float64
}

// Complete reports whether every limit is set.
func (l Limits) Complete() bool {
	return l.XMin != nil && l.XMax != nil && l.YMin != nil && l.YMax != nil
}

// Bound returns the rectangle of a complete set of limits.
func (l Limits) Bound() (orb.Bound, error) {
	if !l.Complete() {
		return orb.Bound{}, ErrMissingLimits
	}
	return l.Apply(orb.Bound{}), nil
}

// Apply replaces the sides of bound that have an override.
func (l Limits) Apply(bound orb.Bound) orb.Bound {
	if l.XMin != nil {
		bound.Min[0] = *l.XMin
	}
	if l.XMax != nil {
		bound.Max[0] = *l.XMax
	}
	if l.YMin != nil {
		bound.Min[1] = *l.YMin
	}
	if l.YMax != nil {
		bound.Max[1] = *l.YMax
	}
	return bound
}

// Workspace is the rectangle a command works over together with the ray
// anchor for every containment query.
type Workspace struct {
	Bound orb.Bound
	Ref   orb.Point
}

// NewWorkspace applies the limits to the polygon bound. The reference point
// is taken below and left of both, so it stays outside every polygon whatever
// the limits are.
func NewWorkspace(polygons orb.Bound, l Limits) (Workspace, error) {
	bound := l.Apply(polygons)
	if bound.Min[0] >= bound.Max[0] || bound.Min[1] >= bound.Max[1] {
		return Workspace{}, errors.Errorf("empty working rectangle: %s", formatLimits(bound))
	}

	ws := Workspace{
		Bound: bound,
		Ref:   ReferencePoint(bound.Union(polygons)),
	}
	glog.Infof("Limits: %s", formatLimits(bound))
	return ws, nil
}

// formatLimits prints a bound the way it would be given on the command line
func formatLimits(b orb.Bound) string {
	return fmt.Sprintf("--xmin %g --xmax %g --ymin %g --ymax %g", b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}
