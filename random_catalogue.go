package main

import (
	"bufio"
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// CoordType tells how the working rectangle maps onto the sky.
type CoordType int

const (
	Cartesian CoordType = iota
	Spherical           // x, y are RA, Dec in degrees
)

// ParseCoordType accepts "cart" or "spher".
func ParseCoordType(s string) (CoordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cart", "cartesian":
		return Cartesian, nil
	case "spher", "spherical", "radec":
		return Spherical, nil
	}
	return 0, errors.Errorf("unknown coordinate type %q (cart or spher)", s)
}

func (c CoordType) String() string {
	if c == Spherical {
		return "spher"
	}
	return "cart"
}

const deg = math.Pi / 180.0

// Area returns the area of bound: dx*dy for cartesian coordinates, square
// degrees for spherical ones.
func Area(bound orb.Bound, coord CoordType) float64 {
	dx := bound.Max[0] - bound.Min[0]
	if coord == Spherical {
		return dx * (math.Sin(bound.Max[1]*deg) - math.Sin(bound.Min[1]*deg)) / deg
	}
	return dx * (bound.Max[1] - bound.Min[1])
}

// RandomOptions configures GenerateRandomCatalogue.
type RandomOptions struct {
	NPart           int64
	ConstantDensity bool // NPart is a density per unit area
	Coord           CoordType
	Format          Format
	Seed            int64
	Space           Workspace
}

// RandomStats counts what GenerateRandomCatalogue did.
type RandomStats struct {
	Area      float64 `json:"area"`
	Generated int64   `json:"generated"`
	Written   int64   `json:"written"`
}

// GenerateRandomCatalogue writes points drawn uniformly over the working
// rectangle to w. With an index, points are flagged and filtered like
// FlagCatalogue does; with a nil index every point is written.
func GenerateRandomCatalogue(ctx context.Context, idx *SpatialIndex, w io.Writer, opts RandomOptions) (RandomStats, error) {
	var stats RandomStats
	bound := opts.Space.Bound
	if bound.Min[0] >= bound.Max[0] || bound.Min[1] >= bound.Max[1] {
		return stats, errors.Errorf("empty working rectangle: %s", formatLimits(bound))
	}
	if opts.Format == 0 {
		opts.Format = FormatOutside
	}

	stats.Area = Area(bound, opts.Coord)
	npart := opts.NPart
	if opts.ConstantDensity {
		npart = int64(math.Round(float64(opts.NPart) * stats.Area))
	}
	if npart < 0 {
		return stats, errors.Errorf("negative number of objects (%d)", npart)
	}
	glog.Infof("Area = %f", stats.Area)
	glog.Infof("Creating a random catalogue with N = %s objects, format %s, coordinates %s",
		humanize.Comma(npart), opts.Format, opts.Coord)

	gen := NewGenerator(opts.Seed)
	bw := bufio.NewWriter(w)
	prog := newProgress("random", int(npart))
	ylo, yhi := bound.Min[1], bound.Max[1]
	if opts.Coord == Spherical {
		ylo, yhi = math.Sin(ylo*deg), math.Sin(yhi*deg)
	}

	buf := make([]byte, 0, 64)
	var reported int64
	for i := int64(0); i < npart; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, errors.Wrap(err, "generating random catalogue")
			}
			prog.Add(int(i - reported))
			reported = i
		}

		q := orb.Point{gen.Flat(bound.Min[0], bound.Max[0]), gen.Flat(ylo, yhi)}
		if opts.Coord == Spherical {
			q[1] = math.Asin(q[1]) / deg
		}
		stats.Generated++

		buf = strconv.AppendFloat(buf[:0], q[0], 'f', 6, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, q[1], 'f', 6, 64)

		if idx != nil {
			flag := 1
			if _, inside := idx.Contains(opts.Space.Ref, q); inside {
				flag = 0
			}
			if !opts.Format.keeps(flag) {
				continue
			}
			if opts.Format == FormatAll {
				buf = append(buf, ' ')
				buf = strconv.AppendInt(buf, int64(flag), 10)
			}
		}
		buf = append(buf, '\n')

		if _, err := bw.Write(buf); err != nil {
			return stats, errors.Wrap(err, "writing random catalogue")
		}
		stats.Written++
	}

	if err := bw.Flush(); err != nil {
		return stats, errors.Wrap(err, "writing random catalogue")
	}
	prog.Add(int(npart - reported))
	prog.Finish()
	return stats, nil
}
