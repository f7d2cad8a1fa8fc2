package main

import (
	"bufio"
	"context"
	"io"
	"runtime"
	"strconv"

	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MaskOptions configures RasterizeMask.
type MaskOptions struct {
	NX, NY  int
	Workers int
	Space   Workspace
}

// Mask is a binary raster over a working rectangle: 1 where the pixel centre
// is outside every polygon, 0 where it is inside one.
type Mask struct {
	NX, NY int
	Bound  orb.Bound
	values []uint8 // column major, pixel (i, j) at i*NY+j
}

// At returns the value of pixel (i, j).
func (m *Mask) At(i, j int) uint8 {
	return m.values[i*m.NY+j]
}

// PixelCenter returns the centre of pixel (i, j).
func (m *Mask) PixelCenter(i, j int) orb.Point {
	return orb.Point{
		(edge(m.Bound.Min[0], m.Bound.Max[0], m.NX, i) + edge(m.Bound.Min[0], m.Bound.Max[0], m.NX, i+1)) / 2.0,
		(edge(m.Bound.Min[1], m.Bound.Max[1], m.NY, j) + edge(m.Bound.Min[1], m.Bound.Max[1], m.NY, j+1)) / 2.0,
	}
}

// edge returns the k-th of n+1 uniform bin edges over [lo, hi], rounded the
// way gsl_histogram2d_set_ranges_uniform rounds them.
func edge(lo, hi float64, n, k int) float64 {
	return lo + (float64(k)/float64(n))*(hi-lo)
}

// RasterizeMask classifies the centre of every pixel of an NX by NY grid.
// Columns are spread over Workers goroutines.
func RasterizeMask(ctx context.Context, idx *SpatialIndex, opts MaskOptions) (*Mask, error) {
	if opts.NX <= 0 || opts.NY <= 0 {
		return nil, errors.Errorf("invalid mask size %dx%d", opts.NX, opts.NY)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	m := &Mask{
		NX:     opts.NX,
		NY:     opts.NY,
		Bound:  opts.Space.Bound,
		values: make([]uint8, opts.NX*opts.NY),
	}
	ref := opts.Space.Ref
	prog := newProgress("mask", opts.NX*opts.NY)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < m.NX; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			column := m.values[i*m.NY : (i+1)*m.NY]
			for j := range column {
				if _, inside := idx.Contains(ref, m.PixelCenter(i, j)); !inside {
					column[j] = 1
				}
			}
			prog.Add(m.NY)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "rasterizing mask")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "rasterizing mask")
	}

	prog.Finish()
	glog.V(1).Infof("Mask %dx%d over %s", m.NX, m.NY, formatLimits(m.Bound))
	return m, nil
}

// WriteTo writes NY lines of NX space-terminated values, line j holding
// pixels (0, j) to (NX-1, j).
func (m *Mask) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	buf := make([]byte, 0, 4)
	for j := 0; j < m.NY; j++ {
		for i := 0; i < m.NX; i++ {
			buf = strconv.AppendUint(buf[:0], uint64(m.At(i, j)), 10)
			buf = append(buf, ' ')
			k, err := bw.Write(buf)
			n += int64(k)
			if err != nil {
				return n, errors.Wrap(err, "writing mask")
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, errors.Wrap(err, "writing mask")
		}
		n++
	}
	return n, errors.Wrap(bw.Flush(), "writing mask")
}
