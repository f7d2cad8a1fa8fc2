package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareWorkspace(t *testing.T, l Limits) (*SpatialIndex, Workspace) {
	t.Helper()
	idx := mustIndex(t, square(0, 0, 4))
	ws, err := NewWorkspace(idx.Store().Bound(), l)
	require.NoError(t, err)
	return idx, ws
}

func TestEdgeRounding(t *testing.T) {
	// k*(hi-lo)/n would give 0.6399999999999999 here.
	assert.Equal(t, 0.64, edge(0.1, 0.7, 10, 9))
	assert.Equal(t, 0.1, edge(0.1, 0.7, 10, 0))
	assert.Equal(t, 0.7, edge(0.1, 0.7, 10, 10))
}

func TestRasterizeMask(t *testing.T) {
	idx, ws := squareWorkspace(t, Limits{XMin: f64(-2), XMax: f64(6), YMin: f64(-2), YMax: f64(6)})
	require.Equal(t, orb.Point{-3, -3}, ws.Ref)

	m, err := RasterizeMask(context.Background(), idx, MaskOptions{NX: 4, NY: 4, Workers: 3, Space: ws})
	require.NoError(t, err)

	assert.Equal(t, orb.Point{-1, -1}, m.PixelCenter(0, 0))
	assert.Equal(t, orb.Point{5, 3}, m.PixelCenter(3, 2))
	assert.Equal(t, uint8(0), m.At(1, 2))
	assert.Equal(t, uint8(1), m.At(3, 2))

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "1 1 1 1 \n1 0 0 1 \n1 0 0 1 \n1 1 1 1 \n", buf.String())
}

func TestRasterizeMaskRectangular(t *testing.T) {
	idx, ws := squareWorkspace(t, Limits{XMax: f64(8)})

	m, err := RasterizeMask(context.Background(), idx, MaskOptions{NX: 4, NY: 2, Space: ws})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	// Pixel centres x = 1, 3, 5, 7 and y = 1, 3.
	assert.Equal(t, "0 0 1 1 \n0 0 1 1 \n", buf.String())
}

func TestRasterizeMaskErrors(t *testing.T) {
	idx, ws := squareWorkspace(t, Limits{})

	_, err := RasterizeMask(context.Background(), idx, MaskOptions{NX: 0, NY: 4, Space: ws})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RasterizeMask(ctx, idx, MaskOptions{NX: 16, NY: 16, Space: ws})
	require.True(t, errors.Is(err, context.Canceled))
}
