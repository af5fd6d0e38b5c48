package tiling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunaifei/HistomicsTK/internal/slide"
)

func wsiMeta(w, h int, mag float64) slide.Metadata {
	return slide.Metadata{Width: w, Height: h, Magnification: &mag}
}

func TestPlanWholeImagePositions(t *testing.T) {
	meta := wsiMeta(4096, 2048, 20)
	grid, err := Plan(meta, Options{TileSize: 1024, Magnification: 20})
	require.NoError(t, err)

	assert.Equal(t, 4, grid.Cols)
	assert.Equal(t, 2, grid.Rows)
	require.Equal(t, 8, grid.Count())

	// Positions must be exactly {0..N-1} in order, no gaps or duplicates.
	for i, spec := range grid.Specs {
		assert.Equal(t, i, spec.Position)
	}
}

func TestPlanRegionSentinelSelectsWholeImage(t *testing.T) {
	meta := wsiMeta(3000, 3000, 20)

	whole, err := Plan(meta, Options{TileSize: 1024, Magnification: 20, Region: []int{-1, -1, -1, -1}})
	require.NoError(t, err)
	assert.Equal(t, meta.Bounds(), whole.Region)

	sub, err := Plan(meta, Options{TileSize: 256, Magnification: 20, Region: []int{100, 100, 500, 500}})
	require.NoError(t, err)
	assert.Equal(t, 100, sub.Region.X)
	assert.Equal(t, 100, sub.Region.Y)
	assert.Equal(t, 500, sub.Region.Width)
	assert.Equal(t, 500, sub.Region.Height)

	// Every planned tile stays inside the sub-rectangle.
	for _, spec := range sub.Specs {
		assert.True(t, sub.Region.ContainsRect(spec.Region),
			"tile %d region %+v escapes %+v", spec.Position, spec.Region, sub.Region)
	}
}

func TestPlanRejectsMalformedRegions(t *testing.T) {
	meta := wsiMeta(1000, 1000, 20)

	tests := []struct {
		name   string
		region []int
	}{
		{"too few bounds", []int{10, 10, 50}},
		{"too many bounds", []int{10, 10, 50, 50, 50}},
		{"negative origin", []int{-5, 10, 50, 50}},
		{"zero width", []int{10, 10, 0, 50}},
		{"outside slide", []int{900, 900, 200, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(meta, Options{TileSize: 256, Magnification: 20, Region: tt.region})
			require.Error(t, err)

			var regionErr *InvalidRegionError
			assert.True(t, errors.As(err, &regionErr), "want InvalidRegionError, got %v", err)
		})
	}
}

func TestPlanDownsamplesToAnalysisMagnification(t *testing.T) {
	// 40x native, 20x analysis: each 512px analysis tile covers 1024 base px.
	meta := wsiMeta(2048, 1024, 40)
	grid, err := Plan(meta, Options{TileSize: 512, Magnification: 20})
	require.NoError(t, err)

	assert.Equal(t, 2.0, grid.Downsample)
	assert.Equal(t, 2, grid.Cols)
	assert.Equal(t, 1, grid.Rows)
	require.Equal(t, 2, grid.Count())
	assert.Equal(t, 1024, grid.Specs[0].Region.Width)
	assert.Equal(t, 512, grid.Specs[0].Width)
}

func TestPlanClipsEdgeTiles(t *testing.T) {
	meta := wsiMeta(1100, 600, 20)
	grid, err := Plan(meta, Options{TileSize: 512, Magnification: 20})
	require.NoError(t, err)

	require.Equal(t, 3, grid.Cols)
	require.Equal(t, 2, grid.Rows)

	last := grid.Specs[len(grid.Specs)-1]
	assert.Equal(t, 76, last.Region.Width)
	assert.Equal(t, 88, last.Region.Height)
	assert.Equal(t, 76, last.Width)
	assert.Equal(t, 88, last.Height)

	// Tiles must partition the region: areas sum to the region area.
	var total int
	for _, spec := range grid.Specs {
		total += spec.Region.Area()
	}
	assert.Equal(t, grid.Region.Area(), total)
}

func TestPlanNonPyramidalIsNativeScale(t *testing.T) {
	meta := slide.Metadata{Width: 800, Height: 600}
	grid, err := Plan(meta, Options{TileSize: 1024, Magnification: 20})
	require.NoError(t, err)

	assert.Equal(t, 1.0, grid.Downsample)
	require.Equal(t, 1, grid.Count())
	assert.Equal(t, meta.Bounds(), grid.Specs[0].Region)
}

func TestPlanRejectsNonPositiveTileSize(t *testing.T) {
	_, err := Plan(wsiMeta(100, 100, 20), Options{TileSize: 0, Magnification: 20})
	assert.Error(t, err)
}
