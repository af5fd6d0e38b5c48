package slide

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	return img
}

func TestMagnificationFromDPI(t *testing.T) {
	tests := []struct {
		dpi     float64
		wantMag float64
		wantOK  bool
	}{
		{50800, 20, true},
		{101600, 40, true},
		{2540, 1, true},
		{600, 0, false}, // ordinary photo scanner range
		{0, 0, false},
		{-300, 0, false},
	}
	for _, tt := range tests {
		mag, ok := magnificationFromDPI(tt.dpi)
		assert.Equal(t, tt.wantOK, ok, "dpi %g", tt.dpi)
		if tt.wantOK {
			assert.InDelta(t, tt.wantMag, mag, 1e-9, "dpi %g", tt.dpi)
		}
	}
}

func TestNewLocalSourceMetadata(t *testing.T) {
	img := gradientImage(300, 200)

	wsi := NewLocalSource(img, 40)
	meta := wsi.Metadata()
	assert.Equal(t, 300, meta.Width)
	assert.Equal(t, 200, meta.Height)
	require.True(t, meta.IsPyramidal())
	assert.Equal(t, 40.0, *meta.Magnification)

	flat := NewLocalSource(img, 0)
	assert.False(t, flat.Metadata().IsPyramidal())
}

func TestReadTileCrop(t *testing.T) {
	src := NewLocalSource(gradientImage(100, 100), 0)

	tile, err := src.ReadTile(geometry.NewRectInt(10, 20, 30, 40), 30, 40)
	require.NoError(t, err)
	assert.Equal(t, 30, tile.Bounds().Dx())
	assert.Equal(t, 40, tile.Bounds().Dy())

	// 1:1 extraction preserves source pixels.
	got := tile.RGBAAt(0, 0)
	assert.Equal(t, uint8(10), got.R)
	assert.Equal(t, uint8(20), got.G)
}

func TestReadTileDownscale(t *testing.T) {
	src := NewLocalSource(gradientImage(200, 200), 0)

	tile, err := src.ReadTile(geometry.NewRectInt(0, 0, 200, 200), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, tile.Bounds().Dx())
	assert.Equal(t, 50, tile.Bounds().Dy())
}

func TestReadTileRejectsBadRequests(t *testing.T) {
	src := NewLocalSource(gradientImage(100, 100), 0)

	_, err := src.ReadTile(geometry.NewRectInt(90, 90, 20, 20), 20, 20)
	assert.Error(t, err, "region outside bounds")

	_, err = src.ReadTile(geometry.RectInt{}, 10, 10)
	assert.Error(t, err, "empty region")

	_, err = src.ReadTile(geometry.NewRectInt(0, 0, 10, 10), 0, 10)
	assert.Error(t, err, "zero output width")
}

func TestOpenPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, gradientImage(64, 48)))
	require.NoError(t, f.Close())

	src, err := Open(path)
	require.NoError(t, err)
	meta := src.Metadata()
	assert.Equal(t, 64, meta.Width)
	assert.Equal(t, 48, meta.Height)
	assert.False(t, meta.IsPyramidal(), "PNG has no magnification metadata")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.tif"))
	assert.Error(t, err)
}
