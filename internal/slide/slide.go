// Package slide provides the tiled-image source: slide metadata, tile
// extraction at an analysis scale, and magnification detection.
package slide

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// Metadata describes the addressable extent of a slide.
type Metadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Magnification is the native objective magnification. It is nil for
	// single-resolution images that carry no magnification information;
	// such images take the non-pyramidal analysis path.
	Magnification *float64 `json:"magnification"`
}

// IsPyramidal reports whether the slide has a defined magnification
// hierarchy. Non-pyramidal images are analyzed as a single tile with a
// foreground fraction of 1.0.
func (m Metadata) IsPyramidal() bool {
	return m.Magnification != nil
}

// Bounds returns the full slide extent in base pixels.
func (m Metadata) Bounds() geometry.RectInt {
	return geometry.RectInt{Width: m.Width, Height: m.Height}
}

// Source supplies slide metadata and extracts pixel tiles. Implementations
// must be safe for concurrent ReadTile calls.
type Source interface {
	Metadata() Metadata

	// ReadTile extracts the given base-pixel region and rescales it to
	// width x height pixels at the analysis magnification.
	ReadTile(region geometry.RectInt, width, height int) (*image.RGBA, error)
}

// LocalSource is a Source backed by a fully decoded local image file.
type LocalSource struct {
	img  image.Image
	meta Metadata
}

// Open decodes an image file (TIFF, PNG, or JPEG) into a LocalSource.
// For TIFF inputs the native magnification is inferred from the embedded
// resolution tags; other formats yield a non-pyramidal source.
func Open(path string) (*LocalSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode slide: %w", err)
	}

	src := &LocalSource{img: img}
	src.meta.Width = img.Bounds().Dx()
	src.meta.Height = img.Bounds().Dy()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tiff" || ext == ".tif" {
		if dpi, err := extractTIFFDPI(path); err == nil {
			if mag, ok := magnificationFromDPI(dpi); ok {
				src.meta.Magnification = &mag
			}
		}
	}

	return src, nil
}

// NewLocalSource wraps an already decoded image. A magnification of 0
// means non-pyramidal.
func NewLocalSource(img image.Image, magnification float64) *LocalSource {
	src := &LocalSource{img: img}
	src.meta.Width = img.Bounds().Dx()
	src.meta.Height = img.Bounds().Dy()
	if magnification > 0 {
		src.meta.Magnification = &magnification
	}
	return src
}

// Metadata returns the slide metadata.
func (s *LocalSource) Metadata() Metadata {
	return s.meta
}

// ReadTile extracts region from the base image and rescales it to the
// requested analysis-scale dimensions using nearest-neighbor sampling.
func (s *LocalSource) ReadTile(region geometry.RectInt, width, height int) (*image.RGBA, error) {
	if region.Empty() || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("empty tile request %+v (%dx%d)", region, width, height)
	}
	if !s.meta.Bounds().ContainsRect(region) {
		return nil, fmt.Errorf("tile region %+v outside slide bounds %dx%d",
			region, s.meta.Width, s.meta.Height)
	}

	b := s.img.Bounds()
	srcRect := image.Rect(
		b.Min.X+region.X,
		b.Min.Y+region.Y,
		b.Min.X+region.X+region.Width,
		b.Min.Y+region.Y+region.Height,
	)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), s.img, srcRect, draw.Src, nil)
	return dst, nil
}

// magnificationFromDPI converts scanner resolution to an objective
// magnification using the usual 10 um/pixel-at-1x convention (so 20x is
// ~0.5 um/pixel). Resolutions below slide-scanner range mean the file is
// an ordinary photo, not a whole-slide image.
func magnificationFromDPI(dpi float64) (float64, bool) {
	if dpi <= 0 {
		return 0, false
	}
	mag := dpi / 2540.0
	if mag < 1 {
		return 0, false
	}
	return mag, true
}
