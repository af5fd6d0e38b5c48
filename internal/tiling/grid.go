// Package tiling plans the tile grid covering a slide (or a sub-region)
// at a chosen analysis magnification. Planning is a pure function over
// slide metadata: positions are assigned once, in row-major order, and
// never renumbered.
package tiling

import (
	"fmt"

	"github.com/sunaifei/HistomicsTK/internal/slide"
	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// WholeImageRegion is the sentinel region meaning "analyze the full
// slide extent".
var WholeImageRegion = []int{-1, -1, -1, -1}

// InvalidRegionError reports a malformed or out-of-bounds analysis region.
// Regions that extend outside the slide are rejected, not clamped.
type InvalidRegionError struct {
	Region []int
	Reason string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid analysis region %v: %s", e.Region, e.Reason)
}

// TileSpec identifies one planned tile. Position is the tile's row-major
// index in the grid; Region is the covered area in base pixels; Width and
// Height are the tile dimensions at the analysis magnification.
type TileSpec struct {
	Position int              `json:"position"`
	Region   geometry.RectInt `json:"region"`
	Scale    float64          `json:"scale"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
}

// Options configures grid planning.
type Options struct {
	// TileSize is the tile edge length in pixels at the analysis
	// magnification.
	TileSize int

	// Magnification is the target analysis magnification. Ignored for
	// non-pyramidal slides, which are always analyzed at native scale.
	Magnification float64

	// Region restricts analysis to a base-pixel rectangle given as
	// {left, top, width, height}. The WholeImageRegion sentinel (or a
	// nil slice) selects the full slide.
	Region []int
}

// Grid is the planned tile set.
type Grid struct {
	Specs []TileSpec
	Cols  int
	Rows  int

	// Downsample is the number of base pixels per analysis pixel.
	Downsample float64

	// Region is the resolved analysis region in base pixels.
	Region geometry.RectInt
}

// Count returns the total number of planned tiles.
func (g *Grid) Count() int {
	return len(g.Specs)
}

// Plan computes the ordered tile set covering the analysis region.
func Plan(meta slide.Metadata, opts Options) (*Grid, error) {
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", opts.TileSize)
	}

	region, err := resolveRegion(meta, opts.Region)
	if err != nil {
		return nil, err
	}

	downsample := 1.0
	if meta.IsPyramidal() && opts.Magnification > 0 {
		downsample = *meta.Magnification / opts.Magnification
		if downsample < 1 {
			// Analysis above native magnification would require
			// upsampling; pin to native scale instead.
			downsample = 1
		}
	}

	// Tile edge length in base pixels.
	baseTile := int(float64(opts.TileSize)*downsample + 0.5)
	if baseTile < 1 {
		baseTile = 1
	}

	cols := (region.Width + baseTile - 1) / baseTile
	rows := (region.Height + baseTile - 1) / baseTile

	specs := make([]TileSpec, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			r := geometry.RectInt{
				X:      region.X + col*baseTile,
				Y:      region.Y + row*baseTile,
				Width:  baseTile,
				Height: baseTile,
			}
			// Edge tiles are clipped to the region; partial tiles keep
			// their true (smaller) analysis dimensions.
			r = r.Intersect(region)

			specs = append(specs, TileSpec{
				Position: row*cols + col,
				Region:   r,
				Scale:    opts.Magnification,
				Width:    scaledDim(r.Width, downsample),
				Height:   scaledDim(r.Height, downsample),
			})
		}
	}

	return &Grid{
		Specs:      specs,
		Cols:       cols,
		Rows:       rows,
		Downsample: downsample,
		Region:     region,
	}, nil
}

// IsWholeImage reports whether the region selects the full slide, either
// by omission or by the [-1,-1,-1,-1] sentinel.
func IsWholeImage(region []int) bool {
	if len(region) == 0 {
		return true
	}
	if len(region) != 4 {
		return false
	}
	for _, v := range region {
		if v != -1 {
			return false
		}
	}
	return true
}

func resolveRegion(meta slide.Metadata, region []int) (geometry.RectInt, error) {
	full := meta.Bounds()
	if IsWholeImage(region) {
		return full, nil
	}

	if len(region) != 4 {
		return geometry.RectInt{}, &InvalidRegionError{
			Region: region,
			Reason: fmt.Sprintf("expected 4 elements, got %d", len(region)),
		}
	}

	r := geometry.NewRectInt(region[0], region[1], region[2], region[3])
	if r.X < 0 || r.Y < 0 {
		return geometry.RectInt{}, &InvalidRegionError{
			Region: region,
			Reason: "negative origin",
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return geometry.RectInt{}, &InvalidRegionError{
			Region: region,
			Reason: "non-positive width or height",
		}
	}
	if !full.ContainsRect(r) {
		return geometry.RectInt{}, &InvalidRegionError{
			Region: region,
			Reason: fmt.Sprintf("extends outside slide bounds %dx%d", meta.Width, meta.Height),
		}
	}
	return r, nil
}

func scaledDim(base int, downsample float64) int {
	d := int(float64(base)/downsample + 0.5)
	if d < 1 {
		d = 1
	}
	return d
}
