package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sunaifei/HistomicsTK/internal/features"
	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// FeatureToggles selects which feature groups are computed.
type FeatureToggles struct {
	Morphometry bool
	Intensity   bool
	Gradient    bool
}

// AllFeatures enables every feature group.
func AllFeatures() FeatureToggles {
	return FeatureToggles{Morphometry: true, Intensity: true, Gradient: true}
}

var (
	morphometryColumns = []string{
		"Size.Area",
		"Size.Perimeter",
		"Size.EquivalentDiameter",
		"Shape.Circularity",
		"Shape.Extent",
		"Shape.AspectRatio",
	}
	intensityColumns = []string{
		"Intensity.Mean",
		"Intensity.Std",
		"Intensity.Min",
		"Intensity.Max",
	}
	gradientColumns = []string{
		"Gradient.Mag.Mean",
		"Gradient.Mag.Std",
	}
)

// FeatureColumns returns the column names for the enabled groups, in
// group order. Every tile in a run shares the same toggle set, so every
// per-tile table has identical columns.
func FeatureColumns(toggles FeatureToggles) []string {
	var cols []string
	if toggles.Morphometry {
		cols = append(cols, morphometryColumns...)
	}
	if toggles.Intensity {
		cols = append(cols, intensityColumns...)
	}
	if toggles.Gradient {
		cols = append(cols, gradientColumns...)
	}
	return cols
}

// ComputeFeatures builds the per-nucleus feature table for one tile.
// Rows are emitted in nucleus order, one row per nucleus.
func ComputeFeatures(nuclei []Nucleus, hema Plane, toggles FeatureToggles) (*features.Table, error) {
	tbl := features.NewTable(FeatureColumns(toggles))
	for _, nucleus := range nuclei {
		row := make([]float64, 0, len(tbl.Columns()))
		if toggles.Morphometry {
			row = append(row, morphometryFeatures(nucleus)...)
		}
		if toggles.Intensity {
			row = append(row, intensityFeatures(nucleus, hema)...)
		}
		if toggles.Gradient {
			row = append(row, gradientFeatures(nucleus, hema)...)
		}
		if err := tbl.Append(row); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func morphometryFeatures(n Nucleus) []float64 {
	extent := 0.0
	if a := n.BBox.Area(); a > 0 {
		extent = n.Area / float64(a)
	}
	aspect := 0.0
	if n.BBox.Height > 0 {
		aspect = float64(n.BBox.Width) / float64(n.BBox.Height)
	}
	return []float64{
		n.Area,
		n.Perimeter,
		geometry.EquivalentDiameter(n.Area),
		geometry.Circularity(n.Area, n.Perimeter),
		extent,
		aspect,
	}
}

func intensityFeatures(n Nucleus, hema Plane) []float64 {
	values := interiorValues(n, hema)
	if len(values) == 0 {
		return []float64{0, 0, 0, 0}
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return []float64{
		stat.Mean(values, nil),
		stdOrZero(values),
		minV,
		maxV,
	}
}

func gradientFeatures(n Nucleus, hema Plane) []float64 {
	var mags []float64
	forEachInteriorPixel(n, func(x, y int) {
		gx := (hema.At(x+1, y) - hema.At(x-1, y)) / 2
		gy := (hema.At(x, y+1) - hema.At(x, y-1)) / 2
		mags = append(mags, math.Sqrt(gx*gx+gy*gy))
	})
	if len(mags) == 0 {
		return []float64{0, 0}
	}
	return []float64{stat.Mean(mags, nil), stdOrZero(mags)}
}

// interiorValues samples the hematoxylin concentration at every pixel
// inside the nucleus boundary.
func interiorValues(n Nucleus, hema Plane) []float64 {
	var values []float64
	forEachInteriorPixel(n, func(x, y int) {
		values = append(values, hema.At(x, y))
	})
	return values
}

func forEachInteriorPixel(n Nucleus, fn func(x, y int)) {
	for y := n.BBox.Y; y < n.BBox.Y+n.BBox.Height; y++ {
		for x := n.BBox.X; x < n.BBox.X+n.BBox.Width; x++ {
			p := geometry.Point2D{X: float64(x), Y: float64(y)}
			if geometry.PointInPolygon(p, n.Boundary) {
				fn(x, y)
			}
		}
	}
}

// stdOrZero is stat.StdDev with the single-sample case pinned to zero
// (StdDev returns NaN for n < 2).
func stdOrZero(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}
