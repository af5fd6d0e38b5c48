package analysis

import (
	"context"
	"fmt"

	"github.com/sunaifei/HistomicsTK/internal/annotations"
	"github.com/sunaifei/HistomicsTK/internal/dispatch"
	"github.com/sunaifei/HistomicsTK/internal/slide"
	"github.com/sunaifei/HistomicsTK/internal/tiling"
	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// Params is the immutable per-run analysis configuration shared by every
// tile task.
type Params struct {
	ReferenceMuLAB  [3]float64
	ReferenceStdLAB [3]float64

	Format annotations.Format

	// MinNucleusArea and MaxNucleusArea bound accepted nucleus sizes in
	// analysis-scale pixels. MaxNucleusArea <= 0 means unbounded.
	MinNucleusArea float64
	MaxNucleusArea float64

	// ForegroundThreshold overrides the Otsu threshold on the
	// hematoxylin concentration when > 0.
	ForegroundThreshold float64

	Features FeatureToggles
}

// Analyzer runs the full per-tile pipeline against a slide source. It is
// safe for concurrent AnalyzeTile calls.
type Analyzer struct {
	Source slide.Source
	Stains StainMatrix
	Params Params
}

// NewAnalyzer builds an Analyzer with the standard H&E stain matrix.
func NewAnalyzer(src slide.Source, params Params) *Analyzer {
	return &Analyzer{Source: src, Stains: HEStainMatrix(), Params: params}
}

// AnalyzeTile extracts one tile, normalizes and deconvolves it, segments
// nuclei on the hematoxylin channel, and computes the feature row for
// each nucleus. Annotation coordinates are mapped back to slide base
// pixels; the returned annotation count always equals the feature-row
// count.
func (a *Analyzer) AnalyzeTile(ctx context.Context, spec tiling.TileSpec) (dispatch.TileResult, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.TileResult{}, err
	}

	img, err := a.Source.ReadTile(spec.Region, spec.Width, spec.Height)
	if err != nil {
		return dispatch.TileResult{}, fmt.Errorf("failed to read tile: %w", err)
	}

	normalized := ReinhardNormalize(img, a.Params.ReferenceMuLAB, a.Params.ReferenceStdLAB)

	planes, err := Deconvolve(normalized, a.Stains)
	if err != nil {
		return dispatch.TileResult{}, err
	}
	hema := planes[0]

	nuclei := SegmentNuclei(hema, a.Params.MinNucleusArea, a.Params.MaxNucleusArea,
		a.Params.ForegroundThreshold)

	tbl, err := ComputeFeatures(nuclei, hema, a.Params.Features)
	if err != nil {
		return dispatch.TileResult{}, fmt.Errorf("feature computation failed: %w", err)
	}

	annots := make([]annotations.NucleusAnnotation, len(nuclei))
	for i, nucleus := range nuclei {
		annots[i] = a.annotate(nucleus, spec)
	}

	return dispatch.TileResult{
		Position:    spec.Position,
		Annotations: annots,
		Features:    tbl,
	}, nil
}

// annotate converts a nucleus from tile coordinates into a base-pixel
// annotation in the configured format.
func (a *Analyzer) annotate(n Nucleus, spec tiling.TileSpec) annotations.NucleusAnnotation {
	// Base pixels per analysis pixel for this tile.
	sx := 1.0
	sy := 1.0
	if spec.Width > 0 {
		sx = float64(spec.Region.Width) / float64(spec.Width)
	}
	if spec.Height > 0 {
		sy = float64(spec.Region.Height) / float64(spec.Height)
	}

	if a.Params.Format == annotations.FormatBBox {
		box := geometry.RectInt{
			X:      spec.Region.X + int(float64(n.BBox.X)*sx+0.5),
			Y:      spec.Region.Y + int(float64(n.BBox.Y)*sy+0.5),
			Width:  int(float64(n.BBox.Width)*sx + 0.5),
			Height: int(float64(n.BBox.Height)*sy + 0.5),
		}
		return annotations.NewBBox(box)
	}

	points := make([]geometry.Point2D, len(n.Boundary))
	for i, p := range n.Boundary {
		points[i] = geometry.Point2D{
			X: float64(spec.Region.X) + p.X*sx,
			Y: float64(spec.Region.Y) + p.Y*sy,
		}
	}
	return annotations.NewBoundary(points)
}
