// Package aggregate merges per-tile analysis results into slide-level
// output: one flattened annotation document and one concatenated feature
// table.
package aggregate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sunaifei/HistomicsTK/internal/annotations"
	"github.com/sunaifei/HistomicsTK/internal/dispatch"
	"github.com/sunaifei/HistomicsTK/internal/features"
)

// SlideResult is the aggregation of all analyzed tiles.
type SlideResult struct {
	Annotations *annotations.Document
	Features    *features.Table
}

// NucleiCount returns the total number of detected nuclei.
func (r *SlideResult) NucleiCount() int {
	return len(r.Annotations.Elements)
}

// DocumentName derives the annotation document name from the output
// filename and the annotation format label.
func DocumentName(outputPath string, format annotations.Format) string {
	base := filepath.Base(outputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "-nuclei-" + string(format)
}

// Merge flattens tile results into a SlideResult. Results are re-sorted
// by tile position before merging, so the output is identical no matter
// what order the dispatcher delivered them in. Annotation order within a
// tile is the tile's emission order.
//
// Merging zero results is not an error: it yields an empty document and
// an empty feature table.
func Merge(results []dispatch.TileResult, docName string) (*SlideResult, error) {
	sorted := make([]dispatch.TileResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	doc := &annotations.Document{Name: docName, Elements: []annotations.NucleusAnnotation{}}
	tables := make([]*features.Table, 0, len(sorted))

	for _, res := range sorted {
		rows := 0
		if res.Features != nil {
			rows = res.Features.Len()
		}
		if rows != len(res.Annotations) {
			return nil, fmt.Errorf("tile %d: %d annotations but %d feature rows",
				res.Position, len(res.Annotations), rows)
		}
		doc.Elements = append(doc.Elements, res.Annotations...)
		if res.Features != nil {
			tables = append(tables, res.Features)
		}
	}

	merged, err := features.Concat(tables)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate feature tables: %w", err)
	}
	merged.ApplyPrefix()

	return &SlideResult{Annotations: doc, Features: merged}, nil
}
