package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunaifei/HistomicsTK/internal/annotations"
	"github.com/sunaifei/HistomicsTK/internal/dispatch"
	"github.com/sunaifei/HistomicsTK/internal/features"
	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

func tileResult(pos, nuclei int) dispatch.TileResult {
	tbl := features.NewTable([]string{"Area", "Perimeter"})
	var annots []annotations.NucleusAnnotation
	for i := 0; i < nuclei; i++ {
		_ = tbl.Append([]float64{float64(pos*100 + i), 1})
		annots = append(annots, annotations.NewBBox(geometry.NewRectInt(pos, i, 2, 2)))
	}
	return dispatch.TileResult{Position: pos, Annotations: annots, Features: tbl}
}

func TestMergeFlattensInPositionOrder(t *testing.T) {
	results := []dispatch.TileResult{tileResult(0, 3), tileResult(1, 0)}

	merged, err := Merge(results, "slide-nuclei-boundary")
	require.NoError(t, err)

	assert.Equal(t, 3, merged.NucleiCount())
	assert.Equal(t, 3, merged.Features.Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, float64(i), merged.Features.Row(i)[0])
	}
}

func TestMergeIndependentOfDeliveryOrder(t *testing.T) {
	ordered := []dispatch.TileResult{tileResult(0, 2), tileResult(1, 1), tileResult(2, 2)}
	shuffled := []dispatch.TileResult{tileResult(2, 2), tileResult(0, 2), tileResult(1, 1)}

	a, err := Merge(ordered, "doc")
	require.NoError(t, err)
	b, err := Merge(shuffled, "doc")
	require.NoError(t, err)

	require.Equal(t, a.NucleiCount(), b.NucleiCount())
	require.Equal(t, a.Features.Len(), b.Features.Len())
	for i := 0; i < a.Features.Len(); i++ {
		assert.Equal(t, a.Features.Row(i), b.Features.Row(i))
	}
	assert.Equal(t, a.Annotations.Elements, b.Annotations.Elements)
}

func TestMergeAnnotationCountEqualsRowCount(t *testing.T) {
	results := []dispatch.TileResult{tileResult(0, 4), tileResult(1, 2), tileResult(2, 0)}

	merged, err := Merge(results, "doc")
	require.NoError(t, err)
	assert.Equal(t, merged.NucleiCount(), merged.Features.Len())
	assert.Equal(t, 6, merged.NucleiCount())
}

func TestMergeRejectsCorrespondenceViolation(t *testing.T) {
	bad := tileResult(0, 2)
	bad.Annotations = bad.Annotations[:1] // 1 annotation, 2 rows

	_, err := Merge([]dispatch.TileResult{bad}, "doc")
	assert.Error(t, err)
}

func TestMergeEmptyResultSet(t *testing.T) {
	merged, err := Merge(nil, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, merged.NucleiCount())
	assert.Equal(t, 0, merged.Features.Len())
	assert.Equal(t, "empty", merged.Annotations.Name)
}

func TestMergeAppliesPrefixOnce(t *testing.T) {
	merged, err := Merge([]dispatch.TileResult{tileResult(0, 1)}, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"Feature.Area", "Feature.Perimeter"}, merged.Features.Columns())

	// Tables whose columns were already prefixed upstream must not be
	// double-prefixed.
	pre := features.NewTable([]string{"Feature.Area", "Feature.Perimeter"})
	require.NoError(t, pre.Append([]float64{1, 2}))
	merged2, err := Merge([]dispatch.TileResult{{
		Position:    0,
		Annotations: []annotations.NucleusAnnotation{annotations.NewBBox(geometry.NewRectInt(0, 0, 1, 1))},
		Features:    pre,
	}}, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"Feature.Area", "Feature.Perimeter"}, merged2.Features.Columns())
}

func TestDocumentName(t *testing.T) {
	name := DocumentName("/out/sample.anot", annotations.FormatBoundary)
	assert.Equal(t, "sample-nuclei-boundary", name)

	name = DocumentName("results.json", annotations.FormatBBox)
	assert.Equal(t, "results-nuclei-bbox", name)
}
