package annotations

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("boundary")
	require.NoError(t, err)
	assert.Equal(t, FormatBoundary, f)

	f, err = ParseFormat("bbox")
	require.NoError(t, err)
	assert.Equal(t, FormatBBox, f)

	_, err = ParseFormat("circle")
	assert.Error(t, err)
}

func TestNewBoundary(t *testing.T) {
	points := []geometry.Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}
	a := NewBoundary(points)

	assert.Equal(t, "polyline", a.Type)
	assert.True(t, a.Closed)
	assert.Equal(t, geometry.Point2D{X: 2, Y: 2}, a.Center)
	assert.Len(t, a.Points, 4)
}

func TestNewBBox(t *testing.T) {
	a := NewBBox(geometry.NewRectInt(10, 20, 6, 8))

	assert.Equal(t, "rectangle", a.Type)
	assert.Equal(t, geometry.Point2D{X: 13, Y: 24}, a.Center)
	assert.Equal(t, 6.0, a.Width)
	assert.Equal(t, 8.0, a.Height)
	assert.Empty(t, a.Points)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := &Document{
		Name: "sample-nuclei-boundary",
		Elements: []NucleusAnnotation{
			NewBoundary([]geometry.Point2D{
				{X: 1.5, Y: 2.25}, {X: 10.125, Y: 2.25}, {X: 5.0625, Y: 9.75},
			}),
			NewBBox(geometry.NewRectInt(100, 200, 30, 40)),
		},
	}

	path := filepath.Join(t.TempDir(), "annotations.json")
	require.NoError(t, doc.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, doc.Name, loaded.Name)
	require.Len(t, loaded.Elements, len(doc.Elements))

	// Geometry must survive the round trip exactly.
	assert.Equal(t, doc.Elements[0].Points, loaded.Elements[0].Points)
	assert.Equal(t, doc.Elements[0].Center, loaded.Elements[0].Center)
	assert.Equal(t, doc.Elements[1], loaded.Elements[1])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
