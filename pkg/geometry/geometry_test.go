package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint2DDistance(t *testing.T) {
	a := NewPoint2D(0, 0)
	b := NewPoint2D(3, 4)
	assert.InDelta(t, 5.0, a.Distance(b), 1e-12)
	assert.InDelta(t, 5.0, b.Distance(a), 1e-12)
	assert.Zero(t, a.Distance(a))
}

func TestRectIntIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b RectInt
		want RectInt
	}{
		{"overlap", NewRectInt(0, 0, 10, 10), NewRectInt(5, 5, 10, 10), NewRectInt(5, 5, 5, 5)},
		{"contained", NewRectInt(0, 0, 10, 10), NewRectInt(2, 3, 4, 5), NewRectInt(2, 3, 4, 5)},
		{"disjoint", NewRectInt(0, 0, 10, 10), NewRectInt(20, 20, 5, 5), RectInt{}},
		{"touching edge", NewRectInt(0, 0, 10, 10), NewRectInt(10, 0, 5, 5), RectInt{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersect(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersect(tt.a))
		})
	}
}

func TestRectIntContainsRect(t *testing.T) {
	outer := NewRectInt(0, 0, 100, 100)
	assert.True(t, outer.ContainsRect(NewRectInt(0, 0, 100, 100)))
	assert.True(t, outer.ContainsRect(NewRectInt(10, 10, 50, 50)))
	assert.False(t, outer.ContainsRect(NewRectInt(60, 60, 50, 50)))
	assert.False(t, outer.ContainsRect(NewRectInt(-1, 0, 10, 10)))
}

func TestRectIntArea(t *testing.T) {
	assert.Equal(t, 50, NewRectInt(3, 4, 10, 5).Area())
	assert.Equal(t, 0, RectInt{}.Area())
	assert.Equal(t, 0, NewRectInt(0, 0, -5, 10).Area())
}

func TestCentroid(t *testing.T) {
	points := []Point2D{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	c := Centroid(points)
	assert.InDelta(t, 2.0, c.X, 1e-12)
	assert.InDelta(t, 2.0, c.Y, 1e-12)
	assert.Equal(t, Point2D{}, Centroid(nil))
}

func TestBoundingBox(t *testing.T) {
	points := []Point2D{{1.5, 2.5}, {4, 7}, {2, 3}}
	box := BoundingBox(points)
	assert.Equal(t, 1, box.X)
	assert.Equal(t, 2, box.Y)
	assert.Equal(t, 4, box.Width)
	assert.Equal(t, 6, box.Height)
	assert.Equal(t, RectInt{}, BoundingBox(nil))
}

func TestPolygonAreaSquare(t *testing.T) {
	square := []Point2D{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.InDelta(t, 16.0, PolygonArea(square), 1e-12)

	// Reversed winding gives the same area.
	reversed := []Point2D{{0, 4}, {4, 4}, {4, 0}, {0, 0}}
	assert.InDelta(t, 16.0, PolygonArea(reversed), 1e-12)

	assert.Zero(t, PolygonArea([]Point2D{{0, 0}, {1, 1}}))
}

func TestPolygonPerimeter(t *testing.T) {
	square := []Point2D{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.InDelta(t, 16.0, PolygonPerimeter(square), 1e-12)
}

func TestCircularity(t *testing.T) {
	// A circle of radius r: area pi*r^2, perimeter 2*pi*r.
	r := 3.0
	assert.InDelta(t, 1.0, Circularity(math.Pi*r*r, 2*math.Pi*r), 1e-12)

	// A square scores pi/4.
	assert.InDelta(t, math.Pi/4, Circularity(16, 16), 1e-12)

	assert.Zero(t, Circularity(10, 0))
}

func TestEquivalentDiameter(t *testing.T) {
	assert.InDelta(t, 6.0, EquivalentDiameter(math.Pi*9), 1e-12)
	assert.Zero(t, EquivalentDiameter(0))
}

func TestPointInPolygon(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, PointInPolygon(Point2D{5, 5}, square))
	assert.False(t, PointInPolygon(Point2D{15, 5}, square))
	assert.False(t, PointInPolygon(Point2D{-1, -1}, square))

	// Concave polygon: the notch is outside.
	notched := []Point2D{{0, 0}, {10, 0}, {10, 10}, {5, 5}, {0, 10}}
	assert.True(t, PointInPolygon(Point2D{2, 2}, notched))
	assert.False(t, PointInPolygon(Point2D{5, 8}, notched))

	assert.False(t, PointInPolygon(Point2D{0, 0}, square[:2]))
}
