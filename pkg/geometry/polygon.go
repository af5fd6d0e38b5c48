package geometry

import "math"

// PolygonArea computes the area of a simple polygon using the shoelace
// formula. The result is always non-negative regardless of winding order.
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter computes the perimeter of a closed polygon, including
// the closing edge from the last vertex back to the first.
func PolygonPerimeter(polygon []Point2D) float64 {
	if len(polygon) < 2 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].Distance(polygon[j])
	}
	return sum
}

// Circularity computes 4*pi*area / perimeter^2 for a closed shape.
// A perfect circle scores 1.0; elongated or ragged shapes score lower.
func Circularity(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	c := 4 * math.Pi * area / (perimeter * perimeter)
	if c > 1 {
		c = 1
	}
	return c
}

// EquivalentDiameter returns the diameter of a circle with the given area.
func EquivalentDiameter(area float64) float64 {
	if area <= 0 {
		return 0
	}
	return math.Sqrt(4 * area / math.Pi)
}

// PointInPolygon reports whether the point lies inside the polygon using
// the even-odd ray casting rule. Points exactly on an edge may land on
// either side.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	n := len(polygon)
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
