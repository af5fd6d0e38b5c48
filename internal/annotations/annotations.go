// Package annotations defines nucleus annotation shapes and the
// annotation document written alongside the feature table.
package annotations

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// Format selects the shape emitted per detected nucleus.
type Format string

const (
	// FormatBoundary emits the full segmentation boundary polygon.
	FormatBoundary Format = "boundary"
	// FormatBBox emits the axis-aligned bounding box.
	FormatBBox Format = "bbox"
)

// ParseFormat validates a format label from configuration.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatBoundary, FormatBBox:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown annotation format %q (want %q or %q)",
		s, FormatBoundary, FormatBBox)
}

// NucleusAnnotation is one spatial shape marking a detected nucleus.
// Boundary annotations carry the polygon vertices; bbox annotations carry
// the rectangle center and dimensions. Coordinates are slide base pixels.
type NucleusAnnotation struct {
	Type   string             `json:"type"` // "polyline" or "rectangle"
	Points []geometry.Point2D `json:"points,omitempty"`
	Center geometry.Point2D   `json:"center"`
	Width  float64            `json:"width,omitempty"`
	Height float64            `json:"height,omitempty"`
	Closed bool               `json:"closed,omitempty"`
}

// NewBoundary builds a closed polyline annotation from boundary points.
func NewBoundary(points []geometry.Point2D) NucleusAnnotation {
	return NucleusAnnotation{
		Type:   "polyline",
		Points: points,
		Center: geometry.Centroid(points),
		Closed: true,
	}
}

// NewBBox builds a rectangle annotation from a bounding box.
func NewBBox(box geometry.RectInt) NucleusAnnotation {
	return NucleusAnnotation{
		Type: "rectangle",
		Center: geometry.Point2D{
			X: float64(box.X) + float64(box.Width)/2,
			Y: float64(box.Y) + float64(box.Height)/2,
		},
		Width:  float64(box.Width),
		Height: float64(box.Height),
	}
}

// Document is the annotation file payload: a named set of elements.
type Document struct {
	Name     string              `json:"name"`
	Elements []NucleusAnnotation `json:"elements"`
}

// Write saves the document as indented JSON.
func (d *Document) Write(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads an annotation document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
