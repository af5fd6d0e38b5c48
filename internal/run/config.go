// Package run sequences a whole-slide analysis: configuration
// validation, grid planning, foreground filtering, parallel dispatch,
// aggregation, and output writing.
package run

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sunaifei/HistomicsTK/internal/annotations"
)

// ConfigurationError reports an invalid run configuration. All
// configuration checks happen before any parallel work starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// DefaultReferenceMuLAB and DefaultReferenceStdLAB are the standard
// reference statistics for Reinhard normalization of H&E slides.
var (
	DefaultReferenceMuLAB  = []float64{8.63234435, -0.11501964, 0.03868433}
	DefaultReferenceStdLAB = []float64{0.57506023, 0.10403329, 0.01364062}
)

// Config is the full run configuration. It is validated once and then
// treated as immutable: tile tasks only ever read it.
type Config struct {
	InputPath       string
	FeaturesPath    string
	AnnotationsPath string // optional; no annotation file when empty
	SummaryPath     string // optional; no run summary when empty

	ReferenceMuLAB  []float64
	ReferenceStdLAB []float64

	Region        []int // {left, top, width, height}; all -1 = whole image
	TileSize      int
	Magnification float64

	MinForegroundFraction float64
	AnnotationFormat      string

	Workers         int
	SkipFailedTiles bool

	Morphometry bool
	Intensity   bool
	Gradient    bool

	MinNucleusArea      float64
	MaxNucleusArea      float64
	ForegroundThreshold float64
}

// DefaultConfig returns a Config with the defaults of the CLI.
func DefaultConfig() Config {
	return Config{
		ReferenceMuLAB:        append([]float64(nil), DefaultReferenceMuLAB...),
		ReferenceStdLAB:       append([]float64(nil), DefaultReferenceStdLAB...),
		Region:                []int{-1, -1, -1, -1},
		TileSize:              1024,
		Magnification:         20,
		MinForegroundFraction: 0.25,
		AnnotationFormat:      string(annotations.FormatBoundary),
		Workers:               runtime.NumCPU(),
		Morphometry:           true,
		Intensity:             true,
		Gradient:              true,
		MinNucleusArea:        80,
	}
}

// Validate checks every configuration invariant. The returned error is a
// *ConfigurationError describing the first violation found.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return configErrorf("input image path is required")
	}
	if info, err := os.Stat(c.InputPath); err != nil || info.IsDir() {
		return configErrorf("input image file does not exist: %s", c.InputPath)
	}
	if c.FeaturesPath == "" {
		return configErrorf("feature output path is required")
	}
	if len(c.ReferenceMuLAB) != 3 {
		return configErrorf("reference mean LAB must be a 3 element vector, got %d", len(c.ReferenceMuLAB))
	}
	if len(c.ReferenceStdLAB) != 3 {
		return configErrorf("reference stddev LAB must be a 3 element vector, got %d", len(c.ReferenceStdLAB))
	}
	if len(c.Region) != 4 {
		return configErrorf("analysis region must be a 4 element vector, got %d", len(c.Region))
	}
	if c.TileSize <= 0 {
		return configErrorf("tile size must be positive, got %d", c.TileSize)
	}
	if c.Magnification <= 0 {
		return configErrorf("analysis magnification must be positive, got %g", c.Magnification)
	}
	if c.MinForegroundFraction < 0 || c.MinForegroundFraction > 1 {
		return configErrorf("minimum foreground fraction must be in [0,1], got %g", c.MinForegroundFraction)
	}
	if _, err := annotations.ParseFormat(c.AnnotationFormat); err != nil {
		return configErrorf("%v", err)
	}
	if c.Workers < 0 {
		return configErrorf("worker count must not be negative, got %d", c.Workers)
	}
	return nil
}
