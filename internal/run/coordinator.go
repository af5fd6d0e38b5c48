package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sunaifei/HistomicsTK/internal/aggregate"
	"github.com/sunaifei/HistomicsTK/internal/analysis"
	"github.com/sunaifei/HistomicsTK/internal/annotations"
	"github.com/sunaifei/HistomicsTK/internal/dispatch"
	"github.com/sunaifei/HistomicsTK/internal/foreground"
	"github.com/sunaifei/HistomicsTK/internal/slide"
	"github.com/sunaifei/HistomicsTK/internal/tiling"
)

// Summary records what a run did. When Config.SummaryPath is set, it is
// written as JSON next to the other outputs.
type Summary struct {
	RunID     string    `json:"run_id"`
	Input     string    `json:"input"`
	CreatedAt time.Time `json:"created_at"`
	Pyramidal bool      `json:"pyramidal"`

	TotalTiles    int `json:"total_tiles"`
	EligibleTiles int `json:"eligible_tiles"`
	SkippedTiles  int `json:"skipped_tiles"`
	NucleiCount   int `json:"nuclei_count"`

	ForegroundTime string `json:"foreground_time"`
	DetectionTime  string `json:"detection_time"`
	TotalTime      string `json:"total_time"`
}

func (s *Summary) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

// AnalyzerFactory builds the per-tile analyzer for a run. The default
// factory wires the full stain analysis pipeline.
type AnalyzerFactory func(src slide.Source, params analysis.Params) dispatch.Analyzer

func defaultAnalyzerFactory(src slide.Source, params analysis.Params) dispatch.Analyzer {
	return analysis.NewAnalyzer(src, params)
}

// Coordinator drives a run end to end.
type Coordinator struct {
	Config Config

	// NewAnalyzer overrides the tile analyzer. Nil means the full stain
	// analysis pipeline.
	NewAnalyzer AnalyzerFactory
}

// Run executes the pipeline: open slide, plan the tile grid, compute
// tile foreground fractions, analyze eligible tiles in parallel, merge
// the per-tile outputs, and write the result files.
func (co *Coordinator) Run(ctx context.Context) (*Summary, error) {
	cfg := co.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	src, err := slide.Open(cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide: %w", err)
	}

	meta := src.Metadata()
	log.Printf("slide %s: %dx%d, pyramidal=%v", cfg.InputPath, meta.Width, meta.Height, meta.IsPyramidal())

	grid, err := tiling.Plan(meta, tiling.Options{
		TileSize:      cfg.TileSize,
		Magnification: cfg.Magnification,
		Region:        cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("planned %d tiles (%d cols x %d rows, downsample %.4g)",
		grid.Count(), grid.Cols, grid.Rows, grid.Downsample)

	fgndStart := time.Now()
	fractions, err := tileFractions(src, grid)
	if err != nil {
		return nil, err
	}
	fgndTime := time.Since(fgndStart)

	eligible, stats := foreground.Filter(grid.Specs, fractions, cfg.MinForegroundFraction)
	log.Printf("foreground filter: %d of %d tiles eligible (%.2f%%), computed in %s",
		stats.Eligible, stats.Total, stats.Percent(), formatDuration(fgndTime))

	format, err := annotations.ParseFormat(cfg.AnnotationFormat)
	if err != nil {
		return nil, err
	}

	factory := co.NewAnalyzer
	if factory == nil {
		factory = defaultAnalyzerFactory
	}
	analyzer := factory(src, analysis.Params{
		ReferenceMuLAB:  [3]float64{cfg.ReferenceMuLAB[0], cfg.ReferenceMuLAB[1], cfg.ReferenceMuLAB[2]},
		ReferenceStdLAB: [3]float64{cfg.ReferenceStdLAB[0], cfg.ReferenceStdLAB[1], cfg.ReferenceStdLAB[2]},
		Format:          format,
		MinNucleusArea:  cfg.MinNucleusArea,
		MaxNucleusArea:  cfg.MaxNucleusArea,
		ForegroundThreshold: cfg.ForegroundThreshold,
		Features: analysis.FeatureToggles{
			Morphometry: cfg.Morphometry,
			Intensity:   cfg.Intensity,
			Gradient:    cfg.Gradient,
		},
	})

	detectStart := time.Now()
	d := dispatch.Dispatcher{Workers: cfg.Workers, SkipFailed: cfg.SkipFailedTiles}
	results, report, err := d.Run(ctx, eligible, analyzer)
	if err != nil {
		return nil, err
	}
	detectTime := time.Since(detectStart)
	if report.Count() > 0 {
		for i, pos := range report.Positions {
			log.Printf("tile %d failed, skipped: %v", pos, report.Errors[i])
		}
	}
	log.Printf("analyzed %d tiles in %s", len(results), formatDuration(detectTime))

	docName := aggregate.DocumentName(cfg.FeaturesPath, format)
	if cfg.AnnotationsPath != "" {
		docName = aggregate.DocumentName(cfg.AnnotationsPath, format)
	}
	merged, err := aggregate.Merge(results, docName)
	if err != nil {
		return nil, err
	}
	log.Printf("detected %d nuclei", merged.NucleiCount())

	if err := merged.Features.WriteCSVFile(cfg.FeaturesPath); err != nil {
		return nil, err
	}
	if cfg.AnnotationsPath != "" {
		if err := merged.Annotations.Write(cfg.AnnotationsPath); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		RunID:          uuid.NewString(),
		Input:          cfg.InputPath,
		CreatedAt:      time.Now().UTC(),
		Pyramidal:      meta.IsPyramidal(),
		TotalTiles:     stats.Total,
		EligibleTiles:  stats.Eligible,
		SkippedTiles:   report.Count(),
		NucleiCount:    merged.NucleiCount(),
		ForegroundTime: formatDuration(fgndTime),
		DetectionTime:  formatDuration(detectTime),
		TotalTime:      formatDuration(time.Since(start)),
	}
	if cfg.SummaryPath != "" {
		if err := summary.Write(cfg.SummaryPath); err != nil {
			return nil, err
		}
	}
	log.Printf("run complete in %s", summary.TotalTime)
	return summary, nil
}

// tileFractions computes the per-tile foreground fraction table. A
// non-pyramidal image gets the sentinel table, which makes every tile
// eligible.
func tileFractions(src slide.Source, grid *tiling.Grid) (foreground.FractionTable, error) {
	if !src.Metadata().IsPyramidal() {
		log.Printf("non-pyramidal image, skipping foreground mask")
		return foreground.SentinelTable(), nil
	}
	mask, err := foreground.ComputeMask(src)
	if err != nil {
		var maskErr *foreground.MaskError
		if errors.As(err, &maskErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to compute foreground mask: %w", err)
	}
	return foreground.TileFractions(mask, grid), nil
}

// formatDuration renders an elapsed time as HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
