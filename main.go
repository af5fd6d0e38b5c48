// Package main provides the entry point for the nuclei feature pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sunaifei/HistomicsTK/internal/run"
	"github.com/sunaifei/HistomicsTK/internal/version"
)

const appTitle = "nucleifeatures"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// An interrupted run drains its worker pool before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	cfg := run.DefaultConfig()

	cmd := &cobra.Command{
		Use:   appTitle + " <input-image> <features-csv>",
		Short: "Detect nuclei in an H&E slide and compute per-nucleus features",
		Long: "Tiles a whole-slide image, filters background tiles, then detects\n" +
			"nuclei and computes their features in parallel. Outputs a feature\n" +
			"CSV and, optionally, a nuclei annotation document.",
		Version: version.Version,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			v.SetEnvPrefix("NUCLEIFEATURES")
			v.AutomaticEnv()

			cfg.InputPath = args[0]
			cfg.FeaturesPath = args[1]
			applyFlags(v, cmd, &cfg)

			co := &run.Coordinator{Config: cfg}
			summary, err := co.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Detected %d nuclei across %d tiles in %s\n",
				summary.NucleiCount, summary.EligibleTiles, summary.TotalTime)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("annotations", "", "Path for the nuclei annotation JSON document")
	f.String("summary", "", "Path for the run summary JSON")
	f.Float64Slice("reference-mu-lab", cfg.ReferenceMuLAB, "Reference mean in LAB space for color normalization")
	f.Float64Slice("reference-std-lab", cfg.ReferenceStdLAB, "Reference stddev in LAB space for color normalization")
	f.IntSlice("roi", cfg.Region, "Analysis region as left,top,width,height (-1,-1,-1,-1 for whole image)")
	f.Int("tile-size", cfg.TileSize, "Tile edge length in analysis-scale pixels")
	f.Float64("magnification", cfg.Magnification, "Analysis magnification")
	f.Float64("min-fgnd-frac", cfg.MinForegroundFraction, "Minimum foreground fraction for a tile to be analyzed")
	f.String("annotation-format", cfg.AnnotationFormat, "Annotation format: boundary or bbox")
	f.Int("workers", cfg.Workers, "Number of parallel tile workers")
	f.Bool("skip-failed-tiles", false, "Record failed tiles and continue instead of aborting")
	f.Bool("morphometry", cfg.Morphometry, "Compute size and shape features")
	f.Bool("intensity", cfg.Intensity, "Compute intensity features")
	f.Bool("gradient", cfg.Gradient, "Compute gradient features")
	f.Float64("min-nucleus-area", cfg.MinNucleusArea, "Minimum accepted nucleus area in pixels")
	f.Float64("max-nucleus-area", cfg.MaxNucleusArea, "Maximum accepted nucleus area in pixels (0 = unbounded)")
	f.Float64("fgnd-threshold", cfg.ForegroundThreshold, "Fixed hematoxylin threshold (0 = Otsu)")

	return cmd
}

func applyFlags(v *viper.Viper, cmd *cobra.Command, cfg *run.Config) {
	cfg.AnnotationsPath = v.GetString("annotations")
	cfg.SummaryPath = v.GetString("summary")
	// Slice flags come straight from pflag; viper flattens them.
	if mu, err := cmd.Flags().GetFloat64Slice("reference-mu-lab"); err == nil {
		cfg.ReferenceMuLAB = mu
	}
	if sd, err := cmd.Flags().GetFloat64Slice("reference-std-lab"); err == nil {
		cfg.ReferenceStdLAB = sd
	}
	if roi, err := cmd.Flags().GetIntSlice("roi"); err == nil {
		cfg.Region = roi
	}
	cfg.TileSize = v.GetInt("tile-size")
	cfg.Magnification = v.GetFloat64("magnification")
	cfg.MinForegroundFraction = v.GetFloat64("min-fgnd-frac")
	cfg.AnnotationFormat = v.GetString("annotation-format")
	cfg.Workers = v.GetInt("workers")
	cfg.SkipFailedTiles = v.GetBool("skip-failed-tiles")
	cfg.Morphometry = v.GetBool("morphometry")
	cfg.Intensity = v.GetBool("intensity")
	cfg.Gradient = v.GetBool("gradient")
	cfg.MinNucleusArea = v.GetFloat64("min-nucleus-area")
	cfg.MaxNucleusArea = v.GetFloat64("max-nucleus-area")
	cfg.ForegroundThreshold = v.GetFloat64("fgnd-threshold")
}
