// Command tiletest plans the tile grid for a slide image and prints the
// resulting tiles.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sunaifei/HistomicsTK/internal/slide"
	"github.com/sunaifei/HistomicsTK/internal/tiling"
)

func main() {
	imagePath := flag.String("image", "", "Path to slide image (TIFF, PNG, or JPEG)")
	tileSize := flag.Int("tile-size", 1024, "Tile edge length in analysis-scale pixels")
	magnification := flag.Float64("magnification", 20, "Analysis magnification")
	verbose := flag.Bool("v", false, "Print every tile spec")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: tiletest -image <path> [-tile-size 1024] [-magnification 20] [-v]")
		os.Exit(1)
	}

	src, err := slide.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open slide: %v\n", err)
		os.Exit(1)
	}

	meta := src.Metadata()
	fmt.Printf("Loaded slide: %dx%d pixels\n", meta.Width, meta.Height)
	if meta.IsPyramidal() {
		fmt.Printf("Native magnification: %.1fx\n", *meta.Magnification)
	} else {
		fmt.Println("Non-pyramidal image, analyzing at native scale")
	}

	grid, err := tiling.Plan(meta, tiling.Options{
		TileSize:      *tileSize,
		Magnification: *magnification,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to plan grid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nPlanned %d tiles: %d cols x %d rows, downsample %.4g\n",
		grid.Count(), grid.Cols, grid.Rows, grid.Downsample)

	if *verbose {
		for _, spec := range grid.Specs {
			fmt.Printf("  tile %4d: base [%d,%d %dx%d] -> %dx%d px\n",
				spec.Position, spec.Region.X, spec.Region.Y,
				spec.Region.Width, spec.Region.Height, spec.Width, spec.Height)
		}
	}
}
