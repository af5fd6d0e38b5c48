// Command fgndtest computes the low-resolution foreground mask for a
// slide and reports per-tile foreground fractions.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/sunaifei/HistomicsTK/internal/foreground"
	"github.com/sunaifei/HistomicsTK/internal/slide"
	"github.com/sunaifei/HistomicsTK/internal/tiling"
)

func main() {
	imagePath := flag.String("image", "", "Path to slide image (TIFF, PNG, or JPEG)")
	tileSize := flag.Int("tile-size", 1024, "Tile edge length in analysis-scale pixels")
	magnification := flag.Float64("magnification", 20, "Analysis magnification")
	minFrac := flag.Float64("min-fgnd-frac", 0.25, "Minimum foreground fraction")
	maskOut := flag.String("mask-out", "", "Optional path to write the mask as PNG")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: fgndtest -image <path> [-tile-size 1024] [-min-fgnd-frac 0.25] [-mask-out mask.png]")
		os.Exit(1)
	}

	src, err := slide.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open slide: %v\n", err)
		os.Exit(1)
	}

	meta := src.Metadata()
	fmt.Printf("Loaded slide: %dx%d pixels\n", meta.Width, meta.Height)

	mask, err := foreground.ComputeMask(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute mask: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Mask: %dx%d at scale %.4g, %d foreground pixels\n",
		mask.Width, mask.Height, mask.Scale, mask.ForegroundCount())

	grid, err := tiling.Plan(meta, tiling.Options{
		TileSize:      *tileSize,
		Magnification: *magnification,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to plan grid: %v\n", err)
		os.Exit(1)
	}

	fractions := foreground.TileFractions(mask, grid)
	eligible, stats := foreground.Filter(grid.Specs, fractions, *minFrac)
	fmt.Printf("Eligible tiles: %d of %d (%.2f%%)\n", stats.Eligible, stats.Total, stats.Percent())
	for _, spec := range eligible {
		fmt.Printf("  tile %4d: fraction %.3f\n", spec.Position, fractions[spec.Position])
	}

	if *maskOut != "" {
		if err := writeMaskPNG(mask, *maskOut); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write mask: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote mask to %s\n", *maskOut)
	}
}

func writeMaskPNG(mask *foreground.Mask, path string) error {
	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
