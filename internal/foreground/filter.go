package foreground

import (
	"github.com/sunaifei/HistomicsTK/internal/tiling"
)

// FractionTable holds one foreground fraction in [0,1] per tile position.
type FractionTable []float64

// SentinelTable is the degenerate table for non-pyramidal images: the
// whole image is treated as one foreground tile and no mask is computed.
func SentinelTable() FractionTable {
	return FractionTable{1.0}
}

// TileFractions computes, for every planned tile, the fraction of mask
// pixels overlapping that tile which are foreground. The table is indexed
// by TilePosition.
func TileFractions(mask *Mask, grid *tiling.Grid) FractionTable {
	fractions := make(FractionTable, grid.Count())
	for _, spec := range grid.Specs {
		fractions[spec.Position] = tileFraction(mask, spec)
	}
	return fractions
}

func tileFraction(mask *Mask, spec tiling.TileSpec) float64 {
	// Map the base-pixel tile region onto mask coordinates.
	x0 := int(float64(spec.Region.X) / mask.Scale)
	y0 := int(float64(spec.Region.Y) / mask.Scale)
	x1 := int(float64(spec.Region.X+spec.Region.Width)/mask.Scale + 0.5)
	y1 := int(float64(spec.Region.Y+spec.Region.Height)/mask.Scale + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	total := 0
	fgnd := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if x < 0 || x >= mask.Width || y < 0 || y >= mask.Height {
				continue
			}
			total++
			if mask.At(x, y) {
				fgnd++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(fgnd) / float64(total)
}

// Stats summarizes the outcome of foreground filtering.
type Stats struct {
	Total    int
	Eligible int
}

// Percent returns the eligible-tile percentage.
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return 100.0 * float64(s.Eligible) / float64(s.Total)
}

// Filter selects the tiles worth analyzing: a tile is eligible iff its
// foreground fraction is >= minFrac (inclusive lower bound). Relative
// tile order is preserved.
func Filter(specs []tiling.TileSpec, fractions FractionTable, minFrac float64) ([]tiling.TileSpec, Stats) {
	eligible := make([]tiling.TileSpec, 0, len(specs))
	for _, spec := range specs {
		frac := 1.0
		if spec.Position < len(fractions) {
			frac = fractions[spec.Position]
		}
		if frac >= minFrac {
			eligible = append(eligible, spec)
		}
	}
	return eligible, Stats{Total: len(specs), Eligible: len(eligible)}
}
