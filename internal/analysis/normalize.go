// Package analysis implements the per-tile nuclei pipeline: Reinhard
// color normalization, color deconvolution into stain channels, nuclei
// segmentation on the hematoxylin channel, and per-nucleus feature
// computation.
package analysis

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/sunaifei/HistomicsTK/pkg/colorutil"
)

// ReinhardNormalize maps the tile's color statistics onto reference
// LAB mean/stddev values. Working in Ruderman's decorrelated lab space
// lets each channel be shifted and scaled independently.
func ReinhardNormalize(img *image.RGBA, refMu, refStd [3]float64) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	if n == 0 {
		return img
	}

	labL := make([]float64, n)
	labA := make([]float64, n)
	labB := make([]float64, n)

	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r := float64(img.Pix[o]) / 255.0
			g := float64(img.Pix[o+1]) / 255.0
			bl := float64(img.Pix[o+2]) / 255.0
			labL[i], labA[i], labB[i] = colorutil.RGBToLAB(r, g, bl)
			i++
		}
	}

	muL := stat.Mean(labL, nil)
	muA := stat.Mean(labA, nil)
	muB := stat.Mean(labB, nil)
	sdL := stat.StdDev(labL, nil)
	sdA := stat.StdDev(labA, nil)
	sdB := stat.StdDev(labB, nil)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	i = 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := normalizeChannel(labL[i], muL, sdL, refMu[0], refStd[0])
			a := normalizeChannel(labA[i], muA, sdA, refMu[1], refStd[1])
			bb := normalizeChannel(labB[i], muB, sdB, refMu[2], refStd[2])

			r, g, bl := colorutil.LABToRGB(l, a, bb)
			o := out.PixOffset(x, y)
			out.Pix[o] = uint8(r*255 + 0.5)
			out.Pix[o+1] = uint8(g*255 + 0.5)
			out.Pix[o+2] = uint8(bl*255 + 0.5)
			out.Pix[o+3] = 255
			i++
		}
	}
	return out
}

func normalizeChannel(v, mu, sd, refMu, refSd float64) float64 {
	if sd == 0 {
		// A flat channel (e.g. a blank glass tile) has no spread to
		// rescale; shift it to the reference mean.
		return refMu
	}
	return (v-mu)/sd*refSd + refMu
}
