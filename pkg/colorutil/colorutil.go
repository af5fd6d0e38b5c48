// Package colorutil provides shared color-space conversions for stain
// normalization and color deconvolution.
package colorutil

import (
	"math"
)

// Conversion matrices for Ruderman's lab color space, the decorrelated
// log-LMS space used by Reinhard color normalization.
var (
	rgbToLMS = [3][3]float64{
		{0.3811, 0.5783, 0.0402},
		{0.1967, 0.7244, 0.0782},
		{0.0241, 0.1288, 0.8444},
	}
	lmsToRGB = [3][3]float64{
		{4.4679, -3.5873, 0.1193},
		{-1.2186, 2.3809, -0.1624},
		{0.0497, -0.2439, 1.2045},
	}
)

const lmsEpsilon = 1e-8

// RGBToLAB converts RGB components in [0,1] to Ruderman lab coordinates.
func RGBToLAB(r, g, b float64) (float64, float64, float64) {
	l := rgbToLMS[0][0]*r + rgbToLMS[0][1]*g + rgbToLMS[0][2]*b
	m := rgbToLMS[1][0]*r + rgbToLMS[1][1]*g + rgbToLMS[1][2]*b
	s := rgbToLMS[2][0]*r + rgbToLMS[2][1]*g + rgbToLMS[2][2]*b

	logL := math.Log(math.Max(l, lmsEpsilon))
	logM := math.Log(math.Max(m, lmsEpsilon))
	logS := math.Log(math.Max(s, lmsEpsilon))

	lab := (logL + logM + logS) / math.Sqrt(3)
	alpha := (logL + logM - 2*logS) / math.Sqrt(6)
	beta := (logL - logM) / math.Sqrt(2)

	return lab, alpha, beta
}

// LABToRGB converts Ruderman lab coordinates back to RGB in [0,1].
// Output components are clamped to [0,1].
func LABToRGB(lab, alpha, beta float64) (float64, float64, float64) {
	logL := lab/math.Sqrt(3) + alpha/math.Sqrt(6) + beta/math.Sqrt(2)
	logM := lab/math.Sqrt(3) + alpha/math.Sqrt(6) - beta/math.Sqrt(2)
	logS := lab/math.Sqrt(3) - 2*alpha/math.Sqrt(6)

	l := math.Exp(logL)
	m := math.Exp(logM)
	s := math.Exp(logS)

	r := lmsToRGB[0][0]*l + lmsToRGB[0][1]*m + lmsToRGB[0][2]*s
	g := lmsToRGB[1][0]*l + lmsToRGB[1][1]*m + lmsToRGB[1][2]*s
	b := lmsToRGB[2][0]*l + lmsToRGB[2][1]*m + lmsToRGB[2][2]*s

	return clamp01(r), clamp01(g), clamp01(b)
}

// RGBToOD converts an 8-bit intensity to optical density.
// The +1 offset keeps zero intensities finite.
func RGBToOD(intensity uint8) float64 {
	return -math.Log10((float64(intensity) + 1) / 256.0)
}

// ODToRGB converts an optical density value back to 8-bit intensity.
func ODToRGB(od float64) uint8 {
	v := math.Pow(10, -od)*256.0 - 1
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
