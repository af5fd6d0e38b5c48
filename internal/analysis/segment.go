package analysis

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/sunaifei/HistomicsTK/pkg/geometry"
)

// Nucleus is one segmented nucleus in tile coordinates.
type Nucleus struct {
	Boundary  []geometry.Point2D
	BBox      geometry.RectInt
	Area      float64
	Perimeter float64
}

// SegmentNuclei segments nuclei from a hematoxylin concentration plane.
// The plane is rescaled to 8 bits, thresholded (Otsu by default, or at a
// fixed concentration when threshold > 0), cleaned up morphologically,
// and decomposed into connected boundary contours filtered by area.
func SegmentNuclei(hema Plane, minArea, maxArea, threshold float64) []Nucleus {
	if hema.Width == 0 || hema.Height == 0 {
		return nil
	}

	// Rescale concentrations to 0-255 for OpenCV thresholding.
	maxC := 0.0
	for _, v := range hema.Data {
		if v > maxC {
			maxC = v
		}
	}
	if maxC == 0 {
		return nil
	}

	mat := gocv.NewMatWithSize(hema.Height, hema.Width, gocv.MatTypeCV8U)
	defer mat.Close()
	for y := 0; y < hema.Height; y++ {
		for x := 0; x < hema.Width; x++ {
			v := hema.Data[y*hema.Width+x] / maxC * 255.0
			mat.SetUCharAt(y, x, uint8(v+0.5))
		}
	}

	// Light blur to suppress stain speckle before thresholding
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(mat, &blurred, image.Point{3, 3}, 0, 0, gocv.BorderDefault)

	bin := gocv.NewMat()
	defer bin.Close()
	if threshold > 0 {
		t := threshold / maxC * 255.0
		if t > 255 {
			t = 255
		}
		gocv.Threshold(blurred, &bin, float32(t), 255, gocv.ThresholdBinary)
	} else {
		gocv.Threshold(blurred, &bin, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	}

	// Morphological open removes speckle, close fills chromatin holes
	openKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{3, 3})
	defer openKernel.Close()
	gocv.MorphologyEx(bin, &bin, gocv.MorphOpen, openKernel)

	closeKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{5, 5})
	defer closeKernel.Close()
	gocv.MorphologyEx(bin, &bin, gocv.MorphClose, closeKernel)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var nuclei []Nucleus
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < minArea || (maxArea > 0 && area > maxArea) {
			continue
		}

		boundary := make([]geometry.Point2D, 0, contour.Size())
		for j := 0; j < contour.Size(); j++ {
			pt := contour.At(j)
			boundary = append(boundary, geometry.Point2D{X: float64(pt.X), Y: float64(pt.Y)})
		}
		if len(boundary) < 3 {
			continue
		}

		nuclei = append(nuclei, Nucleus{
			Boundary:  boundary,
			BBox:      geometry.BoundingBox(boundary),
			Area:      area,
			Perimeter: gocv.ArcLength(contour, true),
		})
	}
	return nuclei
}
