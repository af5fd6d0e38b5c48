// Package foreground computes a low-resolution tissue mask for a slide
// and prunes tiles whose foreground fraction falls below a threshold.
package foreground

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/sunaifei/HistomicsTK/internal/slide"
)

// maskLongestSide bounds the low-res mask resolution. A gigapixel slide
// reduces to a few megapixels, which is plenty for tile pruning.
const maskLongestSide = 2048

// MaskError reports a failed foreground-mask computation. Mask failures
// are fatal for the run: without the mask no tile can be safely filtered.
type MaskError struct {
	Err error
}

func (e *MaskError) Error() string {
	return fmt.Sprintf("foreground mask computation failed: %v", e.Err)
}

func (e *MaskError) Unwrap() error {
	return e.Err
}

// Mask is a binary tissue/background classification at a reduced scale.
// Scale is the number of base pixels per mask pixel.
type Mask struct {
	Bits   []bool
	Width  int
	Height int
	Scale  float64
}

// At reports whether the mask pixel (x, y) is foreground. Out-of-range
// coordinates are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// ForegroundCount returns the number of foreground pixels in the mask.
func (m *Mask) ForegroundCount() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// ComputeMask segments tissue from background at low resolution. Tissue
// is darker than the brightly lit glass background, so an inverted Otsu
// threshold on the grayscale image followed by morphological cleanup
// gives a usable mask.
func ComputeMask(src slide.Source) (*Mask, error) {
	meta := src.Metadata()

	scale := 1.0
	longest := meta.Width
	if meta.Height > longest {
		longest = meta.Height
	}
	if longest > maskLongestSide {
		scale = float64(longest) / float64(maskLongestSide)
	}

	lowW := int(float64(meta.Width)/scale + 0.5)
	lowH := int(float64(meta.Height)/scale + 0.5)
	if lowW < 1 {
		lowW = 1
	}
	if lowH < 1 {
		lowH = 1
	}

	lowRes, err := src.ReadTile(meta.Bounds(), lowW, lowH)
	if err != nil {
		return nil, &MaskError{Err: err}
	}

	mask, err := segmentTissue(lowRes)
	if err != nil {
		return nil, &MaskError{Err: err}
	}
	mask.Scale = scale
	return mask, nil
}

// segmentTissue runs the threshold/morphology pipeline on the low-res image.
func segmentTissue(img *image.RGBA) (*Mask, error) {
	mat, err := rgbaToGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// Light blur to reduce scanner noise before thresholding
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(mat, &blurred, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

	// Inverted Otsu: dark tissue becomes foreground
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(blurred, &bin, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	// Morphological close to bridge small gaps within tissue
	closeKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{5, 5})
	defer closeKernel.Close()
	gocv.MorphologyEx(bin, &bin, gocv.MorphClose, closeKernel)

	// Morphological open to drop isolated specks
	openKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{3, 3})
	defer openKernel.Close()
	gocv.MorphologyEx(bin, &bin, gocv.MorphOpen, openKernel)

	rows, cols := bin.Rows(), bin.Cols()
	mask := &Mask{
		Bits:   make([]bool, rows*cols),
		Width:  cols,
		Height: rows,
		Scale:  1,
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			mask.Bits[y*cols+x] = bin.GetUCharAt(y, x) > 0
		}
	}
	return mask, nil
}

// rgbaToGrayMat converts an RGBA image to a single-channel OpenCV Mat.
func rgbaToGrayMat(img *image.RGBA) (gocv.Mat, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r := uint32(img.Pix[i])
			g := uint32(img.Pix[i+1])
			bl := uint32(img.Pix[i+2])
			gray := uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
			mat.SetUCharAt(y, x, gray)
		}
	}
	return mat, nil
}
