package analysis

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sunaifei/HistomicsTK/pkg/colorutil"
)

// Plane is a single-channel float image in tile coordinates.
type Plane struct {
	Data   []float64
	Width  int
	Height int
}

// At returns the value at (x, y). Out-of-range coordinates return 0.
func (p Plane) At(x, y int) float64 {
	if x < 0 || x >= p.Width || y < 0 || y >= p.Height {
		return 0
	}
	return p.Data[y*p.Width+x]
}

// StainMatrix holds one optical-density column vector per stain.
type StainMatrix struct {
	m *mat.Dense
}

// HEStainMatrix builds the standard hematoxylin/eosin stain matrix with
// the third column completed as the normalized cross product of the
// first two (the "complement" stain).
func HEStainMatrix() StainMatrix {
	hematoxylin := [3]float64{0.650, 0.704, 0.286}
	eosin := [3]float64{0.072, 0.990, 0.105}
	return NewStainMatrix(hematoxylin, eosin)
}

// NewStainMatrix builds a stain matrix from two stain vectors, deriving
// the third orthogonal stain automatically. Inputs are normalized.
func NewStainMatrix(stain1, stain2 [3]float64) StainMatrix {
	s1 := normalize3(stain1)
	s2 := normalize3(stain2)
	s3 := normalize3(cross3(s1, s2))

	m := mat.NewDense(3, 3, []float64{
		s1[0], s2[0], s3[0],
		s1[1], s2[1], s3[1],
		s1[2], s2[2], s3[2],
	})
	return StainMatrix{m: m}
}

// Deconvolve unmixes the tile into per-stain concentration planes by
// inverting the stain matrix and applying it to each pixel's optical
// density vector. Plane 0 is the first stain (hematoxylin for H&E).
func Deconvolve(img *image.RGBA, stains StainMatrix) ([]Plane, error) {
	var inv mat.Dense
	if err := inv.Inverse(stains.m); err != nil {
		return nil, fmt.Errorf("stain matrix is not invertible: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	planes := make([]Plane, 3)
	for s := range planes {
		planes[s] = Plane{Data: make([]float64, w*h), Width: w, Height: h}
	}

	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			odR := colorutil.RGBToOD(img.Pix[o])
			odG := colorutil.RGBToOD(img.Pix[o+1])
			odB := colorutil.RGBToOD(img.Pix[o+2])

			for s := 0; s < 3; s++ {
				c := inv.At(s, 0)*odR + inv.At(s, 1)*odG + inv.At(s, 2)*odB
				if c < 0 {
					c = 0
				}
				planes[s].Data[i] = c
			}
			i++
		}
	}
	return planes, nil
}

func normalize3(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
