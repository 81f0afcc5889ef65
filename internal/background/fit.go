package background

import (
	"errors"
	"fmt"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// DefaultStride is the sampling stride used when none is configured.
const DefaultStride = 16

// ErrSingularFit is returned when the sampled pixels do not determine the
// polynomial, for example on a single-row image or a too coarse stride.
var ErrSingularFit = errors.New("background fit is singular")

// Model is a fitted background surface over a Width×Height image.
//
// Coordinates are mapped to [-1, 1] on both axes before Basis is applied, so
// Coefficients are relative to the normalised frame rather than to pixels.
type Model struct {
	Intercept    float64
	Coefficients [Terms]float64
	Width        int
	Height       int
}

// Fit estimates the background of img by ordinary least squares. Every pixel
// whose row-major index is a multiple of stride is a training sample.
func Fit(img *imaging.GrayImage, stride int) (*Model, error) {
	if stride < 1 {
		return nil, fmt.Errorf("stride must be at least 1, got %d", stride)
	}
	total := img.Width * img.Height
	samples := (total + stride - 1) / stride
	if samples < Terms+1 {
		return nil, fmt.Errorf("%w: %d samples for %d unknowns", ErrSingularFit, samples, Terms+1)
	}

	a := mat.NewDense(samples, Terms+1, nil)
	b := mat.NewVecDense(samples, nil)
	row := make([]float64, Terms+1)
	for i, n := 0, 0; i < total; i, n = i+stride, n+1 {
		x, y := i%img.Width, i/img.Width
		terms := Basis(normalize(x, img.Width), normalize(y, img.Height))
		row[0] = 1
		copy(row[1:], terms[:])
		a.SetRow(n, row)
		b.SetVec(n, float64(img.Pix[i]))
	}

	var qr mat.QR
	qr.Factorize(a)
	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	m := &Model{Intercept: params.AtVec(0), Width: img.Width, Height: img.Height}
	for i := range m.Coefficients {
		m.Coefficients[i] = params.AtVec(i + 1)
	}
	if !m.finite() {
		return nil, fmt.Errorf("%w: non-finite coefficients", ErrSingularFit)
	}
	return m, nil
}

// At evaluates the surface at pixel (x, y).
func (m *Model) At(x, y int) float64 {
	terms := Basis(normalize(x, m.Width), normalize(y, m.Height))
	v := m.Intercept
	for i, t := range terms {
		v += m.Coefficients[i] * t
	}
	return v
}

// Surface evaluates the model at every pixel of its frame.
func (m *Model) Surface() *imaging.HDRImage {
	out := imaging.NewHDRImage(m.Width, m.Height)
	parallel.Line(m.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < m.Width; x++ {
				out.Set(x, y, m.At(x, y))
			}
		}
	})
	return out
}

func (m *Model) finite() bool {
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return false
	}
	for _, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// normalize maps pixel index v in [0, size) linearly onto [-1, 1]. A single
// pixel axis maps to 0.
func normalize(v, size int) float64 {
	if size < 2 {
		return 0
	}
	return 2*float64(v)/float64(size-1) - 1
}
