package imaging

import (
	"image"
	"image/color"
	"math"
)

// GrayImage is an 8-bit ("LDR") single channel raster used for stored and
// displayed images. Pixels are kept row-major in Pix with no padding.
type GrayImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// HDRImage is a float64 single channel raster used for regression and
// background subtraction. Values are nominally on the 0-255 scale but are not
// clamped, so fitted surfaces may leave that range.
type HDRImage struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrayImage allocates a black width×height image.
func NewGrayImage(width, height int) *GrayImage {
	return &GrayImage{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// NewHDRImage allocates a zero-valued width×height image.
func NewHDRImage(width, height int) *HDRImage {
	return &HDRImage{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// GrayFromImage converts any image to 8-bit luminance using the ITU-R BT.601
// weights of color.GrayModel. The result is rebased to a (0,0) origin.
func GrayFromImage(img image.Image) *GrayImage {
	bounds := img.Bounds()
	out := NewGrayImage(bounds.Dx(), bounds.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < out.Height; y++ {
			start := g.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(out.Pix[y*out.Width:(y+1)*out.Width], g.Pix[start:start+out.Width])
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray)
			out.Pix[y*out.Width+x] = c.Y
		}
	}
	return out
}

// At returns the pixel at (x, y). No bounds checking is performed.
func (g *GrayImage) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

// Set writes the pixel at (x, y). No bounds checking is performed.
func (g *GrayImage) Set(x, y int, v uint8) {
	g.Pix[y*g.Width+x] = v
}

// Bounds returns the image rectangle anchored at the origin.
func (g *GrayImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// ToImage wraps the pixels in a standard *image.Gray for encoding or for
// handing to image libraries. The pixel slice is copied.
func (g *GrayImage) ToImage() *image.Gray {
	out := image.NewGray(g.Bounds())
	copy(out.Pix, g.Pix)
	return out
}

// Clone returns a deep copy.
func (g *GrayImage) Clone() *GrayImage {
	out := NewGrayImage(g.Width, g.Height)
	copy(out.Pix, g.Pix)
	return out
}

// ToHDR widens every pixel to float64. The conversion is exact.
func (g *GrayImage) ToHDR() *HDRImage {
	out := NewHDRImage(g.Width, g.Height)
	for i, v := range g.Pix {
		out.Pix[i] = float64(v)
	}
	return out
}

// Invert maps every pixel v to 255 - v.
func (g *GrayImage) Invert() *GrayImage {
	out := NewGrayImage(g.Width, g.Height)
	for i, v := range g.Pix {
		out.Pix[i] = math.MaxUint8 - v
	}
	return out
}

// Mean returns the average intensity truncated to an integer. An empty image
// yields 0.
func (g *GrayImage) Mean() uint8 {
	if len(g.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range g.Pix {
		sum += uint64(v)
	}
	return uint8(float64(sum) / float64(len(g.Pix)))
}

// Min returns the lowest intensity, or 255 for an empty image.
func (g *GrayImage) Min() uint8 {
	min := uint8(math.MaxUint8)
	for _, v := range g.Pix {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the highest intensity, or 0 for an empty image.
func (g *GrayImage) Max() uint8 {
	var max uint8
	for _, v := range g.Pix {
		if v > max {
			max = v
		}
	}
	return max
}

// At returns the value at (x, y). No bounds checking is performed.
func (h *HDRImage) At(x, y int) float64 {
	return h.Pix[y*h.Width+x]
}

// Set writes the value at (x, y). No bounds checking is performed.
func (h *HDRImage) Set(x, y int, v float64) {
	h.Pix[y*h.Width+x] = v
}

// ToGray narrows every value with Attenuate. The conversion is lossy.
func (h *HDRImage) ToGray() *GrayImage {
	out := NewGrayImage(h.Width, h.Height)
	for i, v := range h.Pix {
		out.Pix[i] = Attenuate(v)
	}
	return out
}

// Invert maps every value v to 255 - v. Values outside 0-255 stay unclamped.
func (h *HDRImage) Invert() *HDRImage {
	out := NewHDRImage(h.Width, h.Height)
	for i, v := range h.Pix {
		out.Pix[i] = math.MaxUint8 - v
	}
	return out
}

// Attenuate clamps v into the 8-bit range and truncates the fraction.
// NaN maps to 0.
func Attenuate(v float64) uint8 {
	switch {
	case v >= math.MaxUint8:
		return math.MaxUint8
	case v > 0:
		return uint8(v)
	default:
		return 0
	}
}
