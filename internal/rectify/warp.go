package rectify

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
)

// Result is a rectified plate.
type Result struct {
	// Image is the upright plate, sized by ProposeDestination.
	Image *image.NRGBA
	// Transform maps photograph coordinates onto Image.
	Transform geometry.Matrix3
	// Source is the quadrilateral that was warped.
	Source geometry.Quad
}

// Rectify warps the region of img bounded by quad onto an upright rectangle.
// Each output pixel is sampled bilinearly through the inverse transform;
// samples falling outside img take the fill colour.
func Rectify(img image.Image, quad geometry.Quad, fill color.Color) (*Result, error) {
	width, height, dst := ProposeDestination(quad)
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: destination %dx%d is too small", ErrDegenerateQuad, width, height)
	}

	h, err := ComputeHomography(quad.Points(), dst.Points())
	if err != nil {
		return nil, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateQuad, err)
	}

	src := imaging.Clone(img)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	fc := color.NRGBAModel.Convert(fill).(color.NRGBA)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			off := y * out.Stride
			for x := 0; x < width; x++ {
				p := inv.Apply(geometry.Pt(float64(x), float64(y)))
				c, ok := bilinear(src, p.X, p.Y)
				if !ok {
					c = fc
				}
				out.Pix[off+0] = c.R
				out.Pix[off+1] = c.G
				out.Pix[off+2] = c.B
				out.Pix[off+3] = c.A
				off += 4
			}
		}
	})

	return &Result{Image: out, Transform: h, Source: quad}, nil
}

// edgeTolerance absorbs rounding in the inverse homography for quad corners
// that lie exactly on the first or last pixel row or column.
const edgeTolerance = 1e-6

// bilinear samples src at a fractional position. Positions outside the pixel
// grid, beyond edgeTolerance, report false.
func bilinear(src *image.NRGBA, x, y float64) (color.NRGBA, bool) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	maxX, maxY := float64(w-1), float64(h-1)
	if math.IsNaN(x) || math.IsNaN(y) ||
		x < -edgeTolerance || y < -edgeTolerance ||
		x > maxX+edgeTolerance || y > maxY+edgeTolerance {
		return color.NRGBA{}, false
	}
	x = math.Min(math.Max(x, 0), maxX)
	y = math.Min(math.Max(y, 0), maxY)

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Pix[y0*src.Stride+x0*4:]
	p10 := src.Pix[y0*src.Stride+x1*4:]
	p01 := src.Pix[y1*src.Stride+x0*4:]
	p11 := src.Pix[y1*src.Stride+x1*4:]

	var ch [4]uint8
	for i := range ch {
		top := float64(p00[i])*(1-fx) + float64(p10[i])*fx
		bottom := float64(p01[i])*(1-fx) + float64(p11[i])*fx
		ch[i] = uint8(math.Round(top*(1-fy) + bottom*fy))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

// Rotate turns img clockwise by degrees, which must be 0, 90, 180 or 270.
// Phone cameras report the sensor orientation this way.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	switch degrees {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("unsupported rotation %d, want 0, 90, 180 or 270", degrees)
	}
}
