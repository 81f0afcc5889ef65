package imaging

import "github.com/anthonynsimon/bild/parallel"

// Threshold binarises img: pixels strictly brighter than level become 255,
// everything else 0.
func Threshold(img *GrayImage, level uint8) *GrayImage {
	out := NewGrayImage(img.Width, img.Height)
	for i, v := range img.Pix {
		if v > level {
			out.Pix[i] = 255
		}
	}
	return out
}

// AdaptiveThreshold binarises img against its local mean. A pixel becomes 255
// when it is at least as bright as the integer mean of the (2r+1)×(2r+1)
// window centred on it, clipped to the image. Uniform regions therefore come
// out white.
func AdaptiveThreshold(img *GrayImage, radius int) *GrayImage {
	out := NewGrayImage(img.Width, img.Height)
	if img.Width == 0 || img.Height == 0 {
		return out
	}
	if radius < 0 {
		radius = 0
	}

	integral := newIntegralImage(img)
	parallel.Line(img.Height, func(start, end int) {
		for y := start; y < end; y++ {
			y0 := clamp(y-radius, 0, img.Height-1)
			y1 := clamp(y+radius, 0, img.Height-1)
			for x := 0; x < img.Width; x++ {
				x0 := clamp(x-radius, 0, img.Width-1)
				x1 := clamp(x+radius, 0, img.Width-1)
				count := uint64((x1 - x0 + 1) * (y1 - y0 + 1))
				mean := integral.sum(x0, y0, x1, y1) / count
				if uint64(img.At(x, y)) >= mean {
					out.Set(x, y, 255)
				}
			}
		}
	})
	return out
}

// integralImage holds running sums with a zero guard row and column, so
// entry (x+1, y+1) is the sum of all pixels in [0,x]×[0,y].
type integralImage struct {
	stride int
	sums   []uint64
}

func newIntegralImage(img *GrayImage) *integralImage {
	stride := img.Width + 1
	sums := make([]uint64, stride*(img.Height+1))
	for y := 0; y < img.Height; y++ {
		var row uint64
		for x := 0; x < img.Width; x++ {
			row += uint64(img.At(x, y))
			sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + row
		}
	}
	return &integralImage{stride: stride, sums: sums}
}

// sum returns the pixel total over the inclusive rectangle [x0,x1]×[y0,y1].
func (ii *integralImage) sum(x0, y0, x1, y1 int) uint64 {
	s := ii.stride
	return ii.sums[(y1+1)*s+x1+1] + ii.sums[y0*s+x0] - ii.sums[y0*s+x1+1] - ii.sums[(y1+1)*s+x0]
}
