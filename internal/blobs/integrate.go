package blobs

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// DefaultCutoff is the fraction of each spot's brightest pixels summed by
// Integrate.
const DefaultCutoff = 0.15

// Integrate measures the signal of every spot. All spots share one intensity
// rescaling, taken from the minimum and maximum over the box enclosing every
// spot, so that signals are comparable across the plate. Each spot's window
// values are rescaled to 0-255, truncated, sorted in descending order, and the
// leading floor(n·cutoff) values are summed.
//
// When the shared range is empty every rescaled value is 0.
func Integrate(img *imaging.GrayImage, spots map[int]geometry.Circle, cutoff float64) (map[int]float64, error) {
	if math.IsNaN(cutoff) || cutoff < 0 || cutoff > 1 {
		return nil, fmt.Errorf("cutoff must be within [0, 1], got %v", cutoff)
	}
	out := make(map[int]float64, len(spots))
	if len(spots) == 0 {
		return out, nil
	}

	lo, hi := scaling(img, spots)
	span := float64(hi) - float64(lo)

	for id, c := range spots {
		r := window(c.Quad(), img.Bounds())
		values := make([]int, 0, r.Dx()*r.Dy())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				var v int
				if span > 0 {
					v = int((float64(img.At(x, y)) - float64(lo)) / span * 255)
				}
				values = append(values, v)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(values)))

		n := int(float64(len(values)) * cutoff)
		var sum float64
		for _, v := range values[:n] {
			sum += float64(v)
		}
		out[id] = sum
	}
	return out, nil
}

// scaling returns the intensity range over the box enclosing all spots.
func scaling(img *imaging.GrayImage, spots map[int]geometry.Circle) (lo, hi uint8) {
	points := make([]geometry.Point, 0, 4*len(spots))
	for _, c := range spots {
		q := c.Quad()
		points = append(points, q.TopLeft, q.BottomRight)
	}
	box, _ := geometry.BoundingQuad(points)
	r := window(box, img.Bounds())

	lo, hi = math.MaxUint8, 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := img.At(x, y)
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// window converts an axis-aligned quad into the pixel rectangle starting at
// its floored top-left corner and spanning its truncated extent, clipped to
// bounds.
func window(q geometry.Quad, bounds image.Rectangle) image.Rectangle {
	w, h := q.Dimensions()
	x0 := int(math.Floor(q.TopLeft.X))
	y0 := int(math.Floor(q.TopLeft.Y))
	return image.Rect(x0, y0, x0+int(w), y0+int(h)).Intersect(bounds)
}
