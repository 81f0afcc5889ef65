// Package blobs finds the spots on a background-free plate image and
// measures how much substance each one holds.
package blobs

import (
	"image"
	"math"

	"github.com/ironsheep/tlc-eval-mcp/internal/detection"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// DetectOptions tunes spot segmentation. Fractions are relative to the larger
// image dimension.
type DetectOptions struct {
	// OpeningFraction sizes the opening that removes specks after
	// thresholding.
	OpeningFraction float64
	// AspectTolerance bounds how far a spot's bounding box may be from
	// square: its aspect ratio must lie in [1-tol, 1+tol].
	AspectTolerance float64
	MinSizeFraction float64
	MaxSizeFraction float64
}

// DefaultDetectOptions returns the tuning used for phone photographs of
// standard plates.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		OpeningFraction: 0.0075,
		AspectTolerance: 0.75,
		MinSizeFraction: 0.02,
		MaxSizeFraction: 0.25,
	}
}

// Spot is a labelled region before filtering.
type Spot struct {
	ID       int
	Centroid geometry.Point
	Box      geometry.Quad
	Pixels   int
}

// Circle returns the spot's disc: centred on the centroid, with the distance
// to the nearest bounding box corner as radius.
func (s Spot) Circle() geometry.Circle {
	r := math.Inf(1)
	for _, c := range s.Box.Points() {
		r = math.Min(r, s.Centroid.Distance(c))
	}
	return geometry.Circle{Center: s.Centroid, Radius: r}
}

// Detect segments img into spots and returns the plausible ones keyed by
// label. Labels are assigned in raster order of each spot's first pixel and
// are stable for a given image and options.
func Detect(img *imaging.GrayImage, opts DetectOptions) map[int]geometry.Circle {
	maxDim := float64(max(img.Width, img.Height))
	out := make(map[int]geometry.Circle)
	for _, s := range Segment(img, opts) {
		if !accept(s.Box, maxDim, opts) {
			continue
		}
		out[s.ID] = s.Circle()
	}
	return out
}

// Segment thresholds img at its mean, opens the result and labels the
// remaining regions. It returns every region without size filtering, in label
// order.
func Segment(img *imaging.GrayImage, opts DetectOptions) []Spot {
	if img.Width == 0 || img.Height == 0 {
		return nil
	}
	maxDim := float64(max(img.Width, img.Height))

	binary := imaging.Threshold(img, img.Mean())
	opened := imaging.Open(binary, int(maxDim*opts.OpeningFraction))
	labels := detection.LabelComponents(opened, detection.Four, opened.Min())
	if labels.Count == 0 {
		return nil
	}

	type moments struct {
		wx, wy, w float64
		x, y      float64
		n         int
	}
	acc := make([]moments, labels.Count+1)
	for y := 0; y < labels.Height; y++ {
		for x := 0; x < labels.Width; x++ {
			id := labels.At(x, y)
			if id == 0 {
				continue
			}
			v := float64(img.At(x, y))
			m := &acc[id]
			m.wx += v * float64(x)
			m.wy += v * float64(y)
			m.w += v
			m.x += float64(x)
			m.y += float64(y)
			m.n++
		}
	}

	boxes := labels.Bounds()
	spots := make([]Spot, 0, labels.Count)
	for id := 1; id <= labels.Count; id++ {
		m := acc[id]
		var c geometry.Point
		if m.w > 0 {
			c = geometry.Pt(m.wx/m.w, m.wy/m.w)
		} else {
			c = geometry.Pt(m.x/float64(m.n), m.y/float64(m.n))
		}
		spots = append(spots, Spot{
			ID:       id,
			Centroid: c,
			Box:      boxQuad(boxes[id]),
			Pixels:   m.n,
		})
	}
	return spots
}

func boxQuad(r image.Rectangle) geometry.Quad {
	return geometry.AxisAligned(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}

// accept applies the aspect ratio and size filters. Box extents are measured
// between the outermost pixel coordinates, so a single pixel is 0 wide.
func accept(box geometry.Quad, maxDim float64, opts DetectOptions) bool {
	aspect := box.AspectRatio()
	if math.IsNaN(aspect) || aspect < 1-opts.AspectTolerance || aspect > 1+opts.AspectTolerance {
		return false
	}
	lo, hi := maxDim*opts.MinSizeFraction, maxDim*opts.MaxSizeFraction
	w, h := box.Dimensions()
	return w >= lo && w <= hi && h >= lo && h <= hi
}
