// Package plate locates the TLC plate in a photograph.
//
// The plate is found as the quadrilateral bounded by its two longest pairs of
// roughly axis-aligned edges. Detection works on a downscaled copy: the image
// is binarised against its local mean, edges are extracted with Canny and
// straight lines with the Hough transform. Intersections of near-horizontal
// and near-vertical lines are grouped by the image corner they are closest to
// and averaged into the four plate corners.
//
// When a corner has no intersection, it is recovered from the averaged edge
// line of its partner corner along the plate's long axis, clipped to the image
// frame. When recovery fails Detect returns ErrCornersNotFound and callers may
// fall back to FallbackQuad.
package plate

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/tlc-eval-mcp/internal/detection"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	tlcimaging "github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// ErrCornersNotFound is returned when fewer than four plate corners could be
// resolved.
var ErrCornersNotFound = errors.New("plate corners not found")

// Options tunes plate detection.
type Options struct {
	// DownscaleTarget is the largest side, in pixels, of the working copy.
	DownscaleTarget int
	// VoteThreshold and SuppressionRadius configure the Hough transform.
	VoteThreshold     int
	SuppressionRadius int
	// AngleTolerance is how far, in degrees, a line may lean and still count
	// as horizontal or vertical.
	AngleTolerance float64
	// CannyLow and CannyHigh are the edge hysteresis thresholds.
	CannyLow  float64
	CannyHigh float64
	// InsetFraction positions FallbackQuad.
	InsetFraction float64
}

// DefaultOptions returns the tuned detector settings.
func DefaultOptions() Options {
	return Options{
		DownscaleTarget:   256,
		VoteThreshold:     40,
		SuppressionRadius: 8,
		AngleTolerance:    2,
		CannyLow:          50,
		CannyHigh:         100,
		InsetFraction:     0.1,
	}
}

// Detection is the outcome of plate detection in full-resolution pixel
// coordinates.
type Detection struct {
	Quad geometry.Quad `json:"quad"`
	// Detected is false when Quad is the inset fallback rather than a
	// detected plate.
	Detected bool `json:"detected"`
	// Scale is the factor between the working copy and the input.
	Scale int `json:"scale"`
	// Lines, Horizontal and Vertical count the Hough lines found and how many
	// of them were near-horizontal and near-vertical.
	Lines      int `json:"lines"`
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
}

// Detect finds the plate quadrilateral in img.
//
// On ErrCornersNotFound the returned Detection is still non-nil and carries
// the line counts, with a zero Quad and Detected false.
func Detect(img image.Image, opts Options) (*Detection, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrCornersNotFound)
	}

	small, scale := downscale(img, opts.DownscaleTarget)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()

	gray := tlcimaging.GrayFromImage(small)
	binary := tlcimaging.AdaptiveThreshold(gray, min(w, h)/3)
	edges := tlcimaging.Canny(binary, opts.CannyLow, opts.CannyHigh)
	found := detection.DetectLines(edges, detection.HoughOptions{
		VoteThreshold:     opts.VoteThreshold,
		SuppressionRadius: opts.SuppressionRadius,
	})

	horizontal, vertical := partitionLines(found, opts.AngleTolerance)
	det := &Detection{
		Scale:      scale,
		Lines:      len(found),
		Horizontal: len(horizontal),
		Vertical:   len(vertical),
	}

	quad, ok := locateCorners(horizontal, vertical, w, h)
	if !ok {
		return det, fmt.Errorf("%w: %d horizontal and %d vertical lines", ErrCornersNotFound, len(horizontal), len(vertical))
	}

	det.Quad = quad.Scale(float64(scale))
	det.Detected = true
	return det, nil
}

// DetectOrFallback runs Detect and substitutes FallbackQuad when the corners
// cannot be found. The substitution is visible through Detection.Detected.
func DetectOrFallback(img image.Image, opts Options) *Detection {
	det, err := Detect(img, opts)
	if err == nil {
		return det
	}
	if det == nil {
		det = &Detection{Scale: 1}
	}
	det.Quad = FallbackQuad(img.Bounds().Dx(), img.Bounds().Dy(), opts.InsetFraction)
	det.Detected = false
	return det
}

// FallbackQuad returns the axis-aligned rectangle inset by fraction of the
// width and height from every edge.
func FallbackQuad(width, height int, fraction float64) geometry.Quad {
	return geometry.InsetQuad(width, height, fraction)
}

// downscale halves the image until both sides fit within target. It always
// halves at least once and returns the total scale factor.
func downscale(img image.Image, target int) (image.Image, int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	shift := 1
	for w>>shift > target || h>>shift > target {
		shift++
	}
	sw := max(w>>shift, 1)
	sh := max(h>>shift, 1)
	return imaging.Resize(img, sw, sh, imaging.NearestNeighbor), 1 << shift
}
