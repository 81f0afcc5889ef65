// Package rectify maps the detected plate quadrilateral onto an upright
// rectangle.
//
// The mapping is a planar homography estimated from the four corner
// correspondences. It is exposed as a geometry.Matrix3 so callers can project
// points between photograph and plate coordinates.
package rectify

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
)

// ErrDegenerateQuad is returned when four points do not span a
// quadrilateral, so no unique homography exists.
var ErrDegenerateQuad = errors.New("degenerate quadrilateral")

// minSpan is the smallest corner separation, and the smallest doubled triangle
// area, accepted as non-degenerate.
const minSpan = 1e-6

// ProposeDestination returns the upright rectangle a quad is warped onto. Its
// width is the longer of the top and bottom edges and its height the longer
// of the left and right edges, both truncated to whole pixels. The returned
// corners address the first and last pixel, so they run from (0,0) to
// (width-1, height-1).
func ProposeDestination(q geometry.Quad) (width, height int, dst geometry.Quad) {
	width = int(math.Max(q.BottomRight.Distance(q.BottomLeft), q.TopRight.Distance(q.TopLeft)))
	height = int(math.Max(q.TopRight.Distance(q.BottomRight), q.TopLeft.Distance(q.BottomLeft)))
	dst = geometry.AxisAligned(0, 0, float64(width-1), float64(height-1))
	return width, height, dst
}

// ComputeHomography returns the projective transform mapping each src point
// onto the dst point at the same index. The result is scaled so that its
// bottom-right element is 1.
//
// Both point sets are normalised (centroid at the origin, mean distance √2)
// before the 8×8 linear system is solved, which keeps it well conditioned for
// photograph-sized coordinates.
func ComputeHomography(src, dst [4]geometry.Point) (geometry.Matrix3, error) {
	if err := checkQuad(src); err != nil {
		return geometry.Matrix3{}, fmt.Errorf("source: %w", err)
	}
	if err := checkQuad(dst); err != nil {
		return geometry.Matrix3{}, fmt.Errorf("destination: %w", err)
	}

	srcT, srcN := normalize(src)
	dstT, dstN := normalize(dst)

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return geometry.Matrix3{}, fmt.Errorf("%w: %v", ErrDegenerateQuad, err)
	}

	var hn geometry.Matrix3
	for i := 0; i < 8; i++ {
		hn[i] = sol.AtVec(i)
	}
	hn[8] = 1

	dstInv, err := dstT.Inverse()
	if err != nil {
		return geometry.Matrix3{}, fmt.Errorf("%w: %v", ErrDegenerateQuad, err)
	}
	h := dstInv.Mul(hn).Mul(srcT)
	if math.Abs(h[8]) < 1e-12 {
		return geometry.Matrix3{}, fmt.Errorf("%w: transform sends the origin to infinity", ErrDegenerateQuad)
	}
	for i := range h {
		h[i] /= h[8]
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return geometry.Matrix3{}, fmt.Errorf("%w: non-finite transform", ErrDegenerateQuad)
		}
	}
	return h, nil
}

// checkQuad rejects repeated corners and any three collinear corners.
func checkQuad(pts [4]geometry.Point) error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if pts[i].Distance(pts[j]) < minSpan {
				return fmt.Errorf("%w: corners %d and %d coincide", ErrDegenerateQuad, i, j)
			}
		}
	}
	for skip := 0; skip < 4; skip++ {
		var tri []geometry.Point
		for i, p := range pts {
			if i != skip {
				tri = append(tri, p)
			}
		}
		if math.Abs(tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))) < minSpan {
			return fmt.Errorf("%w: three corners are collinear", ErrDegenerateQuad)
		}
	}
	return nil
}

// normalize returns the similarity transform T that moves the centroid of pts
// to the origin and scales their mean distance to √2, together with the
// transformed points.
func normalize(pts [4]geometry.Point) (geometry.Matrix3, [4]geometry.Point) {
	c := geometry.MeanPoint(pts[:])
	var mean float64
	for _, p := range pts {
		mean += p.Distance(c)
	}
	mean /= float64(len(pts))
	s := math.Sqrt2 / mean

	t := geometry.Matrix3{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}
	var out [4]geometry.Point
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return t, out
}
