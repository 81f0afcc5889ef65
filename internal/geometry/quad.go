package geometry

import (
	"fmt"
	"math"
	"sort"
)

// Quad is a quadrilateral with named corners, used for plate outlines and for
// axis-aligned bounding boxes.
type Quad struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// QuadFromPoints assigns corner roles to four unordered points.
//
// The points are stably sorted by Y. The two upper points become TopLeft and
// TopRight, ordered by X; the two lower ones become BottomLeft and BottomRight.
// When two points share an X coordinate the earlier one in sorted order is
// taken as the left corner.
func QuadFromPoints(points [4]Point) Quad {
	sorted := points
	sort.SliceStable(sorted[:], func(i, j int) bool {
		return sorted[i].Y < sorted[j].Y
	})

	topLeft, topRight := sorted[0], sorted[1]
	if topLeft.X > topRight.X {
		topLeft, topRight = topRight, topLeft
	}
	bottomLeft, bottomRight := sorted[2], sorted[3]
	if bottomLeft.X > bottomRight.X {
		bottomLeft, bottomRight = bottomRight, bottomLeft
	}

	return Quad{
		TopLeft:     topLeft,
		TopRight:    topRight,
		BottomRight: bottomRight,
		BottomLeft:  bottomLeft,
	}
}

// QuadFromInts builds a Quad from eight integers read as x/y pairs in any
// corner order. See QuadFromPoints for how roles are assigned.
func QuadFromInts(coords []int) (Quad, error) {
	if len(coords) != 8 {
		return Quad{}, fmt.Errorf("quad needs 8 coordinates, got %d", len(coords))
	}
	var points [4]Point
	for i := range points {
		points[i] = Point{X: float64(coords[2*i]), Y: float64(coords[2*i+1])}
	}
	return QuadFromPoints(points), nil
}

// Ints returns the corners as eight truncated integers in the order
// TopLeft, TopRight, BottomRight, BottomLeft.
func (q Quad) Ints() []int {
	out := make([]int, 0, 8)
	for _, p := range q.Points() {
		out = append(out, int(p.X), int(p.Y))
	}
	return out
}

// Points returns the corners clockwise starting at TopLeft.
func (q Quad) Points() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Dimensions returns the width |TopRight.X - TopLeft.X| and the height
// |BottomRight.Y - TopRight.Y|. For a skewed quad these are the axis extents
// of the top and right edges only.
func (q Quad) Dimensions() (width, height float64) {
	width = math.Abs(q.TopRight.X - q.TopLeft.X)
	height = math.Abs(q.BottomRight.Y - q.TopRight.Y)
	return width, height
}

// AspectRatio returns width / height. A zero height yields +Inf, or NaN when
// the width is zero as well.
func (q Quad) AspectRatio() float64 {
	w, h := q.Dimensions()
	return w / h
}

// Scale multiplies every corner by f.
func (q Quad) Scale(f float64) Quad {
	return Quad{
		TopLeft:     q.TopLeft.Scale(f),
		TopRight:    q.TopRight.Scale(f),
		BottomRight: q.BottomRight.Scale(f),
		BottomLeft:  q.BottomLeft.Scale(f),
	}
}

// BoundingQuad returns the axis-aligned box spanning points. It returns false
// for an empty slice.
func BoundingQuad(points []Point) (Quad, bool) {
	if len(points) == 0 {
		return Quad{}, false
	}
	left, top := points[0].X, points[0].Y
	right, bottom := left, top
	for _, p := range points[1:] {
		left = math.Min(left, p.X)
		right = math.Max(right, p.X)
		top = math.Min(top, p.Y)
		bottom = math.Max(bottom, p.Y)
	}
	return AxisAligned(left, top, right, bottom), true
}

// AxisAligned returns the rectangle with the given edges.
func AxisAligned(left, top, right, bottom float64) Quad {
	return Quad{
		TopLeft:     Point{X: left, Y: top},
		TopRight:    Point{X: right, Y: top},
		BottomRight: Point{X: right, Y: bottom},
		BottomLeft:  Point{X: left, Y: bottom},
	}
}

// InsetQuad returns the rectangle inset by fraction of each dimension from
// every edge of a width×height frame.
func InsetQuad(width, height int, fraction float64) Quad {
	left := float64(width) * fraction
	top := float64(height) * fraction
	return AxisAligned(left, top, float64(width)-left, float64(height)-top)
}
