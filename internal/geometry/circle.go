package geometry

import "math"

// Circle is the bounding disc of a detected spot.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// NewCircle returns a circle centred on (x, y).
func NewCircle(x, y, radius float64) Circle {
	return Circle{Center: Point{X: x, Y: y}, Radius: radius}
}

// Quad returns the axis-aligned square circumscribing the circle.
func (c Circle) Quad() Quad {
	return AxisAligned(
		c.Center.X-c.Radius,
		c.Center.Y-c.Radius,
		c.Center.X+c.Radius,
		c.Center.Y+c.Radius,
	)
}

// CircleFromQuad returns the circle inscribed in the bounding box of q:
// centred on the box and with half the shorter side as radius. For the square
// produced by Circle.Quad this is the exact inverse.
func CircleFromQuad(q Quad) Circle {
	pts := q.Points()
	box, _ := BoundingQuad(pts[:])
	w, h := box.Dimensions()
	return Circle{
		Center: Point{X: box.TopLeft.X + w/2, Y: box.TopLeft.Y + h/2},
		Radius: math.Min(w, h) / 2,
	}
}
