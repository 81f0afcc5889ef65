package geometry

import "math"

// PolarLine is a straight line in Hough form: the set of points satisfying
// x·cos(θ) + y·sin(θ) = R, where θ = AngleDegrees in [0, 180).
//
// AngleDegrees 0 is a vertical line at x = R, 90 a horizontal line at y = R.
type PolarLine struct {
	R            float64 `json:"r"`
	AngleDegrees float64 `json:"angle_degrees"`
}

const axisEpsilon = 1e-9

// ImageSegment clips the line against the frame [0,w]×[0,h] and returns the
// two points where it crosses the frame border. It returns false when the line
// misses the frame.
//
// The frame edges are tested in the order right, left, bottom, top and the
// first two hits are returned, so a line through a frame corner can yield the
// same point twice.
func (l PolarLine) ImageSegment(width, height int) ([2]Point, bool) {
	w := float64(width)
	h := float64(height)
	theta := l.AngleDegrees * math.Pi / 180
	sin, cos := math.Sincos(theta)

	if math.Abs(sin) < axisEpsilon {
		x := l.R / cos
		if x >= 0 && x <= w {
			return [2]Point{{X: x, Y: 0}, {X: x, Y: h}}, true
		}
		return [2]Point{}, false
	}
	if math.Abs(cos) < axisEpsilon {
		y := l.R / sin
		if y >= 0 && y <= h {
			return [2]Point{{X: 0, Y: y}, {X: w, Y: y}}, true
		}
		return [2]Point{}, false
	}

	candidates := [4]struct {
		p  Point
		ok bool
	}{}
	rightY := (l.R - w*cos) / sin
	candidates[0].p, candidates[0].ok = Point{X: w, Y: rightY}, rightY >= 0 && rightY <= h
	leftY := l.R / sin
	candidates[1].p, candidates[1].ok = Point{X: 0, Y: leftY}, leftY >= 0 && leftY <= h
	bottomX := (l.R - h*sin) / cos
	candidates[2].p, candidates[2].ok = Point{X: bottomX, Y: h}, bottomX >= 0 && bottomX <= w
	topX := l.R / cos
	candidates[3].p, candidates[3].ok = Point{X: topX, Y: 0}, topX >= 0 && topX <= w

	var seg [2]Point
	n := 0
	for _, c := range candidates {
		if !c.ok {
			continue
		}
		seg[n] = c.p
		n++
		if n == 2 {
			return seg, true
		}
	}
	return [2]Point{}, false
}

// Intersect returns the crossing point of l and other. Both lines are first
// clipped to the width×height frame; lines that miss the frame, and parallel
// or degenerate pairs, report false. The crossing itself may lie outside the
// frame.
func (l PolarLine) Intersect(other PolarLine, width, height int) (Point, bool) {
	own, ok := l.ImageSegment(width, height)
	if !ok {
		return Point{}, false
	}
	theirs, ok := other.ImageSegment(width, height)
	if !ok {
		return Point{}, false
	}

	sd := own[1].Sub(own[0])
	od := theirs[1].Sub(theirs[0])
	cross := sd.Cross(od)
	if math.Abs(cross) < 1e-8 {
		return Point{}, false
	}
	t := theirs[0].Sub(own[0]).Cross(od) / cross
	return own[0].Add(sd.Scale(t)), true
}

// MeanLine averages lines: R arithmetically and the angle as a circular mean
// of sin/cos. Each line is first rewritten in the (−R, θ±180) form closest to
// the first line's angle so that near-vertical lines on both sides of 0°/180°
// agree. The result is normalised back to [0, 180). An empty slice yields the
// zero line.
func MeanLine(lines []PolarLine) PolarLine {
	if len(lines) == 0 {
		return PolarLine{}
	}
	ref := lines[0].AngleDegrees
	var sumR, sumSin, sumCos float64
	for _, l := range lines {
		r, a := l.R, l.AngleDegrees
		switch {
		case a-ref > 90:
			r, a = -r, a-180
		case ref-a > 90:
			r, a = -r, a+180
		}
		sin, cos := math.Sincos(a * math.Pi / 180)
		sumR += r
		sumSin += sin
		sumCos += cos
	}
	n := float64(len(lines))
	angle := math.Atan2(sumSin/n, sumCos/n) * 180 / math.Pi
	return normalizeLine(sumR/n, angle)
}

func normalizeLine(r, angle float64) PolarLine {
	for angle < 0 {
		r, angle = -r, angle+180
	}
	for angle >= 180 {
		r, angle = -r, angle-180
	}
	return PolarLine{R: r, AngleDegrees: angle}
}
