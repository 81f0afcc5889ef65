package plate

import (
	"math"

	"github.com/ironsheep/tlc-eval-mcp/internal/detection"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
)

// Corner indices, in canonical order.
const (
	topLeft = iota
	topRight
	bottomRight
	bottomLeft
)

// partitionLines splits lines into near-horizontal and near-vertical sets.
// Lines leaning more than tolerance degrees are dropped.
func partitionLines(lines []detection.HoughLine, tolerance float64) (horizontal, vertical []geometry.PolarLine) {
	for _, l := range lines {
		a := l.Line.AngleDegrees
		switch {
		case math.Abs(a-90) <= tolerance:
			horizontal = append(horizontal, l.Line)
		case a <= tolerance || a >= 180-tolerance:
			vertical = append(vertical, l.Line)
		}
	}
	return horizontal, vertical
}

// cornerGroup collects the intersections assigned to one image corner along
// with the plate edge lines that produced them.
type cornerGroup struct {
	points []geometry.Point
	lines  []geometry.PolarLine
}

// locateCorners turns the line sets into the four plate corners of a
// width×height image.
func locateCorners(horizontal, vertical []geometry.PolarLine, width, height int) (geometry.Quad, bool) {
	w, h := float64(width), float64(height)
	landscape := width > height
	canonical := [4]geometry.Point{
		topLeft:     geometry.Pt(0, 0),
		topRight:    geometry.Pt(w, 0),
		bottomRight: geometry.Pt(w, h),
		bottomLeft:  geometry.Pt(0, h),
	}

	var groups [4]cornerGroup
	for _, hl := range horizontal {
		for _, vl := range vertical {
			p, ok := hl.Intersect(vl, width, height)
			if !ok || p.X < 0 || p.X >= w || p.Y < 0 || p.Y >= h {
				continue
			}
			// Keep the line running along the plate's long side.
			dominant := vl
			if landscape {
				dominant = hl
			}
			i := nearestCorner(p, canonical)
			groups[i].points = append(groups[i].points, p)
			groups[i].lines = append(groups[i].lines, dominant)
		}
	}

	var corners [4]geometry.Point
	var resolved [4]bool
	var edges [4]geometry.PolarLine
	for i, g := range groups {
		if len(g.points) == 0 {
			continue
		}
		corners[i] = geometry.MeanPoint(g.points)
		edges[i] = geometry.MeanLine(g.lines)
		resolved[i] = true
	}

	pairs := [2][2]int{{topLeft, bottomLeft}, {topRight, bottomRight}}
	if landscape {
		pairs = [2][2]int{{topLeft, topRight}, {bottomLeft, bottomRight}}
	}
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		switch {
		case resolved[a] && !resolved[b]:
			corners[b], resolved[b] = recoverCorner(edges[a], canonical[b], width, height)
		case resolved[b] && !resolved[a]:
			corners[a], resolved[a] = recoverCorner(edges[b], canonical[a], width, height)
		}
	}

	for _, ok := range resolved {
		if !ok {
			return geometry.Quad{}, false
		}
	}
	return geometry.Quad{
		TopLeft:     corners[topLeft],
		TopRight:    corners[topRight],
		BottomRight: corners[bottomRight],
		BottomLeft:  corners[bottomLeft],
	}, true
}

// nearestCorner returns the index of the canonical corner closest to p. Ties
// go to the earlier corner.
func nearestCorner(p geometry.Point, canonical [4]geometry.Point) int {
	best := 0
	bestDist := p.DistanceSquared(canonical[0])
	for i := 1; i < len(canonical); i++ {
		if d := p.DistanceSquared(canonical[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// recoverCorner estimates a missing corner as the end of edge, clipped to the
// frame, that lies closest to the corner's canonical position.
func recoverCorner(edge geometry.PolarLine, target geometry.Point, width, height int) (geometry.Point, bool) {
	seg, ok := edge.ImageSegment(width, height)
	if !ok {
		return geometry.Point{}, false
	}
	if seg[1].DistanceSquared(target) < seg[0].DistanceSquared(target) {
		return seg[1], true
	}
	return seg[0], true
}
