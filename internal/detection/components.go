package detection

import (
	"image"

	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// Connectivity selects which neighbours join a component.
type Connectivity int

const (
	// Four joins pixels sharing an edge.
	Four Connectivity = 4
	// Eight also joins diagonal neighbours.
	Eight Connectivity = 8
)

// Labels is a per-pixel component map. Background pixels hold 0 and the
// components hold 1..Count, numbered in raster order of their first pixel.
type Labels struct {
	Width  int
	Height int
	Pix    []int
	Count  int
}

// At returns the label of pixel (x, y).
func (l *Labels) At(x, y int) int {
	return l.Pix[y*l.Width+x]
}

// Bounds returns the inclusive bounding box of every label, indexed by label.
// Entry 0 is unused.
func (l *Labels) Bounds() []image.Rectangle {
	boxes := make([]image.Rectangle, l.Count+1)
	seen := make([]bool, l.Count+1)
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			id := l.At(x, y)
			if id == 0 {
				continue
			}
			if !seen[id] {
				boxes[id] = image.Rect(x, y, x, y)
				seen[id] = true
				continue
			}
			b := &boxes[id]
			if x < b.Min.X {
				b.Min.X = x
			}
			if x > b.Max.X {
				b.Max.X = x
			}
			if y > b.Max.Y {
				b.Max.Y = y
			}
		}
	}
	return boxes
}

// LabelComponents labels the connected regions of img. Pixels equal to
// background are never labelled. Two neighbouring pixels belong to the same
// component only when their values are equal, so on a binary image this is
// ordinary foreground labelling.
func LabelComponents(img *imaging.GrayImage, conn Connectivity, background uint8) *Labels {
	labels := &Labels{Width: img.Width, Height: img.Height, Pix: make([]int, len(img.Pix))}

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.At(x, y) == background || labels.At(x, y) != 0 {
				continue
			}
			labels.Count++
			floodFill(img, labels, x, y, conn, labels.Count)
		}
	}
	return labels
}

var (
	fourNeighbours  = []image.Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	eightNeighbours = []image.Point{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow on large
// regions.
func floodFill(img *imaging.GrayImage, labels *Labels, startX, startY int, conn Connectivity, id int) {
	value := img.At(startX, startY)
	offsets := fourNeighbours
	if conn == Eight {
		offsets = eightNeighbours
	}

	labels.Pix[startY*labels.Width+startX] = id
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, o := range offsets {
			nx, ny := p.X+o.X, p.Y+o.Y
			if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
				continue
			}
			idx := ny*img.Width + nx
			if labels.Pix[idx] != 0 || img.Pix[idx] != value {
				continue
			}
			labels.Pix[idx] = id
			stack = append(stack, image.Point{X: nx, Y: ny})
		}
	}
}
