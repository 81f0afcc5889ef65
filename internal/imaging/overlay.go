package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
)

// Overlay colours used by the diagnostics writer.
var (
	CornerColor = mustHex("#FF3030")
	LabelFG     = color.RGBA{255, 255, 255, 255}
	LabelBG     = color.RGBA{0, 0, 0, 180}
)

// NewCanvas copies img into a fresh RGBA image anchored at the origin so it
// can be drawn on without touching the source.
func NewCanvas(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas
}

// Palette returns n well separated, fully saturated colours by stepping the
// hue around the HSV wheel.
func Palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		c := colorful.Hsv(360*float64(i)/float64(n), 0.85, 1)
		r, g, b := c.RGB255()
		out[i] = color.RGBA{r, g, b, 255}
	}
	return out
}

// DrawQuad outlines q and marks each corner with a small cross.
func DrawQuad(dst *image.RGBA, q geometry.Quad, c color.Color) {
	pts := q.Points()
	for i := range pts {
		drawLine(dst, pts[i], pts[(i+1)%len(pts)], c)
		drawCross(dst, pts[i], 6, c)
	}
}

// DrawCircle outlines circle and writes its id next to the centre.
func DrawCircle(dst *image.RGBA, circle geometry.Circle, id int, c color.Color) {
	steps := 8*int(math.Ceil(circle.Radius)) + 16
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		sin, cos := math.Sincos(a)
		x := int(math.Round(circle.Center.X + circle.Radius*cos))
		y := int(math.Round(circle.Center.Y + circle.Radius*sin))
		if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
			dst.Set(x, y, c)
		}
	}
	drawCross(dst, circle.Center, 2, c)
	drawLabel(dst, int(circle.Center.X)+3, int(circle.Center.Y)+3, strconv.Itoa(id), LabelFG, LabelBG)
}

// drawLine rasterises the segment a-b by stepping one pixel along the
// longer axis.
func drawLine(dst *image.RGBA, a, b geometry.Point, c color.Color) {
	d := b.Sub(a)
	steps := int(math.Ceil(math.Max(math.Abs(d.X), math.Abs(d.Y))))
	if steps == 0 {
		steps = 1
	}
	bounds := dst.Bounds()
	for i := 0; i <= steps; i++ {
		p := a.Add(d.Scale(float64(i) / float64(steps)))
		pt := image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
		if pt.In(bounds) {
			dst.Set(pt.X, pt.Y, c)
		}
	}
}

func drawCross(dst *image.RGBA, p geometry.Point, size float64, c color.Color) {
	drawLine(dst, p.Add(geometry.Pt(-size, 0)), p.Add(geometry.Pt(size, 0)), c)
	drawLine(dst, p.Add(geometry.Pt(0, -size)), p.Add(geometry.Pt(0, size)), c)
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" (leading # optional).
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	hex = strings.TrimPrefix(hex, "#")

	var a uint8 = 255
	switch len(hex) {
	case 6:
	case 8:
		val, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		a = uint8(val)
		hex = hex[:6]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

func mustHex(hex string) color.RGBA {
	c, err := ParseHexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// drawLabel draws a simple text label at the given position using a 3x5
// pixel digit font.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	// Draw background
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	// Draw text
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
