package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
)

func TestNewCanvas_CopiesSource(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 30, 20))
	src.SetGray(10, 10, color.Gray{Y: 200})

	canvas := NewCanvas(src)
	if canvas.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("bounds: got %v", canvas.Bounds())
	}
	if r, _, _, _ := canvas.At(0, 0).RGBA(); r>>8 != 200 {
		t.Errorf("origin pixel: got %d, want 200", r>>8)
	}

	canvas.Set(0, 0, color.Black)
	if src.GrayAt(10, 10).Y != 200 {
		t.Error("drawing on the canvas changed the source")
	}
}

func TestPalette(t *testing.T) {
	p := Palette(6)
	if len(p) != 6 {
		t.Fatalf("got %d colours, want 6", len(p))
	}
	seen := map[color.Color]bool{}
	for _, c := range p {
		if seen[c] {
			t.Errorf("duplicate colour %v", c)
		}
		seen[c] = true
	}
	// Hue 0 is red
	if c := p[0].(color.RGBA); c.R != 255 || c.G > c.R/2 {
		t.Errorf("first colour: got %v, want a red", c)
	}
}

func TestDrawQuad(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 50, 50))
	red := color.RGBA{255, 0, 0, 255}

	DrawQuad(canvas, geometry.AxisAligned(10, 10, 40, 30), red)

	for _, p := range []image.Point{{10, 10}, {25, 10}, {40, 20}, {25, 30}, {10, 20}} {
		if canvas.RGBAAt(p.X, p.Y) != red {
			t.Errorf("expected outline pixel at %v", p)
		}
	}
	if canvas.RGBAAt(25, 20) == red {
		t.Error("interior should stay untouched")
	}
}

func TestDrawCircle(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 60, 60))
	green := color.RGBA{0, 255, 0, 255}

	DrawCircle(canvas, geometry.NewCircle(30, 30, 10), 7, green)

	for _, p := range []image.Point{{40, 30}, {20, 30}, {30, 20}} {
		if canvas.RGBAAt(p.X, p.Y) != green {
			t.Errorf("expected circle pixel at %v", p)
		}
	}

	// Partially outside must not panic
	DrawCircle(canvas, geometry.NewCircle(2, 2, 20), 1, green)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		wantR   uint8
		wantG   uint8
		wantB   uint8
		wantA   uint8
		wantErr bool
	}{
		{"#FF0000", 255, 0, 0, 255, false},
		{"#00FF00", 0, 255, 0, 255, false},
		{"#0000FF", 0, 0, 255, 255, false},
		{"#FFFFFF", 255, 255, 255, 255, false},
		{"#000000", 0, 0, 0, 255, false},
		{"FF0000", 255, 0, 0, 255, false},    // without #
		{"#FF000080", 255, 0, 0, 128, false}, // with alpha
		{"FF000080", 255, 0, 0, 128, false},  // without # with alpha
		{"", 0, 0, 0, 0, true},               // empty
		{"#FFF", 0, 0, 0, 0, true},           // invalid length
		{"#GGGGGG", 0, 0, 0, 0, true},        // invalid hex
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := ParseHexColor(tt.hex)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if c.R != tt.wantR || c.G != tt.wantG || c.B != tt.wantB || c.A != tt.wantA {
				t.Errorf("got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					c.R, c.G, c.B, c.A, tt.wantR, tt.wantG, tt.wantB, tt.wantA)
			}
		})
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	drawLabel(img, 10, 10, "12", LabelFG, LabelBG)

	hasWhite := false
	hasBlack := false
	for y := 9; y < 20; y++ {
		for x := 9; x < 40; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r > 200<<8 {
				hasWhite = true
			}
			if r < 50<<8 {
				hasBlack = true
			}
		}
	}

	if !hasWhite {
		t.Error("label should have white pixels (text)")
	}
	if !hasBlack {
		t.Error("label should have dark pixels (background)")
	}
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	// These should not panic even if label extends past bounds
	drawLabel(img, 15, 15, "100,100", LabelFG, LabelBG)
	drawLabel(img, 0, 0, "0,0", LabelFG, LabelBG)
	drawLabel(img, -5, -5, "test", LabelFG, LabelBG)
	drawLabel(img, 10, 10, "", LabelFG, LabelBG)
}
