package imaging

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestThreshold(t *testing.T) {
	g := &GrayImage{Width: 4, Height: 1, Pix: []uint8{10, 50, 51, 255}}
	got := Threshold(g, 50)
	if diff := cmp.Diff([]uint8{0, 0, 255, 255}, got.Pix); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestAdaptiveThreshold_Uniform(t *testing.T) {
	g := NewGrayImage(12, 7)
	for i := range g.Pix {
		g.Pix[i] = 90
	}
	for i, v := range AdaptiveThreshold(g, 3).Pix {
		if v != 255 {
			t.Fatalf("pixel %d: uniform regions should be white, got %d", i, v)
		}
	}
}

func TestAdaptiveThreshold_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := NewGrayImage(13, 9)
	for i := range g.Pix {
		g.Pix[i] = uint8(rng.Intn(256))
	}

	for _, radius := range []int{0, 1, 2, 5, 20} {
		got := AdaptiveThreshold(g, radius)
		want := bruteForceAdaptive(g, radius)
		if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
			t.Errorf("radius %d mismatch (-want +got):\n%s", radius, diff)
		}
	}
}

func TestAdaptiveThreshold_Step(t *testing.T) {
	// Bright plate on a dark bench: the plate stays white, the bench next
	// to it turns black.
	g := NewGrayImage(40, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if x >= 20 {
				g.Set(x, y, 200)
			} else {
				g.Set(x, y, 30)
			}
		}
	}

	bin := AdaptiveThreshold(g, 6)
	if bin.At(21, 10) != 255 {
		t.Error("plate side of the step should be white")
	}
	if bin.At(18, 10) != 0 {
		t.Error("bench side of the step should be black")
	}
	if bin.At(2, 10) != 255 {
		t.Error("bench far from the plate is locally uniform and should be white")
	}
}

func bruteForceAdaptive(g *GrayImage, radius int) *GrayImage {
	out := NewGrayImage(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var sum, n uint64
			for wy := y - radius; wy <= y+radius; wy++ {
				for wx := x - radius; wx <= x+radius; wx++ {
					if wx < 0 || wy < 0 || wx >= g.Width || wy >= g.Height {
						continue
					}
					sum += uint64(g.At(wx, wy))
					n++
				}
			}
			if uint64(g.At(x, y)) >= sum/n {
				out.Set(x, y, 255)
			}
		}
	}
	return out
}
