package background

import (
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/histogram"
)

// Polarity states whether spots are darker or brighter than the plate.
type Polarity int

const (
	// DarkSpots are spots that quench the plate's fluorescence.
	DarkSpots Polarity = iota
	// LightSpots are spots brighter than the plate.
	LightSpots
)

func (p Polarity) String() string {
	switch p {
	case DarkSpots:
		return "dark"
	case LightSpots:
		return "light"
	default:
		return fmt.Sprintf("Polarity(%d)", int(p))
	}
}

// ParsePolarity reads a configured polarity. "auto" and the empty string
// report ok=false, meaning the caller should use DetectPolarity.
func ParsePolarity(s string) (p Polarity, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DarkSpots, false, nil
	case "dark":
		return DarkSpots, true, nil
	case "light":
		return LightSpots, true, nil
	default:
		return DarkSpots, false, fmt.Errorf("unknown polarity %q", s)
	}
}

// DetectPolarity guesses the spot polarity of a colour plate photograph from
// its green and blue cumulative histograms. A plate whose green median level
// is at least its blue median is taken to glow green under UV, which shows
// spots dark. Greyscale input therefore always reports DarkSpots.
func DetectPolarity(img image.Image) Polarity {
	cum := histogram.NewRGBAHistogram(img).Cumulative()
	if medianLevel(cum.G.Bins) >= medianLevel(cum.B.Bins) {
		return DarkSpots
	}
	return LightSpots
}

// medianLevel returns the first level whose cumulative count reaches half
// the total. Empty histograms report 0.
func medianLevel(cumulative []int) int {
	if len(cumulative) == 0 {
		return 0
	}
	total := cumulative[len(cumulative)-1]
	for level, n := range cumulative {
		if 2*n >= total {
			return level
		}
	}
	return len(cumulative) - 1
}
