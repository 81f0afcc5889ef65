package background

import (
	"fmt"
	"math"

	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// Remove subtracts the background surface bg from fg and returns what stands
// above it, clamped to the 8-bit range. With DarkSpots both images are
// inverted first so that spots always come out bright.
func Remove(fg *imaging.GrayImage, bg *imaging.HDRImage, p Polarity) (*imaging.GrayImage, error) {
	if fg.Width != bg.Width || fg.Height != bg.Height {
		return nil, fmt.Errorf("background is %dx%d, image is %dx%d",
			bg.Width, bg.Height, fg.Width, fg.Height)
	}

	if p == DarkSpots {
		fg, bg = fg.Invert(), bg.Invert()
	}

	out := imaging.NewGrayImage(fg.Width, fg.Height)
	for i, v := range fg.Pix {
		out.Pix[i] = imaging.Attenuate(math.Max(0, float64(v)-bg.Pix[i]))
	}
	return out, nil
}
