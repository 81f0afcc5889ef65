package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

// HoughOptions controls straight line detection.
type HoughOptions struct {
	// VoteThreshold is the minimum number of edge pixels a line must pass
	// through to be reported.
	VoteThreshold int

	// SuppressionRadius is the half-width, in accumulator cells along both
	// the distance and the angle axes, of the window a peak must dominate.
	SuppressionRadius int
}

// HoughLine is a detected line together with its accumulator votes.
type HoughLine struct {
	Line  geometry.PolarLine `json:"line"`
	Votes int                `json:"votes"`
}

// DetectLines finds straight lines in a binary edge image using the Hough
// transform. Every non-zero pixel votes for the lines through it at each whole
// degree in [0, 180). The distance axis has a resolution of one pixel.
//
// A cell is reported when it has at least VoteThreshold votes and no cell
// within SuppressionRadius has more. Ties go to the cell met first in
// distance-major scan order. The angle axis does not wrap, so near-vertical
// lines may be reported twice, once near 0° and once near 180° with a negated
// distance.
//
// Lines are returned strongest first; equal votes keep scan order.
func DetectLines(edges *imaging.GrayImage, opts HoughOptions) []HoughLine {
	width := edges.Width
	height := edges.Height

	maxDist := int(math.Ceil(math.Sqrt(float64(width*width + height*height))))
	numAngles := 180
	numRho := 2*maxDist + 1
	accumulator := make([][]int, numRho)
	for i := range accumulator {
		accumulator[i] = make([]int, numAngles)
	}

	cosTable := make([]float64, numAngles)
	sinTable := make([]float64, numAngles)
	for theta := 0; theta < numAngles; theta++ {
		sinTable[theta], cosTable[theta] = math.Sincos(float64(theta) * math.Pi / 180.0)
	}

	// Vote in Hough space
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges.At(x, y) == 0 {
				continue
			}
			for theta := 0; theta < numAngles; theta++ {
				rho := float64(x)*cosTable[theta] + float64(y)*sinTable[theta]
				rhoIdx := int(math.Round(rho)) + maxDist
				if rhoIdx >= 0 && rhoIdx < numRho {
					accumulator[rhoIdx][theta]++
				}
			}
		}
	}

	radius := opts.SuppressionRadius
	if radius < 0 {
		radius = 0
	}

	lines := make([]HoughLine, 0)
	for rhoIdx := 0; rhoIdx < numRho; rhoIdx++ {
		for theta := 0; theta < numAngles; theta++ {
			votes := accumulator[rhoIdx][theta]
			if votes == 0 || votes < opts.VoteThreshold {
				continue
			}
			if !isPeak(accumulator, rhoIdx, theta, radius) {
				continue
			}
			lines = append(lines, HoughLine{
				Line:  geometry.PolarLine{R: float64(rhoIdx - maxDist), AngleDegrees: float64(theta)},
				Votes: votes,
			})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Votes > lines[j].Votes
	})
	return lines
}

// isPeak reports whether cell (r, t) dominates its neighbourhood. Earlier cells
// in scan order win ties.
func isPeak(acc [][]int, r, t, radius int) bool {
	votes := acc[r][t]
	for nr := r - radius; nr <= r+radius; nr++ {
		if nr < 0 || nr >= len(acc) {
			continue
		}
		row := acc[nr]
		for nt := t - radius; nt <= t+radius; nt++ {
			if nt < 0 || nt >= len(row) || (nr == r && nt == t) {
				continue
			}
			n := row[nt]
			if n > votes {
				return false
			}
			if n == votes && (nr < r || (nr == r && nt < t)) {
				return false
			}
		}
	}
	return true
}
