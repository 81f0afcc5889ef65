package imaging

import "github.com/anthonynsimon/bild/effect"

// Open performs a morphological opening (erosion followed by dilation) with a
// square structuring element of side 2·radius+1. Specks smaller than the
// element vanish while larger shapes keep their outline. A radius of 0 returns
// an unchanged copy.
func Open(img *GrayImage, radius int) *GrayImage {
	if radius <= 0 {
		return img.Clone()
	}
	eroded := effect.Erode(img.ToImage(), float64(radius))
	dilated := effect.Dilate(eroded, float64(radius))
	return GrayFromImage(dilated)
}
