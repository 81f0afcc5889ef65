// Package detection provides feature detection on binary and label images.
//
// Two capabilities are exposed:
//
//   - Lines: the Hough line transform over an edge map, with a vote threshold
//     and non-maximum suppression in accumulator space (DetectLines).
//   - Connected components: flood-fill labelling with 4- or 8-connectivity and
//     a caller-chosen background value (LabelComponents).
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Lines are reported in polar form (see geometry.PolarLine): distance R from
// the origin and the angle of the line normal in whole degrees, [0, 180).
//
// # Performance Considerations
//
// The Hough transform visits every edge pixel once per degree, so callers
// working on photographs downscale first. Labelling is linear in the pixel
// count and uses an explicit stack, so large regions do not grow the goroutine
// stack.
package detection
