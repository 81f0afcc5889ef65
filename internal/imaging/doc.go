// Package imaging provides the raster types and low level image operations
// used by the TLC plate pipeline.
//
// Two single channel raster types keep precision explicit:
//   - GrayImage: 8-bit values, used for anything stored, displayed or
//     thresholded.
//   - HDRImage: float64 values, used for regression and background
//     subtraction where intermediate values leave the 0-255 range.
//
// Conversions are explicit. GrayImage.ToHDR is exact; HDRImage.ToGray clamps to
// [0,255] and truncates (see Attenuate).
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Pixels are stored row-major, index = y*Width + x
//
// # Operations
//
//   - Loading with EXIF orientation correction and caching (ImageCache)
//   - Global and adaptive (local mean) thresholding
//   - Canny edge detection
//   - Morphological opening
//   - PNG encoding for inline results, overlays and a diagnostics writer
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Raster operations never
// modify their inputs and can be called concurrently.
package imaging
