package imaging

import (
	"image"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Diagnostic raster names written by the pipeline.
const (
	DiagCorners       = "corners.png"
	DiagWarped        = "warped.png"
	DiagBackgroundFit = "background_fit.png"
	DiagBlobs         = "blobs.png"
	DiagBlobsMarked   = "blobs_marked.png"
)

// Diagnostics writes intermediate rasters to a directory for inspection.
// A nil *Diagnostics, or one with an empty directory, is disabled and
// silently drops every write. Write failures are logged and otherwise
// ignored.
type Diagnostics struct {
	dir    string
	logger *log.Logger
}

// NewDiagnostics returns a writer rooted at dir. A nil logger discards
// failure messages.
func NewDiagnostics(dir string, logger *log.Logger) *Diagnostics {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Diagnostics{dir: dir, logger: logger}
}

// Enabled reports whether writes go anywhere.
func (d *Diagnostics) Enabled() bool {
	return d != nil && d.dir != ""
}

// Save writes img as name inside the directory, creating the directory on
// first use. It returns the written path, or "" when disabled or on failure.
func (d *Diagnostics) Save(name string, img image.Image) string {
	if !d.Enabled() {
		return ""
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Printf("diagnostics: create %s: %v", d.dir, err)
		return ""
	}
	path := filepath.Join(d.dir, name)
	if err := imaging.Save(img, path); err != nil {
		d.logger.Printf("diagnostics: write %s: %v", path, err)
		return ""
	}
	return path
}
