// Package pipeline chains the plate evaluation stages: plate detection,
// rectification, background removal, spot detection, integration and
// calibration.
//
// Every stage is also callable on its own so that a client can correct an
// intermediate result, for example move a plate corner or drop a spot, and
// resume from there.
package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"

	"github.com/ironsheep/tlc-eval-mcp/internal/background"
	"github.com/ironsheep/tlc-eval-mcp/internal/blobs"
	"github.com/ironsheep/tlc-eval-mcp/internal/calibration"
	"github.com/ironsheep/tlc-eval-mcp/internal/config"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
	"github.com/ironsheep/tlc-eval-mcp/internal/plate"
	"github.com/ironsheep/tlc-eval-mcp/internal/rectify"
)

// Pipeline runs the stages with one tuning configuration. It holds no
// per-image state and may be reused.
type Pipeline struct {
	cfg    *config.Config
	logger *log.Logger
	diag   *imaging.Diagnostics
}

// New returns a pipeline tuned by cfg, or by config.Default when cfg is nil.
// Stage progress is logged to logger; nil discards it. Diagnostic rasters go
// to cfg.Diagnostics.Dir when it is set.
func New(cfg *config.Config, logger *log.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		diag:   imaging.NewDiagnostics(cfg.Diagnostics.Dir, logger),
	}
}

// Config returns the tuning in use.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// PlateOptions converts the plate section of cfg.
func PlateOptions(cfg *config.Config) plate.Options {
	return plate.Options{
		DownscaleTarget:   cfg.Plate.DownscaleTarget,
		VoteThreshold:     cfg.Plate.VoteThreshold,
		SuppressionRadius: cfg.Plate.SuppressionRadius,
		AngleTolerance:    cfg.Plate.AngleTolerance,
		CannyLow:          cfg.Plate.CannyLow,
		CannyHigh:         cfg.Plate.CannyHigh,
		InsetFraction:     cfg.Plate.InsetFraction,
	}
}

// DetectOptions converts the blobs section of cfg.
func DetectOptions(cfg *config.Config) blobs.DetectOptions {
	return blobs.DetectOptions{
		OpeningFraction: cfg.Blobs.OpeningFraction,
		AspectTolerance: cfg.Blobs.AspectTolerance,
		MinSizeFraction: cfg.Blobs.MinSizeFraction,
		MaxSizeFraction: cfg.Blobs.MaxSizeFraction,
	}
}

// DetectPlate locates the plate in img and falls back to the inset
// rectangle when its corners cannot be found.
func (p *Pipeline) DetectPlate(img image.Image) *plate.Detection {
	det := plate.DetectOrFallback(img, PlateOptions(p.cfg))
	if det.Detected {
		p.logger.Printf("plate: %d lines (%d horizontal, %d vertical), corners %v",
			det.Lines, det.Horizontal, det.Vertical, det.Quad.Ints())
	} else {
		p.logger.Printf("plate: corners not found (%d horizontal, %d vertical lines), using inset %v",
			det.Horizontal, det.Vertical, det.Quad.Ints())
	}

	if p.diag.Enabled() {
		canvas := imaging.NewCanvas(img)
		imaging.DrawQuad(canvas, det.Quad, imaging.CornerColor)
		p.diag.Save(imaging.DiagCorners, canvas)
	}
	return det
}

// Rectify turns img clockwise by rotation degrees and warps the quad, given
// in rotated coordinates, onto an upright rectangle.
func (p *Pipeline) Rectify(img image.Image, quad geometry.Quad, rotation int) (*rectify.Result, error) {
	rotated, err := rectify.Rotate(img, rotation)
	if err != nil {
		return nil, err
	}
	res, err := rectify.Rectify(rotated, quad, color.Black)
	if err != nil {
		return nil, fmt.Errorf("rectify plate: %w", err)
	}
	p.logger.Printf("rectify: %dx%d plate", res.Image.Bounds().Dx(), res.Image.Bounds().Dy())
	p.diag.Save(imaging.DiagWarped, res.Image)
	return res, nil
}

// Removal is a plate with its background subtracted.
type Removal struct {
	// Image holds what stands above the background; spots are bright
	// whatever their polarity on the plate.
	Image    *imaging.GrayImage
	Model    *background.Model
	Polarity background.Polarity
}

// RemoveBackground fits the illumination of a rectified plate and subtracts
// it. The spot polarity comes from the configuration, or from the plate's
// colours when configured as auto.
func (p *Pipeline) RemoveBackground(plateImg image.Image) (*Removal, error) {
	polarity, fixed, err := background.ParsePolarity(p.cfg.Background.Polarity)
	if err != nil {
		return nil, err
	}
	if !fixed {
		polarity = background.DetectPolarity(plateImg)
	}

	gray := imaging.GrayFromImage(plateImg)
	model, err := background.Fit(gray, p.cfg.Background.Stride)
	if err != nil {
		return nil, fmt.Errorf("fit background: %w", err)
	}
	surface := model.Surface()
	p.diag.Save(imaging.DiagBackgroundFit, surface.ToGray().ToImage())

	cleaned, err := background.Remove(gray, surface, polarity)
	if err != nil {
		return nil, fmt.Errorf("remove background: %w", err)
	}
	p.logger.Printf("background: %dx%d, stride %d, %s spots", gray.Width, gray.Height, p.cfg.Background.Stride, polarity)
	p.diag.Save(imaging.DiagBlobs, cleaned.ToImage())

	return &Removal{Image: cleaned, Model: model, Polarity: polarity}, nil
}

// DetectBlobs finds the spots on a background-free plate.
func (p *Pipeline) DetectBlobs(cleaned *imaging.GrayImage) map[int]geometry.Circle {
	spots := blobs.Detect(cleaned, DetectOptions(p.cfg))
	p.logger.Printf("blobs: %d spots", len(spots))

	if p.diag.Enabled() {
		canvas := imaging.NewCanvas(cleaned.ToImage())
		ids := SortedIDs(spots)
		colors := imaging.Palette(len(ids))
		for i, id := range ids {
			imaging.DrawCircle(canvas, spots[id], id, colors[i])
		}
		p.diag.Save(imaging.DiagBlobsMarked, canvas)
	}
	return spots
}

// Integrate measures every spot with the configured cutoff.
func (p *Pipeline) Integrate(cleaned *imaging.GrayImage, spots map[int]geometry.Circle) (map[int]float64, error) {
	signals, err := blobs.Integrate(cleaned, spots, p.cfg.Integration.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("integrate spots: %w", err)
	}
	return signals, nil
}

// Calibrate fits percentages to the reference spots and predicts every spot.
func (p *Pipeline) Calibrate(signals, references map[int]float64) (calibration.Model, map[int]float64, error) {
	model, err := calibration.Fit(signals, references)
	if err != nil {
		return calibration.Model{}, nil, fmt.Errorf("calibrate: %w", err)
	}
	p.logger.Printf("calibration: %d references, slope %g, intercept %g", len(references), model.Slope, model.Intercept)
	return model, model.Evaluate(signals), nil
}

// Request describes one full evaluation.
type Request struct {
	// Quad overrides plate detection when set. It is in the coordinates of
	// the rotated image.
	Quad *geometry.Quad
	// Rotation is applied clockwise before warping: 0, 90, 180 or 270.
	Rotation int
	// References maps spot ids to known percentages. Calibration is skipped
	// when empty.
	References map[int]float64
}

// Report is the outcome of a full evaluation.
type Report struct {
	// Plate is nil when the request supplied the quad.
	Plate       *plate.Detection        `json:"plate,omitempty"`
	Quad        geometry.Quad           `json:"quad"`
	Transform   geometry.Matrix3        `json:"transform"`
	Width       int                     `json:"width"`
	Height      int                     `json:"height"`
	Polarity    string                  `json:"polarity"`
	Spots       map[int]geometry.Circle `json:"spots"`
	Signals     map[int]float64         `json:"signals"`
	Calibration *calibration.Model      `json:"calibration,omitempty"`
	Percentages map[int]float64         `json:"percentages,omitempty"`

	Rectified *image.NRGBA       `json:"-"`
	Cleaned   *imaging.GrayImage `json:"-"`
	Model     *background.Model  `json:"-"`
}

// Analyze runs every stage on img. Plate detection failure is not an error:
// the inset fallback is used and reported through Report.Plate.
func (p *Pipeline) Analyze(img image.Image, req Request) (*Report, error) {
	report := &Report{}

	rotated, err := rectify.Rotate(img, req.Rotation)
	if err != nil {
		return nil, err
	}
	if req.Quad != nil {
		report.Quad = *req.Quad
	} else {
		report.Plate = p.DetectPlate(rotated)
		report.Quad = report.Plate.Quad
	}

	rect, err := p.Rectify(rotated, report.Quad, 0)
	if err != nil {
		return nil, err
	}
	report.Rectified = rect.Image
	report.Transform = rect.Transform
	report.Width, report.Height = rect.Image.Bounds().Dx(), rect.Image.Bounds().Dy()

	if err := p.measure(rect.Image, report); err != nil {
		return nil, err
	}

	if len(req.References) == 0 {
		return report, nil
	}
	model, percentages, err := p.Calibrate(report.Signals, req.References)
	if err != nil {
		return report, err
	}
	report.Calibration = &model
	report.Percentages = percentages
	return report, nil
}

// Measure runs background removal, spot detection and integration on an
// already rectified plate.
func (p *Pipeline) Measure(plateImg image.Image) (*Report, error) {
	b := plateImg.Bounds()
	report := &Report{
		Quad:      geometry.AxisAligned(0, 0, float64(b.Dx()-1), float64(b.Dy()-1)),
		Transform: geometry.Identity3(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	if err := p.measure(plateImg, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (p *Pipeline) measure(plateImg image.Image, report *Report) error {
	removal, err := p.RemoveBackground(plateImg)
	if err != nil {
		return err
	}
	report.Cleaned = removal.Image
	report.Model = removal.Model
	report.Polarity = removal.Polarity.String()

	report.Spots = p.DetectBlobs(removal.Image)
	signals, err := p.Integrate(removal.Image, report.Spots)
	if err != nil {
		return err
	}
	report.Signals = signals
	return nil
}
