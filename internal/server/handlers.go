package server

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/tlc-eval-mcp/internal/background"
	"github.com/ironsheep/tlc-eval-mcp/internal/blobs"
	"github.com/ironsheep/tlc-eval-mcp/internal/calibration"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	tlcimaging "github.com/ironsheep/tlc-eval-mcp/internal/imaging"
	"github.com/ironsheep/tlc-eval-mcp/internal/pipeline"
	"github.com/ironsheep/tlc-eval-mcp/internal/rectify"
)

// previewMaxDim bounds the longer side of base64 previews.
const previewMaxDim = 1024

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "tlc_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads images from cache as needed
//  4. Runs the pipeline stage
//  5. Saves stage images for the next tool and returns their paths
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)

	// Plate Stages
	case "tlc_detect_plate":
		return s.handleDetectPlate(args)
	case "tlc_rectify":
		return s.handleRectify(args)
	case "tlc_remove_background":
		return s.handleRemoveBackground(args)
	case "tlc_detect_blobs":
		return s.handleDetectBlobs(args)
	case "tlc_integrate_blobs":
		return s.handleIntegrateBlobs(args)
	case "tlc_fit_percentages":
		return s.handleFitPercentages(args)

	// Full Evaluation
	case "tlc_analyze":
		return s.handleAnalyze(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Stage image storage ===

// outputDir picks where stage images go: the call's directory, else the
// configured diagnostics directory, else a per-process temporary directory.
func (s *Server) outputDir(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if dir := s.pipeline.Config().Diagnostics.Dir; dir != "" {
		return dir, nil
	}
	s.tempOnce.Do(func() {
		s.tempDir, s.tempErr = os.MkdirTemp("", "tlc-mcp-*")
	})
	return s.tempDir, s.tempErr
}

// store writes img into dir under a fresh name derived from name, so that
// paths handed out by earlier calls keep pointing at their own image, and
// caches it under that path for the next stage.
func (s *Server) store(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	ext := filepath.Ext(name)
	f, err := os.CreateTemp(dir, strings.TrimSuffix(name, ext)+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	path := f.Name()
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	s.cache.Put(path, img)
	return path, nil
}

// === Wire types ===

// spotJSON is a spot on the wire. Callers may give Quad, a box drawn
// around the spot, instead of a centre and radius.
type spotJSON struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	R    float64 `json:"r"`
	Quad []int   `json:"quad,omitempty"`
}

type signalJSON struct {
	ID     int     `json:"id"`
	Signal float64 `json:"signal"`
}

type percentJSON struct {
	ID      int     `json:"id"`
	Percent float64 `json:"percent"`
}

func spotsToJSON(spots map[int]geometry.Circle) []spotJSON {
	out := make([]spotJSON, 0, len(spots))
	for _, id := range pipeline.SortedIDs(spots) {
		c := spots[id]
		out = append(out, spotJSON{ID: id, X: c.Center.X, Y: c.Center.Y, R: c.Radius})
	}
	return out
}

func spotsFromJSON(in []spotJSON) (map[int]geometry.Circle, error) {
	out := make(map[int]geometry.Circle, len(in))
	for _, sp := range in {
		if _, dup := out[sp.ID]; dup {
			return nil, fmt.Errorf("duplicate spot id %d", sp.ID)
		}
		if sp.Quad != nil {
			q, err := geometry.QuadFromInts(sp.Quad)
			if err != nil {
				return nil, fmt.Errorf("spot %d: %w", sp.ID, err)
			}
			out[sp.ID] = geometry.CircleFromQuad(q)
			continue
		}
		if sp.R < 0 {
			return nil, fmt.Errorf("spot %d has negative radius", sp.ID)
		}
		out[sp.ID] = geometry.NewCircle(sp.X, sp.Y, sp.R)
	}
	return out, nil
}

func signalsToJSON(signals map[int]float64) []signalJSON {
	out := make([]signalJSON, 0, len(signals))
	for _, id := range pipeline.SortedIDs(signals) {
		out = append(out, signalJSON{ID: id, Signal: signals[id]})
	}
	return out
}

func percentagesToJSON(pct map[int]float64) []percentJSON {
	out := make([]percentJSON, 0, len(pct))
	for _, id := range pipeline.SortedIDs(pct) {
		out = append(out, percentJSON{ID: id, Percent: pct[id]})
	}
	return out
}

func referencesFromJSON(in []percentJSON) map[int]float64 {
	out := make(map[int]float64, len(in))
	for _, r := range in {
		out[r.ID] = r.Percent
	}
	return out
}

func parseQuad(coords []int) (*geometry.Quad, error) {
	if coords == nil {
		return nil, nil
	}
	q, err := geometry.QuadFromInts(coords)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return tlcimaging.LoadImageInfo(s.cache, a.Path)
}

// === Plate Stage Handlers ===

type detectPlateArgs struct {
	Path     string `json:"path"`
	Rotation int    `json:"rotation"`
	Preview  bool   `json:"preview"`
}

type detectPlateResult struct {
	Quad       []int                    `json:"quad"`
	Detected   bool                     `json:"detected"`
	Lines      int                      `json:"lines"`
	Horizontal int                      `json:"horizontal"`
	Vertical   int                      `json:"vertical"`
	Preview    *tlcimaging.EncodedImage `json:"preview,omitempty"`
}

func (s *Server) handleDetectPlate(args json.RawMessage) (interface{}, error) {
	var a detectPlateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	rotated, err := rectify.Rotate(img, a.Rotation)
	if err != nil {
		return nil, err
	}

	det := s.pipeline.DetectPlate(rotated)
	result := &detectPlateResult{
		Quad:       det.Quad.Ints(),
		Detected:   det.Detected,
		Lines:      det.Lines,
		Horizontal: det.Horizontal,
		Vertical:   det.Vertical,
	}
	if a.Preview {
		canvas := tlcimaging.NewCanvas(rotated)
		tlcimaging.DrawQuad(canvas, det.Quad, tlcimaging.CornerColor)
		if result.Preview, err = tlcimaging.EncodePNG(canvas, previewMaxDim); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type rectifyArgs struct {
	Path      string `json:"path"`
	Quad      []int  `json:"quad"`
	Rotation  int    `json:"rotation"`
	OutputDir string `json:"output_dir"`
}

type rectifyResult struct {
	Path      string           `json:"path"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Transform geometry.Matrix3 `json:"transform"`
}

func (s *Server) handleRectify(args json.RawMessage) (interface{}, error) {
	var a rectifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	quad, err := parseQuad(a.Quad)
	if err != nil {
		return nil, err
	}
	if quad == nil {
		return nil, fmt.Errorf("quad is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	dir, err := s.outputDir(a.OutputDir)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.Rectify(img, *quad, a.Rotation)
	if err != nil {
		return nil, err
	}
	path, err := s.store(dir, tlcimaging.DiagWarped, res.Image)
	if err != nil {
		return nil, err
	}
	return &rectifyResult{
		Path:      path,
		Width:     res.Image.Bounds().Dx(),
		Height:    res.Image.Bounds().Dy(),
		Transform: res.Transform,
	}, nil
}

type removeBackgroundArgs struct {
	Path      string `json:"path"`
	Polarity  string `json:"polarity"`
	Stride    int    `json:"stride"`
	OutputDir string `json:"output_dir"`
}

type removeBackgroundResult struct {
	Path           string                    `json:"path"`
	BackgroundPath string                    `json:"background_path"`
	Polarity       string                    `json:"polarity"`
	Intercept      float64                   `json:"intercept"`
	Coefficients   [background.Terms]float64 `json:"coefficients"`
}

func (s *Server) handleRemoveBackground(args json.RawMessage) (interface{}, error) {
	var a removeBackgroundArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	dir, err := s.outputDir(a.OutputDir)
	if err != nil {
		return nil, err
	}

	p := s.pipeline
	if a.Polarity != "" || a.Stride != 0 {
		cfg := *p.Config()
		if a.Polarity != "" {
			cfg.Background.Polarity = a.Polarity
		}
		if a.Stride != 0 {
			cfg.Background.Stride = a.Stride
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		p = pipeline.New(&cfg, s.logger)
	}

	removal, err := p.RemoveBackground(img)
	if err != nil {
		return nil, err
	}
	path, err := s.store(dir, tlcimaging.DiagBlobs, removal.Image.ToImage())
	if err != nil {
		return nil, err
	}
	bgPath, err := s.store(dir, tlcimaging.DiagBackgroundFit, removal.Model.Surface().ToGray().ToImage())
	if err != nil {
		return nil, err
	}
	return &removeBackgroundResult{
		Path:           path,
		BackgroundPath: bgPath,
		Polarity:       removal.Polarity.String(),
		Intercept:      removal.Model.Intercept,
		Coefficients:   removal.Model.Coefficients,
	}, nil
}

type detectBlobsArgs struct {
	Path    string `json:"path"`
	Preview bool   `json:"preview"`
}

type detectBlobsResult struct {
	Spots   []spotJSON               `json:"spots"`
	Preview *tlcimaging.EncodedImage `json:"preview,omitempty"`
}

func (s *Server) handleDetectBlobs(args json.RawMessage) (interface{}, error) {
	var a detectBlobsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	cleaned := tlcimaging.GrayFromImage(img)
	spots := s.pipeline.DetectBlobs(cleaned)
	result := &detectBlobsResult{Spots: spotsToJSON(spots)}
	if a.Preview {
		canvas := tlcimaging.NewCanvas(img)
		ids := pipeline.SortedIDs(spots)
		colors := tlcimaging.Palette(len(ids))
		for i, id := range ids {
			tlcimaging.DrawCircle(canvas, spots[id], id, colors[i])
		}
		if result.Preview, err = tlcimaging.EncodePNG(canvas, previewMaxDim); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type integrateBlobsArgs struct {
	Path   string     `json:"path"`
	Spots  []spotJSON `json:"spots"`
	Cutoff *float64   `json:"cutoff"`
}

type integrateBlobsResult struct {
	Cutoff  float64      `json:"cutoff"`
	Signals []signalJSON `json:"signals"`
}

func (s *Server) handleIntegrateBlobs(args json.RawMessage) (interface{}, error) {
	var a integrateBlobsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	spots, err := spotsFromJSON(a.Spots)
	if err != nil {
		return nil, err
	}
	cutoff := s.pipeline.Config().Integration.Cutoff
	if a.Cutoff != nil {
		cutoff = *a.Cutoff
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	signals, err := blobs.Integrate(tlcimaging.GrayFromImage(img), spots, cutoff)
	if err != nil {
		return nil, err
	}
	return &integrateBlobsResult{Cutoff: cutoff, Signals: signalsToJSON(signals)}, nil
}

type fitPercentagesArgs struct {
	Signals    []signalJSON  `json:"signals"`
	References []percentJSON `json:"references"`
}

type fitPercentagesResult struct {
	Slope       float64       `json:"slope"`
	Intercept   float64       `json:"intercept"`
	Percentages []percentJSON `json:"percentages"`
}

func (s *Server) handleFitPercentages(args json.RawMessage) (interface{}, error) {
	var a fitPercentagesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	signals := make(map[int]float64, len(a.Signals))
	for _, sig := range a.Signals {
		signals[sig.ID] = sig.Signal
	}

	model, pct, err := s.pipeline.Calibrate(signals, referencesFromJSON(a.References))
	if err != nil {
		return nil, err
	}
	return &fitPercentagesResult{
		Slope:       model.Slope,
		Intercept:   model.Intercept,
		Percentages: percentagesToJSON(pct),
	}, nil
}

// === Full Evaluation Handler ===

type analyzeArgs struct {
	Path       string        `json:"path"`
	Quad       []int         `json:"quad"`
	Rotation   int           `json:"rotation"`
	References []percentJSON `json:"references"`
	OutputDir  string        `json:"output_dir"`
}

type analyzeResult struct {
	Quad          []int              `json:"quad"`
	Detected      *bool              `json:"detected,omitempty"`
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Transform     geometry.Matrix3   `json:"transform"`
	Polarity      string             `json:"polarity"`
	Spots         []spotJSON         `json:"spots"`
	Signals       []signalJSON       `json:"signals"`
	Calibration   *calibration.Model `json:"calibration,omitempty"`
	Percentages   []percentJSON      `json:"percentages,omitempty"`
	RectifiedPath string             `json:"rectified_path"`
	CleanedPath   string             `json:"cleaned_path"`
}

func (s *Server) handleAnalyze(args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	quad, err := parseQuad(a.Quad)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	dir, err := s.outputDir(a.OutputDir)
	if err != nil {
		return nil, err
	}

	report, err := s.pipeline.Analyze(img, pipeline.Request{
		Quad:       quad,
		Rotation:   a.Rotation,
		References: referencesFromJSON(a.References),
	})
	if err != nil {
		return nil, err
	}

	result := &analyzeResult{
		Quad:        report.Quad.Ints(),
		Width:       report.Width,
		Height:      report.Height,
		Transform:   report.Transform,
		Polarity:    report.Polarity,
		Spots:       spotsToJSON(report.Spots),
		Signals:     signalsToJSON(report.Signals),
		Calibration: report.Calibration,
	}
	if report.Plate != nil {
		result.Detected = &report.Plate.Detected
	}
	if report.Percentages != nil {
		result.Percentages = percentagesToJSON(report.Percentages)
	}
	if result.RectifiedPath, err = s.store(dir, tlcimaging.DiagWarped, report.Rectified); err != nil {
		return nil, err
	}
	if result.CleanedPath, err = s.store(dir, tlcimaging.DiagBlobs, report.Cleaned.ToImage()); err != nil {
		return nil, err
	}
	return result, nil
}
