package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/tlc-eval-mcp/internal/config"
	"github.com/ironsheep/tlc-eval-mcp/internal/geometry"
	"github.com/ironsheep/tlc-eval-mcp/internal/imaging"
)

var (
	brightCenter = geometry.Pt(35, 35)
	dimCenter    = geometry.Pt(65, 65)
)

// writePNG encodes img into dir and returns its path.
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createPlateFile writes a 100×100 plate with a lighting gradient and two
// spots brighter than the plate: one strong at (35,35) and one weak at
// (65,65), both of radius 7.
func createPlateFile(t *testing.T) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			fx, fy := float64(x), float64(y)
			v := 70 + 0.3*fx + 0.2*fy - 0.002*fx*fx + 0.001*fx*fy - 0.0015*fy*fy
			p := geometry.Pt(fx, fy)
			if p.Distance(brightCenter) <= 7 {
				v += 120
			}
			if p.Distance(dimCenter) <= 7 {
				v += 60
			}
			img.SetGray(x, y, color.Gray{Y: imaging.Attenuate(v)})
		}
	}
	return writePNG(t, t.TempDir(), "plate.png", img)
}

func lightServer() *Server {
	cfg := config.Default()
	cfg.Background.Polarity = "light"
	return New(cfg, nil)
}

// callTool runs a tools/call request and decodes the tool's JSON text into
// out. It fails the test on any error response.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) {
	t.Helper()

	resp := callToolRaw(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %v (%v)", name, resp.Error.Message, resp.Error.Data)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("%s: result should be a map", name)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("%s: expected a single content entry", name)
	}
	if content[0]["type"] != "text" {
		t.Errorf("%s: content type: got %v, want text", name, content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("%s: failed to decode result: %v\n%s", name, err, text)
	}
}

func callToolRaw(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	return resp
}

func nearestSpot(spots []spotJSON, p geometry.Point) (spotJSON, bool) {
	var best spotJSON
	found := false
	for _, sp := range spots {
		if !found || geometry.Pt(sp.X, sp.Y).Distance(p) < geometry.Pt(best.X, best.Y).Distance(p) {
			best, found = sp, true
		}
	}
	return best, found
}

func fileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	var info imaging.ImageInfo
	callTool(t, s, "image_load", map[string]interface{}{"path": path}, &info)

	if info.Width != 100 || info.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", info.Width, info.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New(nil, nil)

	for _, name := range []string{"image_load", "tlc_detect_plate", "tlc_remove_background", "tlc_detect_blobs", "tlc_analyze"} {
		t.Run(name, func(t *testing.T) {
			resp := callToolRaw(t, s, name, map[string]interface{}{"path": "/nonexistent/plate.png"})
			if resp.Error == nil {
				t.Fatal("Expected error for non-existent file")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(nil, nil)

	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid`),
	})
	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_DetectPlate(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	var result detectPlateResult
	callTool(t, s, "tlc_detect_plate", map[string]interface{}{
		"path":     path,
		"rotation": 90,
		"preview":  true,
	}, &result)

	// A plate without edges falls back to the 10% inset.
	if result.Detected {
		t.Error("plate without edges should not be reported as detected")
	}
	want := []int{10, 10, 90, 10, 90, 90, 10, 90}
	if len(result.Quad) != len(want) {
		t.Fatalf("quad: got %v, want %v", result.Quad, want)
	}
	for i := range want {
		if result.Quad[i] != want[i] {
			t.Errorf("quad: got %v, want %v", result.Quad, want)
			break
		}
	}
	if result.Preview == nil || result.Preview.ImageBase64 == "" {
		t.Error("expected a preview")
	}
}

func TestHandleToolsCall_Pipeline(t *testing.T) {
	s := lightServer()
	path := createPlateFile(t)
	out := t.TempDir()

	var rectified rectifyResult
	callTool(t, s, "tlc_rectify", map[string]interface{}{
		"path":       path,
		"quad":       []int{0, 0, 99, 0, 99, 99, 0, 99},
		"output_dir": out,
	}, &rectified)
	if rectified.Width != 99 || rectified.Height != 99 {
		t.Errorf("rectified size: got %dx%d, want 99x99", rectified.Width, rectified.Height)
	}
	if filepath.Dir(rectified.Path) != out || !strings.HasPrefix(filepath.Base(rectified.Path), "warped-") {
		t.Errorf("rectified path: got %s", rectified.Path)
	}
	fileExists(t, rectified.Path)

	var removed removeBackgroundResult
	callTool(t, s, "tlc_remove_background", map[string]interface{}{
		"path":       rectified.Path,
		"output_dir": out,
	}, &removed)
	if removed.Polarity != "light" {
		t.Errorf("polarity: got %s, want light", removed.Polarity)
	}
	fileExists(t, removed.Path)
	fileExists(t, removed.BackgroundPath)

	var detected detectBlobsResult
	callTool(t, s, "tlc_detect_blobs", map[string]interface{}{
		"path":    removed.Path,
		"preview": true,
	}, &detected)
	if len(detected.Spots) < 2 {
		t.Fatalf("expected at least 2 spots, got %d", len(detected.Spots))
	}
	if detected.Preview == nil {
		t.Error("expected a preview")
	}

	scale := 98.0 / 99.0
	bright, _ := nearestSpot(detected.Spots, brightCenter.Scale(scale))
	dim, _ := nearestSpot(detected.Spots, dimCenter.Scale(scale))
	if bright.ID == dim.ID {
		t.Fatalf("both implants matched spot %d", bright.ID)
	}
	if d := geometry.Pt(bright.X, bright.Y).Distance(brightCenter.Scale(scale)); d > 2 {
		t.Errorf("bright spot off by %.2f px: %+v", d, bright)
	}

	var integrated integrateBlobsResult
	callTool(t, s, "tlc_integrate_blobs", map[string]interface{}{
		"path":  removed.Path,
		"spots": detected.Spots,
	}, &integrated)
	if integrated.Cutoff != 0.15 {
		t.Errorf("cutoff: got %v, want the configured 0.15", integrated.Cutoff)
	}
	signals := make(map[int]float64)
	for _, sig := range integrated.Signals {
		signals[sig.ID] = sig.Signal
	}
	if len(signals) != len(detected.Spots) {
		t.Errorf("signals: got %d, want one per spot (%d)", len(signals), len(detected.Spots))
	}
	if signals[bright.ID] <= signals[dim.ID] {
		t.Errorf("bright signal %v should exceed dim signal %v", signals[bright.ID], signals[dim.ID])
	}

	var fitted fitPercentagesResult
	callTool(t, s, "tlc_fit_percentages", map[string]interface{}{
		"signals": integrated.Signals,
		"references": []percentJSON{
			{ID: bright.ID, Percent: 90},
			{ID: dim.ID, Percent: 30},
		},
	}, &fitted)
	if fitted.Slope <= 0 {
		t.Errorf("slope: got %v, want positive", fitted.Slope)
	}
	for _, pct := range fitted.Percentages {
		switch pct.ID {
		case bright.ID:
			if math.Abs(pct.Percent-90) > 1e-6 {
				t.Errorf("bright reference: got %v, want 90", pct.Percent)
			}
		case dim.ID:
			if math.Abs(pct.Percent-30) > 1e-6 {
				t.Errorf("dim reference: got %v, want 30", pct.Percent)
			}
		}
	}
}

func TestHandleToolsCall_RectifyRequiresQuad(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	resp := callToolRaw(t, s, "tlc_rectify", map[string]interface{}{"path": path})
	if resp.Error == nil {
		t.Fatal("Expected error without quad")
	}

	resp = callToolRaw(t, s, "tlc_rectify", map[string]interface{}{
		"path": path,
		"quad": []int{1, 2, 3},
	})
	if resp.Error == nil {
		t.Fatal("Expected error for short quad")
	}
}

func TestHandleToolsCall_RemoveBackgroundOptions(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)
	out := t.TempDir()

	// The default configuration leaves polarity on auto: a grey plate
	// reads as dark spots.
	var auto removeBackgroundResult
	callTool(t, s, "tlc_remove_background", map[string]interface{}{
		"path":       path,
		"output_dir": out,
	}, &auto)
	if auto.Polarity != "dark" {
		t.Errorf("auto polarity: got %s, want dark", auto.Polarity)
	}

	var light removeBackgroundResult
	callTool(t, s, "tlc_remove_background", map[string]interface{}{
		"path":       path,
		"polarity":   "light",
		"stride":     4,
		"output_dir": out,
	}, &light)
	if light.Polarity != "light" {
		t.Errorf("polarity override: got %s, want light", light.Polarity)
	}
	if s.pipeline.Config().Background.Polarity != "auto" {
		t.Error("per-call overrides must not change the server configuration")
	}

	for _, bad := range []map[string]interface{}{
		{"path": path, "polarity": "sideways", "output_dir": out},
		{"path": path, "stride": -1, "output_dir": out},
	} {
		if resp := callToolRaw(t, s, "tlc_remove_background", bad); resp.Error == nil {
			t.Errorf("Expected error for %v", bad)
		}
	}
}

func TestHandleToolsCall_IntegrateBlobsErrors(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"cutoff above one", map[string]interface{}{
			"path":   path,
			"spots":  []spotJSON{{ID: 0, X: 35, Y: 35, R: 7}},
			"cutoff": 1.5,
		}},
		{"duplicate id", map[string]interface{}{
			"path":  path,
			"spots": []spotJSON{{ID: 0, X: 35, Y: 35, R: 7}, {ID: 0, X: 65, Y: 65, R: 7}},
		}},
		{"short spot quad", map[string]interface{}{
			"path":  path,
			"spots": []spotJSON{{ID: 0, Quad: []int{28, 28, 42, 28}}},
		}},
		{"negative radius", map[string]interface{}{
			"path":  path,
			"spots": []spotJSON{{ID: 0, X: 35, Y: 35, R: -1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := callToolRaw(t, s, "tlc_integrate_blobs", tt.args); resp.Error == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestHandleToolsCall_IntegrateBlobsQuadSpots(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	var byCircle, byQuad integrateBlobsResult
	callTool(t, s, "tlc_integrate_blobs", map[string]interface{}{
		"path":  path,
		"spots": []spotJSON{{ID: 3, X: 35, Y: 35, R: 7}, {ID: 4, X: 65, Y: 65, R: 7}},
	}, &byCircle)
	callTool(t, s, "tlc_integrate_blobs", map[string]interface{}{
		"path": path,
		"spots": []spotJSON{
			{ID: 3, Quad: []int{28, 28, 42, 28, 42, 42, 28, 42}},
			{ID: 4, Quad: []int{72, 72, 58, 72, 58, 58, 72, 58}},
		},
	}, &byQuad)

	if len(byQuad.Signals) != 2 {
		t.Fatalf("signals: got %d, want 2", len(byQuad.Signals))
	}
	for i := range byCircle.Signals {
		if byCircle.Signals[i] != byQuad.Signals[i] {
			t.Errorf("spot %d: circle gives %v, quad gives %v",
				byCircle.Signals[i].ID, byCircle.Signals[i].Signal, byQuad.Signals[i].Signal)
		}
	}
}

func TestHandleToolsCall_FitPercentages(t *testing.T) {
	s := New(nil, nil)

	var fitted fitPercentagesResult
	callTool(t, s, "tlc_fit_percentages", map[string]interface{}{
		"signals": []signalJSON{
			{ID: 2, Signal: 300},
			{ID: 0, Signal: 100},
			{ID: 1, Signal: 200},
		},
		"references": []percentJSON{
			{ID: 0, Percent: 10},
			{ID: 2, Percent: 50},
		},
	}, &fitted)

	if math.Abs(fitted.Slope-0.2) > 1e-9 || math.Abs(fitted.Intercept+10) > 1e-9 {
		t.Errorf("model: got slope %v intercept %v, want 0.2 and -10", fitted.Slope, fitted.Intercept)
	}
	if len(fitted.Percentages) != 3 {
		t.Fatalf("percentages: got %d, want 3", len(fitted.Percentages))
	}
	for i, want := range []float64{10, 30, 50} {
		if fitted.Percentages[i].ID != i {
			t.Errorf("percentages[%d].ID: got %d, want %d", i, fitted.Percentages[i].ID, i)
		}
		if math.Abs(fitted.Percentages[i].Percent-want) > 1e-9 {
			t.Errorf("percentages[%d]: got %v, want %v", i, fitted.Percentages[i].Percent, want)
		}
	}

	resp := callToolRaw(t, s, "tlc_fit_percentages", map[string]interface{}{
		"signals":    []signalJSON{{ID: 0, Signal: 100}},
		"references": []percentJSON{{ID: 0, Percent: 10}},
	})
	if resp.Error == nil {
		t.Error("Expected error for a single reference")
	}
}

func TestHandleToolsCall_Analyze(t *testing.T) {
	s := lightServer()
	path := createPlateFile(t)
	out := t.TempDir()
	args := map[string]interface{}{
		"path":       path,
		"quad":       []int{0, 0, 99, 0, 99, 99, 0, 99},
		"output_dir": out,
	}

	var first analyzeResult
	callTool(t, s, "tlc_analyze", args, &first)
	if first.Width != 99 || first.Height != 99 {
		t.Errorf("size: got %dx%d, want 99x99", first.Width, first.Height)
	}
	if first.Detected != nil {
		t.Error("detected should be omitted when the quad is given")
	}
	if first.Calibration != nil || first.Percentages != nil {
		t.Error("calibration should be omitted without references")
	}
	if len(first.Spots) < 2 || len(first.Signals) != len(first.Spots) {
		t.Fatalf("got %d spots and %d signals", len(first.Spots), len(first.Signals))
	}
	fileExists(t, first.RectifiedPath)
	fileExists(t, first.CleanedPath)

	scale := 98.0 / 99.0
	bright, _ := nearestSpot(first.Spots, brightCenter.Scale(scale))
	dim, _ := nearestSpot(first.Spots, dimCenter.Scale(scale))

	args["references"] = []percentJSON{{ID: bright.ID, Percent: 80}, {ID: dim.ID, Percent: 40}}
	var second analyzeResult
	callTool(t, s, "tlc_analyze", args, &second)
	if second.Calibration == nil {
		t.Fatal("expected a calibration model")
	}
	if len(second.Percentages) != len(second.Spots) {
		t.Errorf("percentages: got %d, want one per spot (%d)", len(second.Percentages), len(second.Spots))
	}
}

func TestHandleToolsCall_AnalyzeDetectsPlate(t *testing.T) {
	s := lightServer()
	path := createPlateFile(t)

	var result analyzeResult
	callTool(t, s, "tlc_analyze", map[string]interface{}{
		"path":       path,
		"output_dir": t.TempDir(),
	}, &result)

	if result.Detected == nil || *result.Detected {
		t.Errorf("detected: got %v, want false", result.Detected)
	}
	want := []int{10, 10, 90, 10, 90, 90, 10, 90}
	for i := range want {
		if i >= len(result.Quad) || result.Quad[i] != want[i] {
			t.Fatalf("quad: got %v, want %v", result.Quad, want)
		}
	}
}

func TestOutputDir(t *testing.T) {
	s := New(nil, nil)

	if dir, err := s.outputDir("/explicit"); err != nil || dir != "/explicit" {
		t.Errorf("explicit: got %q, %v", dir, err)
	}

	first, err := s.outputDir("")
	if err != nil {
		t.Fatalf("outputDir failed: %v", err)
	}
	defer s.Close()
	second, _ := s.outputDir("")
	if first != second {
		t.Errorf("temporary directory should be reused: %s then %s", first, second)
	}

	cfg := config.Default()
	cfg.Diagnostics.Dir = t.TempDir()
	configured := New(cfg, nil)
	if dir, _ := configured.outputDir(""); dir != cfg.Diagnostics.Dir {
		t.Errorf("configured: got %q, want %q", dir, cfg.Diagnostics.Dir)
	}
}

func TestHandleToolsCall_StageFilesAreNotReused(t *testing.T) {
	s := New(nil, nil)
	dir := t.TempDir()
	small := writePNG(t, dir, "small.png", image.NewGray(image.Rect(0, 0, 60, 40)))
	large := writePNG(t, dir, "large.png", image.NewGray(image.Rect(0, 0, 89, 69)))
	out := t.TempDir()

	var first, second rectifyResult
	callTool(t, s, "tlc_rectify", map[string]interface{}{
		"path":       small,
		"quad":       []int{0, 0, 59, 0, 59, 39, 0, 39},
		"output_dir": out,
	}, &first)
	callTool(t, s, "tlc_rectify", map[string]interface{}{
		"path":       large,
		"quad":       []int{0, 0, 88, 0, 88, 68, 0, 68},
		"output_dir": out,
	}, &second)

	if first.Path == second.Path {
		t.Fatalf("both calls wrote %s", first.Path)
	}

	// The first result must still describe the first plate, both through
	// the cache and on disk.
	var info imaging.ImageInfo
	callTool(t, s, "image_load", map[string]interface{}{"path": first.Path}, &info)
	if info.Width != first.Width || info.Height != first.Height {
		t.Errorf("cached %s: got %dx%d, want %dx%d", first.Path, info.Width, info.Height, first.Width, first.Height)
	}

	fresh := New(nil, nil)
	callTool(t, fresh, "image_load", map[string]interface{}{"path": first.Path}, &info)
	if info.Width != first.Width || info.Height != first.Height {
		t.Errorf("on disk %s: got %dx%d, want %dx%d", first.Path, info.Width, info.Height, first.Width, first.Height)
	}
}

func TestClose_RemovesTemporaryDirectory(t *testing.T) {
	s := New(nil, nil)
	path := createPlateFile(t)

	var rectified rectifyResult
	callTool(t, s, "tlc_rectify", map[string]interface{}{
		"path": path,
		"quad": []int{0, 0, 99, 0, 99, 99, 0, 99},
	}, &rectified)
	dir := filepath.Dir(rectified.Path)
	fileExists(t, rectified.Path)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temporary directory %s should be removed, stat error: %v", dir, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// A configured directory survives Close.
	cfg := config.Default()
	cfg.Diagnostics.Dir = t.TempDir()
	configured := New(cfg, nil)
	if _, err := configured.outputDir(""); err != nil {
		t.Fatalf("outputDir failed: %v", err)
	}
	if err := configured.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(cfg.Diagnostics.Dir); err != nil {
		t.Errorf("configured directory should survive Close: %v", err)
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(nil, nil)

	_, err := s.executeTool("unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(nil, nil)

	for _, tool := range GetToolDefinitions() {
		if _, err := s.executeTool(tool.Name, json.RawMessage(`{invalid`)); err == nil {
			t.Errorf("%s should fail for invalid JSON", tool.Name)
		}
	}
}
