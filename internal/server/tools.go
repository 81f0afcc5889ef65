package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

var (
	rotationProperty = map[string]interface{}{
		"type":        "integer",
		"enum":        []int{0, 90, 180, 270},
		"description": "Clockwise rotation applied to the photograph before use. Default 0",
		"default":     0,
	}
	quadProperty = map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"minItems":    8,
		"maxItems":    8,
		"description": "Plate corners as eight integers x1,y1,...,x4,y4 in any corner order",
	}
	outputDirProperty = map[string]interface{}{
		"type":        "string",
		"description": "Directory receiving the stage images. Defaults to the configured diagnostics directory, else a temporary directory removed when the server exits",
	}
	previewProperty = map[string]interface{}{
		"type":        "boolean",
		"description": "Include an annotated base64 PNG preview in the result",
		"default":     false,
	}
	spotsProperty = map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{"type": "integer"},
				"x":  map[string]interface{}{"type": "number"},
				"y":  map[string]interface{}{"type": "number"},
				"r":  map[string]interface{}{"type": "number"},
				"quad": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"minItems":    8,
					"maxItems":    8,
					"description": "Box around the spot as eight integers; replaces x, y and r",
				},
			},
			"required": []string{"id"},
		},
		"description": "Spots as returned by tlc_detect_blobs, or boxes drawn around them",
	}
	referencesProperty = map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":      map[string]interface{}{"type": "integer"},
				"percent": map[string]interface{}{"type": "number"},
			},
			"required": []string{"id", "percent"},
		},
		"description": "Spots of known composition with their percentage",
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and mean luminance.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Plate Stages
		{
			Name:        "tlc_detect_plate",
			Description: "Find the four corners of the TLC plate in a photograph. When no corners are found the result is a rectangle inset 10% from the image edges and 'detected' is false.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty("Absolute path to the photograph"),
					"rotation": rotationProperty,
					"preview":  previewProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_rectify",
			Description: "Warp the plate bounded by the given corners onto an upright rectangle and save it as a new warped-*.png in the output directory.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty("Absolute path to the photograph"),
					"quad":       quadProperty,
					"rotation":   rotationProperty,
					"output_dir": outputDirProperty,
				},
				"required": []string{"path", "quad"},
			},
		},
		{
			Name:        "tlc_remove_background",
			Description: "Fit the illumination of a rectified plate with a degree-4 polynomial and subtract it. Saves new background_fit-*.png and blobs-*.png files; spots are bright in the blobs image whatever their polarity on the plate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the rectified plate"),
					"polarity": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"auto", "dark", "light"},
						"description": "Whether spots are darker or lighter than the plate. Default from configuration",
					},
					"stride": map[string]interface{}{
						"type":        "integer",
						"description": "Pixel sampling stride for the fit. Default from configuration",
					},
					"output_dir": outputDirProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_detect_blobs",
			Description: "Find the spots on a background-free plate image. Returns id, centre and radius per spot.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty("Absolute path to the background-free plate (a blobs-*.png from tlc_remove_background)"),
					"preview": previewProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_integrate_blobs",
			Description: "Sum the brightest fraction of each spot's pixels after a rescaling shared by all spots.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty("Absolute path to the background-free plate (a blobs-*.png from tlc_remove_background)"),
					"spots": spotsProperty,
					"cutoff": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of each spot's pixels to sum, in [0, 1]. Default from configuration (0.15)",
					},
				},
				"required": []string{"path", "spots"},
			},
		},
		{
			Name:        "tlc_fit_percentages",
			Description: "Fit a line through the reference spots' signals and percentages and predict the percentage of every spot.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"signals": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":     map[string]interface{}{"type": "integer"},
								"signal": map[string]interface{}{"type": "number"},
							},
							"required": []string{"id", "signal"},
						},
						"description": "Signals as returned by tlc_integrate_blobs",
					},
					"references": referencesProperty,
				},
				"required": []string{"signals", "references"},
			},
		},

		// Full Evaluation
		{
			Name:        "tlc_analyze",
			Description: "Run the whole evaluation on a photograph: plate detection (unless corners are given), rectification, background removal, spot detection, integration and, when references are given, calibration.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty("Absolute path to the photograph"),
					"quad":       quadProperty,
					"rotation":   rotationProperty,
					"references": referencesProperty,
					"output_dir": outputDirProperty,
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
