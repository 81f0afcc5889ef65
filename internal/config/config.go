// Package config loads the tuning parameters of the plate pipeline from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/tlc-eval-mcp/internal/background"
	"github.com/ironsheep/tlc-eval-mcp/internal/blobs"
	"github.com/ironsheep/tlc-eval-mcp/internal/plate"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "TLC_MCP_CONFIG"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// ─── Stage configs ──────────────────────────────────────────────────────

type PlateConfig struct {
	DownscaleTarget   int     `yaml:"downscale_target"`
	VoteThreshold     int     `yaml:"vote_threshold"`
	SuppressionRadius int     `yaml:"suppression_radius"`
	AngleTolerance    float64 `yaml:"angle_tolerance"`
	CannyLow          float64 `yaml:"canny_low"`
	CannyHigh         float64 `yaml:"canny_high"`
	InsetFraction     float64 `yaml:"inset_fraction"`
}

type BackgroundConfig struct {
	Stride   int    `yaml:"stride"`
	Polarity string `yaml:"polarity"` // "auto", "dark" or "light"
}

type BlobsConfig struct {
	OpeningFraction float64 `yaml:"opening_fraction"`
	AspectTolerance float64 `yaml:"aspect_tolerance"`
	MinSizeFraction float64 `yaml:"min_size_fraction"`
	MaxSizeFraction float64 `yaml:"max_size_fraction"`
}

type IntegrationConfig struct {
	Cutoff float64 `yaml:"cutoff"`
}

type DiagnosticsConfig struct {
	Dir string `yaml:"dir"`
}

// Config is the top-level structure of the tuning file. Keys missing from the
// file keep their Default values.
type Config struct {
	Plate       PlateConfig       `yaml:"plate"`
	Background  BackgroundConfig  `yaml:"background"`
	Blobs       BlobsConfig       `yaml:"blobs"`
	Integration IntegrationConfig `yaml:"integration"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// Default returns the values the pipeline was tuned with. The stage packages
// own them; the file only overrides.
func Default() *Config {
	po := plate.DefaultOptions()
	bo := blobs.DefaultDetectOptions()
	return &Config{
		Plate: PlateConfig{
			DownscaleTarget:   po.DownscaleTarget,
			VoteThreshold:     po.VoteThreshold,
			SuppressionRadius: po.SuppressionRadius,
			AngleTolerance:    po.AngleTolerance,
			CannyLow:          po.CannyLow,
			CannyHigh:         po.CannyHigh,
			InsetFraction:     po.InsetFraction,
		},
		Background: BackgroundConfig{
			Stride:   background.DefaultStride,
			Polarity: "auto",
		},
		Blobs: BlobsConfig{
			OpeningFraction: bo.OpeningFraction,
			AspectTolerance: bo.AspectTolerance,
			MinSizeFraction: bo.MinSizeFraction,
			MaxSizeFraction: bo.MaxSizeFraction,
		},
		Integration: IntegrationConfig{
			Cutoff: blobs.DefaultCutoff,
		},
	}
}

// ─── Loaders ────────────────────────────────────────────────────────────

// Load reads and parses a tuning file over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse tuning config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by TLC_MCP_CONFIG, or returns the defaults
// when the variable is unset.
func FromEnv() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks ranges that would otherwise surface as confusing stage
// errors.
func (c *Config) Validate() error {
	switch {
	case c.Plate.DownscaleTarget < 1:
		return fmt.Errorf("%w: plate.downscale_target must be positive", ErrInvalid)
	case c.Plate.VoteThreshold < 1:
		return fmt.Errorf("%w: plate.vote_threshold must be positive", ErrInvalid)
	case c.Plate.SuppressionRadius < 0:
		return fmt.Errorf("%w: plate.suppression_radius must not be negative", ErrInvalid)
	case c.Plate.AngleTolerance < 0 || c.Plate.AngleTolerance >= 45:
		return fmt.Errorf("%w: plate.angle_tolerance must be in [0, 45)", ErrInvalid)
	case c.Plate.CannyLow < 0 || c.Plate.CannyHigh < c.Plate.CannyLow:
		return fmt.Errorf("%w: plate.canny_low/high must satisfy 0 <= low <= high", ErrInvalid)
	case c.Plate.InsetFraction < 0 || c.Plate.InsetFraction >= 0.5:
		return fmt.Errorf("%w: plate.inset_fraction must be in [0, 0.5)", ErrInvalid)
	case c.Background.Stride < 1:
		return fmt.Errorf("%w: background.stride must be positive", ErrInvalid)
	case c.Blobs.OpeningFraction < 0:
		return fmt.Errorf("%w: blobs.opening_fraction must not be negative", ErrInvalid)
	case c.Blobs.AspectTolerance < 0:
		return fmt.Errorf("%w: blobs.aspect_tolerance must not be negative", ErrInvalid)
	case c.Blobs.MinSizeFraction < 0 || c.Blobs.MaxSizeFraction < c.Blobs.MinSizeFraction:
		return fmt.Errorf("%w: blobs.min/max_size_fraction must satisfy 0 <= min <= max", ErrInvalid)
	case c.Integration.Cutoff < 0 || c.Integration.Cutoff > 1:
		return fmt.Errorf("%w: integration.cutoff must be in [0, 1]", ErrInvalid)
	}

	switch c.Background.Polarity {
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("%w: background.polarity %q is not auto, dark or light", ErrInvalid, c.Background.Polarity)
	}
	return nil
}
