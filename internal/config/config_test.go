package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tlc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.Plate.DownscaleTarget)
	assert.Equal(t, 16, cfg.Background.Stride)
	assert.Equal(t, 0.15, cfg.Integration.Cutoff)
	assert.Empty(t, cfg.Diagnostics.Dir)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
background:
  stride: 4
  polarity: dark
integration:
  cutoff: 0.3
diagnostics:
  dir: /tmp/tlc-diag
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Background.Stride)
	assert.Equal(t, "dark", cfg.Background.Polarity)
	assert.Equal(t, 0.3, cfg.Integration.Cutoff)
	assert.Equal(t, "/tmp/tlc-diag", cfg.Diagnostics.Dir)

	// Untouched sections keep their defaults
	assert.Equal(t, Default().Plate, cfg.Plate)
	assert.Equal(t, Default().Blobs, cfg.Blobs)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{"malformed yaml", "plate: [", false},
		{"zero stride", "background:\n  stride: 0\n", true},
		{"cutoff above one", "integration:\n  cutoff: 1.5\n", true},
		{"unknown polarity", "background:\n  polarity: sideways\n", true},
		{"inverted canny", "plate:\n  canny_low: 120\n  canny_high: 60\n", true},
		{"inverted sizes", "blobs:\n  min_size_fraction: 0.5\n  max_size_fraction: 0.1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalid), "errors.Is(err, ErrInvalid) for %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	t.Setenv(EnvPath, writeConfig(t, "plate:\n  vote_threshold: 25\n"))
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Plate.VoteThreshold)
}
