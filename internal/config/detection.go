package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/peakline/internal/peaks"
)

// DetectionConfig is the JSON form of the detection parameters. All fields
// are optional; the Get* accessors fall back to the built-in defaults, so
// partial config files are safe. The schema matches the /api/params endpoint
// so the same JSON serves startup configuration and request overrides.
type DetectionConfig struct {
	Sampling      *float64 `json:"sampling,omitempty"`
	Smoothing     *int     `json:"smoothing,omitempty"`
	MaxMigration  *float64 `json:"max_migration,omitempty"`
	MinChannels   *int     `json:"min_channels,omitempty"`
	MinAmplitude  *float64 `json:"min_amplitude,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MinWidth      *float64 `json:"min_width,omitempty"`
	NGroups       *int     `json:"n_groups,omitempty"`
	MaxSeparation *float64 `json:"max_separation,omitempty"`
	FlipSign      *bool    `json:"flip_sign,omitempty"`

	// MaxPartGap splits a line into parts where consecutive stations are
	// further apart than this; 0 disables splitting.
	MaxPartGap *float64 `json:"max_part_gap,omitempty"`
}

// EmptyDetectionConfig returns a DetectionConfig with all fields unset.
func EmptyDetectionConfig() *DetectionConfig {
	return &DetectionConfig{}
}

// LoadDetectionConfig loads a DetectionConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadDetectionConfig(path string) (*DetectionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDetectionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Params().Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Merge overlays set fields of other on top of c and returns the result.
// Used for per-request parameter overrides.
func (c *DetectionConfig) Merge(other *DetectionConfig) *DetectionConfig {
	out := *c
	if other == nil {
		return &out
	}
	if other.Sampling != nil {
		out.Sampling = other.Sampling
	}
	if other.Smoothing != nil {
		out.Smoothing = other.Smoothing
	}
	if other.MaxMigration != nil {
		out.MaxMigration = other.MaxMigration
	}
	if other.MinChannels != nil {
		out.MinChannels = other.MinChannels
	}
	if other.MinAmplitude != nil {
		out.MinAmplitude = other.MinAmplitude
	}
	if other.MinValue != nil {
		out.MinValue = other.MinValue
	}
	if other.MinWidth != nil {
		out.MinWidth = other.MinWidth
	}
	if other.NGroups != nil {
		out.NGroups = other.NGroups
	}
	if other.MaxSeparation != nil {
		out.MaxSeparation = other.MaxSeparation
	}
	if other.FlipSign != nil {
		out.FlipSign = other.FlipSign
	}
	if other.MaxPartGap != nil {
		out.MaxPartGap = other.MaxPartGap
	}
	return &out
}

// GetMaxPartGap returns the max_part_gap value or the default.
func (c *DetectionConfig) GetMaxPartGap() float64 {
	if c.MaxPartGap == nil {
		return 0 // default: lines are not split
	}
	return *c.MaxPartGap
}

// Params resolves the config to a concrete parameter set, applying defaults
// for unset fields. The result still requires Validate before use.
func (c *DetectionConfig) Params() peaks.Params {
	p := peaks.DefaultParams()
	if c.Sampling != nil {
		p.Sampling = *c.Sampling
	}
	if c.Smoothing != nil {
		p.Smoothing = *c.Smoothing
	}
	if c.MaxMigration != nil {
		p.MaxMigration = *c.MaxMigration
	}
	if c.MinChannels != nil {
		p.MinChannels = *c.MinChannels
	}
	if c.MinAmplitude != nil {
		p.MinAmplitude = *c.MinAmplitude
	}
	if c.MinValue != nil {
		p.MinValue = *c.MinValue
	}
	if c.MinWidth != nil {
		p.MinWidth = *c.MinWidth
	}
	if c.NGroups != nil {
		p.NGroups = *c.NGroups
	}
	if c.MaxSeparation != nil {
		p.MaxSeparation = *c.MaxSeparation
	}
	if c.FlipSign != nil {
		p.FlipSign = *c.FlipSign
	}
	return p
}
