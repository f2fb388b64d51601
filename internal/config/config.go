// Package config holds the service configuration, loaded from YAML
// over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spotforge/spotforge/internal/layout"
)

// Tuning are the layout engine knobs exposed in the config file. They
// mirror layout.Options; see there for semantics.
type Tuning struct {
	MarginFrac  float64 `yaml:"margin_frac"`
	MinScale    float64 `yaml:"min_scale"`
	MaxScale    float64 `yaml:"max_scale"`
	MaxAttempts int     `yaml:"max_attempts"`
	MaxRotation float64 `yaml:"max_rotation"`
	JitterFrac  float64 `yaml:"jitter_frac"`
}

type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	DataDir         string `yaml:"data_dir"`
	DefaultIconsDir string `yaml:"default_icons_dir"`
	CanvasSize      int    `yaml:"canvas_size"` // card render size in pixels (square)
	CardShape       string `yaml:"card_shape"`  // circle or square
	Strategy        string `yaml:"strategy"`    // default layout strategy
	Layout          Tuning `yaml:"layout"`
}

// Default returns the built-in configuration.
func Default() Config {
	opt := layout.DefaultOptions()
	return Config{
		ListenAddr:      ":8080",
		DataDir:         "data",
		DefaultIconsDir: "static/default_icons",
		CanvasSize:      800,
		CardShape:       "circle",
		Strategy:        string(layout.StrategyCircle),
		Layout: Tuning{
			MarginFrac:  opt.MarginFrac,
			MinScale:    opt.MinScale,
			MaxScale:    opt.MaxScale,
			MaxAttempts: opt.MaxAttempts,
			MaxRotation: opt.MaxRotation,
			JitterFrac:  opt.JitterFrac,
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// IconsDir is where user-uploaded icon sets live.
func (c Config) IconsDir() string { return filepath.Join(c.DataDir, "icons") }

// ExportsDir is where job records and generated files live.
func (c Config) ExportsDir() string { return filepath.Join(c.DataDir, "exports") }

// LayoutOptions converts the tuning block into engine options for the
// given strategy name (empty means the configured default).
func (c Config) LayoutOptions(strategy string) (layout.Options, error) {
	if strategy == "" {
		strategy = c.Strategy
	}
	st, err := layout.ParseStrategy(strategy)
	if err != nil {
		return layout.Options{}, err
	}
	opt := layout.DefaultOptions()
	opt.Strategy = st
	if c.Layout.MarginFrac > 0 {
		opt.MarginFrac = c.Layout.MarginFrac
	}
	if c.Layout.MinScale > 0 {
		opt.MinScale = c.Layout.MinScale
	}
	if c.Layout.MaxScale > 0 {
		opt.MaxScale = c.Layout.MaxScale
	}
	if c.Layout.MaxAttempts > 0 {
		opt.MaxAttempts = c.Layout.MaxAttempts
	}
	if c.Layout.MaxRotation >= 0 {
		opt.MaxRotation = c.Layout.MaxRotation
	}
	if c.Layout.JitterFrac >= 0 {
		opt.JitterFrac = c.Layout.JitterFrac
	}
	return opt, nil
}
