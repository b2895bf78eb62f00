// Package config defines the scaler's configuration and how it is loaded.
//
// Conventions:
// - New(ctx) returns a Config holding every default.
// - Load layers a YAML file and the environment over those defaults.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/okian/immersivescaler/internal/app"
	"github.com/okian/immersivescaler/internal/domain/scaling"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// AvatarDir is where avatar documents are read from and written to.
	AvatarDir string `koanf:"avatar_dir"`

	// MetricsFile, when set, receives the metrics in text exposition format
	// after every command.
	MetricsFile string `koanf:"metrics_file"`

	// Workers is the number of concurrent jobs for batch commands; zero
	// uses one per CPU.
	Workers int `koanf:"workers"`

	// BoneTable optionally replaces the embedded bone name table.
	BoneTable string `koanf:"bone_table"`

	// Scaling is the profile used when no named profile is selected.
	Scaling scaling.Parameters `koanf:"scaling"`

	// PostProcess selects the pose fixes run after a scale.
	PostProcess app.PostProcess `koanf:"post_process"`

	// Profiles are named overlays on Scaling. Keys a profile leaves out keep
	// the value from Scaling.
	Profiles map[string]scaling.Parameters `koanf:"-"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		AvatarDir:   ".",
		Scaling:     scaling.DefaultParameters(),
		PostProcess: app.DefaultPostProcess(),
		Profiles:    map[string]scaling.Parameters{},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() (*Config, error) {
	var out Config
	if err := deepcopy.Copy(&out, c); err != nil {
		return nil, fmt.Errorf("%w: copy: %w", ErrLoadConfig, err)
	}
	return &out, nil
}

// Profile returns the named scaling profile; the empty name is Scaling.
func (c *Config) Profile(name string) (scaling.Parameters, error) {
	if name == "" {
		return c.Scaling, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return scaling.Parameters{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.AvatarDir == "" {
		return fmt.Errorf("%w: avatar_dir must not be empty", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers=%d must not be negative", ErrInvalidConfig, c.Workers)
	}
	if err := c.Scaling.Validate(); err != nil {
		return fmt.Errorf("%w: scaling: %w", ErrInvalidConfig, err)
	}
	for name, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: profile %s: %w", ErrInvalidConfig, name, err)
		}
	}
	if err := c.PostProcess.Validate(); err != nil {
		return fmt.Errorf("%w: post_process: %w", ErrInvalidConfig, err)
	}
	return nil
}
