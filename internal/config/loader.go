package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/immersivescaler/internal/domain/scaling"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "IMSCALER_"
	// EnvConfig names the optional YAML config file.
	EnvConfig = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if IMSCALER_CONFIG is set
//  3. env (prefix IMSCALER_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfig))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// IMSCALER_SCALING__TARGET_HEIGHT -> scaling.target_height
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg, err := New(ctx).Clone()
	if err != nil {
		return nil, err
	}
	conf := koanf.UnmarshalConf{Tag: "koanf"}
	if err := k.UnmarshalWithConf("", cfg, conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]scaling.Parameters)
	}
	for _, name := range k.MapKeys("profiles") {
		p := cfg.Scaling
		if err := k.UnmarshalWithConf("profiles."+name, &p, conf); err != nil {
			return nil, fmt.Errorf("%w: profile %s: %w", ErrInvalidConfig, name, err)
		}
		cfg.Profiles[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
