package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence, low to high:
//  1. Default()
//  2. YAML file named by BEYTRACKER_CONFIG, if set
//  3. environment variables with the BEYTRACKER_ prefix
//
// Env keys map to koanf tags: BEYTRACKER_HIT_DISTANCE -> hit_distance.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("BEYTRACKER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("BEYTRACKER_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "beytracker_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if c.CropX2 <= c.CropX1 || c.CropY2 <= c.CropY1 {
		return errors.New("crop region is empty")
	}
	if c.MinArea >= c.MaxArea {
		return errors.New("min_area must be below max_area")
	}
	if c.MinCalibrationSamples < 2 {
		return errors.New("min_calibration_samples must be at least 2")
	}
	if c.UDPAddr == "" || c.TCPAddr == "" {
		return errors.New("udp_addr and tcp_addr must not be empty")
	}
	return nil
}
