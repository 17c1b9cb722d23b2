package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Threshold != 15 {
		t.Errorf("Threshold = %v, want 15", cfg.Threshold)
	}
	if cfg.MinArea != 100 || cfg.MaxArea != 2000 {
		t.Errorf("area bounds = (%d, %d), want (100, 2000)", cfg.MinArea, cfg.MaxArea)
	}
	if cfg.Retention != 10 {
		t.Errorf("Retention = %d, want 10", cfg.Retention)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beytracker.yaml")
	yaml := "threshold: 20\nhit_distance: 25\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BEYTRACKER_CONFIG", path)
	t.Setenv("BEYTRACKER_HIT_DISTANCE", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// File overrides the default.
	if cfg.Threshold != 20 {
		t.Errorf("Threshold = %v, want 20 (from file)", cfg.Threshold)
	}
	// Env overrides the file.
	if cfg.HitDistance != 30 {
		t.Errorf("HitDistance = %v, want 30 (from env)", cfg.HitDistance)
	}
	// Untouched keys keep defaults.
	if cfg.MaxArea != 2000 {
		t.Errorf("MaxArea = %v, want default 2000", cfg.MaxArea)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero fps", key: "BEYTRACKER_FPS", value: "0"},
		{name: "inverted areas", key: "BEYTRACKER_MIN_AREA", value: "5000"},
		{name: "empty udp addr", key: "BEYTRACKER_UDP_ADDR", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BEYTRACKER_CONFIG", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestFrameInterval(t *testing.T) {
	cfg := Default()
	cfg.FPS = 60
	if got := cfg.FrameInterval().Microseconds(); got != 16666 {
		t.Errorf("FrameInterval = %dµs, want 16666µs", got)
	}
}
