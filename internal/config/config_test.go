package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AnyUserName/boundimg/internal/profile"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("port: %d", cfg.Server.Port)
	}
	if cfg.Decode.CompressionRatio <= 0 {
		t.Errorf("compression ratio: %v", cfg.Decode.CompressionRatio)
	}
	if cfg.Budget.Effective() <= 0 {
		t.Errorf("memory class: %+v", cfg.Budget)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("BOUNDIMG_PORT", "9191")
	t.Setenv("BOUNDIMG_COMPRESSION_RATIO", "6.5")
	t.Setenv("BOUNDIMG_HEAP_LIMIT_MB", "64")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port: %d", cfg.Server.Port)
	}
	if cfg.Decode.CompressionRatio != 6.5 {
		t.Errorf("ratio: %v", cfg.Decode.CompressionRatio)
	}
	if cfg.HeapLimitBytes() != 64<<20 {
		t.Errorf("heap limit: %d", cfg.HeapLimitBytes())
	}
	if cfg.ServerAddress() != "0.0.0.0:9191" {
		t.Errorf("address: %s", cfg.ServerAddress())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundimg.yaml")
	raw := `
server:
  port: 7000
  read_timeout: 5s
decode:
  compression_ratio: 12
memory_class:
  standard: 128
  large: 512
  large_heap: true
profiles:
  - name: yaml-thumb
    source: fixed
    limit: 50000
    formats: [png]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server: %+v", cfg.Server)
	}
	// Unset keys keep their defaults.
	if cfg.Server.DefaultFormat != "jpeg" {
		t.Errorf("default format: %q", cfg.Server.DefaultFormat)
	}
	if cfg.Decode.CompressionRatio != 12 {
		t.Errorf("ratio: %v", cfg.Decode.CompressionRatio)
	}
	if cfg.Budget.Effective() != 512 {
		t.Errorf("memory class: %+v", cfg.Budget)
	}
	if p, err := profile.Get("yaml-thumb"); err != nil || p.Limit != 50000 || p.Formats[0] != "png" {
		t.Errorf("registered profile: %+v, %v", p, err)
	}
}

func TestLoad_HugeMaxSampleSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundimg.yaml")
	raw := "decode:\n  max_sample_size: 9223372036854775807\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected max_sample_size above the limit to be rejected")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"upload", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
		{"ratio", func(c *Config) { c.Decode.CompressionRatio = 0 }},
		{"sample", func(c *Config) { c.Decode.MaxSampleSize = 0 }},
		{"sample too large", func(c *Config) { c.Decode.MaxSampleSize = 1<<30 + 1 }},
		{"pixels", func(c *Config) { c.Decode.MaxPixels = -1 }},
		{"heap", func(c *Config) { c.Decode.HeapLimitMB = -1 }},
		{"class", func(c *Config) { c.Budget.Standard = 0; c.Budget.LargeHeap = false }},
		{"profile name", func(c *Config) { c.Profiles = []profile.Profile{{}} }},
		{"profile source", func(c *Config) { c.Profiles = []profile.Profile{{Name: "x", Source: "dynamic"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
