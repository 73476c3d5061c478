// Package config loads boundimg settings from the environment and an
// optional YAML file. File values override environment defaults;
// command-line flags override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AnyUserName/boundimg/internal/budget"
	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/profile"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig       `yaml:"server"`
	Decode   DecodeConfig       `yaml:"decode"`
	Budget   budget.MemoryClass `yaml:"memory_class"`
	Profiles []profile.Profile  `yaml:"profiles"`
}

// ServerConfig configures the HTTP decode service.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxUploadBytes bounds the encoded image accepted per request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// DefaultFormat is used when a request names no output format.
	DefaultFormat string `yaml:"default_format"`
	Quality       int    `yaml:"quality"`
}

// DecodeConfig tunes the decode loop.
type DecodeConfig struct {
	CompressionRatio float64 `yaml:"compression_ratio"`
	MaxSampleSize    int     `yaml:"max_sample_size"`
	// HeapLimitMB bounds raster allocations when GOMEMLIMIT is unset.
	// Zero disables the check.
	HeapLimitMB int64 `yaml:"heap_limit_mb"`
	// MaxPixels refuses sources whose header claims a larger resolution.
	// Zero disables the check.
	MaxPixels int64 `yaml:"max_pixels"`
}

// Default returns settings from BOUNDIMG_* environment variables, or
// built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnvOrDefault("BOUNDIMG_HOST", "0.0.0.0"),
			Port:           getEnvAsIntOrDefault("BOUNDIMG_PORT", 8080),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxUploadBytes: int64(getEnvAsIntOrDefault("BOUNDIMG_MAX_UPLOAD_MB", 32)) << 20,
			DefaultFormat:  getEnvOrDefault("BOUNDIMG_FORMAT", "jpeg"),
			Quality:        82,
		},
		Decode: DecodeConfig{
			CompressionRatio: getEnvAsFloatOrDefault("BOUNDIMG_COMPRESSION_RATIO", 10.0),
			MaxSampleSize:    decoder.DefaultMaxSampleSize,
			HeapLimitMB:      int64(getEnvAsIntOrDefault("BOUNDIMG_HEAP_LIMIT_MB", 0)),
			MaxPixels:        decoder.DefaultMaxPixels,
		},
		Budget: budget.Detect(),
	}
}

// Load reads defaults and overlays the YAML file at path, if any.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	for _, p := range cfg.Profiles {
		profile.Register(p)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.Decode.CompressionRatio <= 0 {
		return fmt.Errorf("compression_ratio must be positive: %v", c.Decode.CompressionRatio)
	}
	if c.Decode.MaxSampleSize < 1 || c.Decode.MaxSampleSize > decoder.MaxSampleSizeLimit {
		return fmt.Errorf("max_sample_size must be in [1, %d]: %d",
			decoder.MaxSampleSizeLimit, c.Decode.MaxSampleSize)
	}
	if c.Decode.MaxPixels < 0 {
		return fmt.Errorf("max_pixels must not be negative: %d", c.Decode.MaxPixels)
	}
	if c.Decode.HeapLimitMB < 0 {
		return fmt.Errorf("heap_limit_mb must not be negative: %d", c.Decode.HeapLimitMB)
	}
	if c.Budget.Effective() <= 0 {
		return fmt.Errorf("memory class must be positive")
	}
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profiles[%d]: missing name", i)
		}
		switch p.Source {
		case "", profile.LimitFixed, profile.LimitNone, profile.LimitMemoryClass:
		default:
			return fmt.Errorf("profile %q: unknown limit source %q", p.Name, p.Source)
		}
	}
	return nil
}

// ServerAddress returns the listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HeapLimitBytes converts HeapLimitMB to bytes.
func (c *Config) HeapLimitBytes() int64 {
	return c.Decode.HeapLimitMB << 20
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
