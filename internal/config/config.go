// Package config provides the configuration of the parquet-generator tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/martian17/parquet-generator/internal/simulate"
	"github.com/martian17/parquet-generator/internal/writer"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "PQGEN_"

// Config holds the configuration of a command run.
type Config struct {
	// Writer configuration
	Writer WriterConfig `json:"writer" yaml:"writer"`

	// Simulation configuration, used by the generate command
	Simulation simulate.Config `json:"simulation" yaml:"simulation"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Storage configuration for archiving closed files
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Manifest configuration for cataloging closed files
	Manifest ManifestConfig `json:"manifest" yaml:"manifest"`
}

// WriterConfig holds the writer tunables.
type WriterConfig struct {
	// MaxChunkRows is the number of rows buffered before a flush
	MaxChunkRows int `json:"max_chunk_rows" yaml:"max_chunk_rows" validate:"gt=0"`

	// MaxFileRows is the target number of rows per file
	MaxFileRows int `json:"max_file_rows" yaml:"max_file_rows" validate:"gt=0"`

	// OutputDir must be an existing directory
	OutputDir string `json:"output_dir" yaml:"output_dir" validate:"required"`

	// Label is embedded in every file name
	Label string `json:"label" yaml:"label" validate:"required,excludesall=/\\"`

	// Compression is the column chunk codec
	Compression string `json:"compression" yaml:"compression" validate:"oneof=none snappy gzip zstd lz4"`

	// StrictRotation rotates when the chunk count reaches the budget instead of exceeding it
	StrictRotation bool `json:"strict_rotation" yaml:"strict_rotation"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// JSON switches to structured JSON output
	JSON bool `json:"json" yaml:"json"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090"
	Addr string `json:"addr" yaml:"addr"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type" validate:"oneof=none local s3"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path" validate:"required_if=Type local"`

	// Prefix is prepended to every object path
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// ManifestConfig holds manifest configuration.
type ManifestConfig struct {
	// Path of the SQLite catalog; empty disables the catalog
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Writer: WriterConfig{
			MaxChunkRows: writer.DefaultMaxChunkRows,
			MaxFileRows:  writer.DefaultMaxFileRows,
			OutputDir:    ".",
			Label:        "simulation-1",
			Compression:  writer.DefaultCompression,
		},
		Simulation: simulate.DefaultConfig(),
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Type: "none",
		},
	}
}

// WriterConfig converts the file configuration to the writer's.
func (c *Config) WriterConfig() writer.Config {
	return writer.Config{
		MaxChunkRows:   c.Writer.MaxChunkRows,
		MaxFileRows:    c.Writer.MaxFileRows,
		OutputDir:      c.Writer.OutputDir,
		Label:          c.Writer.Label,
		Compression:    c.Writer.Compression,
		StrictRotation: c.Writer.StrictRotation,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	return c.WriterConfig().Validate()
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides.
func LoadFromEnv(cfg *Config) error {
	ints := map[string]*int{
		"MAX_CHUNK_ROWS": &cfg.Writer.MaxChunkRows,
		"MAX_FILE_ROWS":  &cfg.Writer.MaxFileRows,
	}
	for name, dst := range ints {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(strings.ReplaceAll(v, "_", ""))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	strs := map[string]*string{
		"OUTPUT_DIR":     &cfg.Writer.OutputDir,
		"LABEL":          &cfg.Writer.Label,
		"COMPRESSION":    &cfg.Writer.Compression,
		"LOG_LEVEL":      &cfg.Log.Level,
		"METRICS_ADDR":   &cfg.Metrics.Addr,
		"STORAGE_TYPE":   &cfg.Storage.Type,
		"STORAGE_PATH":   &cfg.Storage.Path,
		"STORAGE_PREFIX": &cfg.Storage.Prefix,
		"S3_BUCKET":      &cfg.Storage.S3.Bucket,
		"S3_REGION":      &cfg.Storage.S3.Region,
		"S3_ENDPOINT":    &cfg.Storage.S3.Endpoint,
		"MANIFEST_PATH":  &cfg.Manifest.Path,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"STRICT_ROTATION":   &cfg.Writer.StrictRotation,
		"LOG_JSON":          &cfg.Log.JSON,
		"S3_USE_PATH_STYLE": &cfg.Storage.S3.UsePathStyle,
	}
	for name, dst := range bools {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	return nil
}

// Load reads path when given, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
