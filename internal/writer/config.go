package writer

import (
	"fmt"

	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/internal/partition"
)

const (
	// DefaultMaxChunkRows is the number of rows buffered before a flush.
	DefaultMaxChunkRows = 20_000_000

	// DefaultMaxFileRows is the target number of rows per file.
	DefaultMaxFileRows = 200_000_000

	// DefaultCompression is the codec used for column chunks.
	DefaultCompression = "snappy"
)

// Config holds the tunables of one writer run.
type Config struct {
	// MaxChunkRows is the number of rows buffered before they are flushed as one row group
	MaxChunkRows int

	// MaxFileRows is the target number of rows per file; the file's chunk
	// budget is MaxFileRows / MaxChunkRows
	MaxFileRows int

	// OutputDir must be an existing directory
	OutputDir string

	// Label is embedded in every file name
	Label string

	// Compression is one of none, snappy, gzip, zstd, lz4
	Compression string

	// StrictRotation rotates once the chunk count reaches the budget instead
	// of when it exceeds it
	StrictRotation bool
}

// DefaultConfig returns the default configuration for outputDir and label.
func DefaultConfig(outputDir, label string) Config {
	return Config{
		MaxChunkRows: DefaultMaxChunkRows,
		MaxFileRows:  DefaultMaxFileRows,
		OutputDir:    outputDir,
		Label:        label,
		Compression:  DefaultCompression,
	}
}

// MaxChunksPerFile returns the derived chunk budget of one file.
func (c Config) MaxChunksPerFile() int {
	return c.MaxFileRows / c.MaxChunkRows
}

// Validate checks the tunables. The output directory itself is checked at
// the start of Write.
func (c Config) Validate() error {
	if c.MaxChunkRows <= 0 {
		return errors.NewConfigError(errors.CodeInvalidConfig, fmt.Sprintf("max chunk rows must be positive, got %d", c.MaxChunkRows))
	}
	if c.MaxFileRows <= 0 {
		return errors.NewConfigError(errors.CodeInvalidConfig, fmt.Sprintf("max file rows must be positive, got %d", c.MaxFileRows))
	}
	if c.OutputDir == "" {
		return errors.NewConfigError(errors.CodeInvalidConfig, "output directory is required")
	}
	if err := partition.ValidateLabel(c.Label); err != nil {
		return errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidConfig, "invalid label", err)
	}
	return nil
}
