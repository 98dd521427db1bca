package partition

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
)

// TimestampLayout is the compact, sortable UTC layout used in file names.
const TimestampLayout = "20060102T150405Z"

// FileExtension is appended to every output file name.
const FileExtension = ".parquet"

// Namer derives deterministic, monotonically numbered file names. The run
// timestamp is captured once at construction and reused for every name, so
// rotation never re-timestamps.
type Namer struct {
	outputDir string
	label     string
	timestamp string
	sequence  int
}

// NewNamer captures the run timestamp from clock.
func NewNamer(clock clockwork.Clock, outputDir, label string) *Namer {
	return &Namer{
		outputDir: outputDir,
		label:     label,
		timestamp: clock.Now().UTC().Format(TimestampLayout),
	}
}

// Timestamp returns the run timestamp shared by all files of this run.
func (n *Namer) Timestamp() string {
	return n.timestamp
}

// Label returns the caller-supplied label.
func (n *Namer) Label() string {
	return n.label
}

// Next advances the sequence and returns it with the matching path.
// Sequences start at 1 and are never reused.
func (n *Namer) Next() (int, string) {
	n.sequence++
	return n.sequence, n.Path(n.sequence)
}

// Path returns the output path for a sequence number.
func (n *Namer) Path(sequence int) string {
	return filepath.Join(n.outputDir, FileName(n.timestamp, n.label, sequence))
}

// FileName formats {timestamp}_{label}_{sequence:04d}.parquet.
func FileName(timestamp, label string, sequence int) string {
	return fmt.Sprintf("%s_%s_%04d%s", timestamp, label, sequence, FileExtension)
}

// ValidateLabel rejects labels that would escape the output directory or
// produce names that cannot be parsed back.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label must not be empty")
	}
	if strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
		return fmt.Errorf("label %q must not contain path separators", label)
	}
	return nil
}
