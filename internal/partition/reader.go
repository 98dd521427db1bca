package partition

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"

	"github.com/martian17/parquet-generator/pkg/types"
)

// FileSummary describes a produced file as read back from its footer.
type FileSummary struct {
	Path         string            `json:"path"`
	Columns      []string          `json:"columns"`
	NumRows      int64             `json:"num_rows"`
	RowGroupRows []int64           `json:"row_group_rows"`
	Metadata     map[string]string `json:"metadata"`
}

// Sequence returns the sequence number stamped in the footer, or 0.
func (s *FileSummary) Sequence() int {
	n, _ := strconv.Atoi(s.Metadata[MetaSequence])
	return n
}

var footerKeys = []string{
	MetaRunID, MetaLabel, MetaRunTimestamp, MetaSequence, MetaRows,
	MetaRowGroups, MetaMinTimeTag, MetaMaxTimeTag, MetaFingerprint,
}

// openFooter opens path and parses its footer. The caller closes the
// returned handle.
func openFooter(fsys afero.Fs, path string) (afero.File, *parquet.File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("partition: failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("partition: failed to stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("partition: failed to read footer of %s: %w", path, err)
	}
	return f, pf, nil
}

// Inspect opens a produced file and reads its footer.
func Inspect(fsys afero.Fs, path string) (*FileSummary, error) {
	f, pf, err := openFooter(fsys, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return summarize(path, pf), nil
}

func summarize(path string, pf *parquet.File) *FileSummary {
	summary := &FileSummary{
		Path:     path,
		NumRows:  pf.NumRows(),
		Metadata: make(map[string]string),
	}
	for _, field := range pf.Schema().Fields() {
		summary.Columns = append(summary.Columns, field.Name())
	}
	for _, rg := range pf.RowGroups() {
		summary.RowGroupRows = append(summary.RowGroupRows, rg.NumRows())
	}
	for _, key := range footerKeys {
		if v, ok := pf.Lookup(key); ok {
			summary.Metadata[key] = v
		}
	}
	return summary
}

// ReadEvents reads every row of a produced file in file order.
func ReadEvents(fsys afero.Fs, path string) ([]types.Event, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[types.Row](f, fileSchema)
	defer reader.Close()

	events := make([]types.Event, 0, reader.NumRows())
	rows := make([]types.Row, DefaultBatchRows)
	for {
		n, err := reader.Read(rows)
		for _, r := range rows[:n] {
			events = append(events, r.Event())
		}
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("partition: failed to read rows of %s: %w", path, err)
		}
	}
}

// Verify checks the column types of a file, then recomputes its content
// fingerprint and compares it to the one stamped in its footer.
func Verify(fsys afero.Fs, path string) error {
	f, pf, err := openFooter(fsys, path)
	if err != nil {
		return err
	}
	schemaErr := CheckSchema(pf.Schema(), types.TimeTagSchema())
	summary := summarize(path, pf)
	f.Close()
	if schemaErr != nil {
		return fmt.Errorf("%w in %s", schemaErr, path)
	}

	events, err := ReadEvents(fsys, path)
	if err != nil {
		return err
	}

	tracker := NewStatsTracker()
	for _, e := range events {
		tracker.Update(types.RowOf(e))
	}
	if want := summary.Metadata[MetaFingerprint]; tracker.Fingerprint() != want {
		return fmt.Errorf("partition: fingerprint mismatch for %s: footer %s, content %s", path, want, tracker.Fingerprint())
	}
	if want := summary.Metadata[MetaRows]; strconv.FormatInt(tracker.RowCount(), 10) != want {
		return fmt.Errorf("partition: row count mismatch for %s: footer %s, content %d", path, want, tracker.RowCount())
	}
	return nil
}
