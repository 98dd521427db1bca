package partition

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/martian17/parquet-generator/internal/buffer"
	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/pkg/types"
)

// DefaultBatchRows is the number of rows converted per write call.
const DefaultBatchRows = 8192

// Flusher appends drained chunks to a session as row groups. Rows are copied
// through a small reusable batch so a flush never holds a second full copy of
// the chunk.
type Flusher struct {
	batch []types.Row
}

// NewFlusher creates a flusher converting batchRows rows per write call.
func NewFlusher(batchRows int) *Flusher {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	return &Flusher{batch: make([]types.Row, batchRows)}
}

// Flush writes the chunk as exactly one row group appended to the session's
// file and increments the session's chunk counter. Earlier row groups are
// never rewritten. Write failures are returned as I/O errors and are not
// retried.
func (f *Flusher) Flush(s *Session, c buffer.Chunk) error {
	if s.state != StateOpen {
		return errors.NewInternalError(fmt.Sprintf("flush into %s session", s.state), nil)
	}
	if len(c.Channels) != len(c.TimeTags) {
		return errors.NewInternalError(fmt.Sprintf("misaligned chunk: %d channels, %d time tags", len(c.Channels), len(c.TimeTags)), nil)
	}

	for start := 0; start < c.Len(); start += len(f.batch) {
		n := min(len(f.batch), c.Len()-start)
		rows := f.batch[:n]
		for i := range rows {
			rows[i] = c.Row(start + i)
			s.stats.Update(rows[i])
		}
		if _, err := s.writer.Write(rows); err != nil {
			return errors.NewIOError(errors.CodeWriteFailed, "failed to append rows", s.path, err)
		}
	}

	if err := s.writer.Flush(); err != nil {
		return errors.NewIOError(errors.CodeWriteFailed, "failed to flush row group", s.path, err)
	}
	s.chunks++
	return nil
}

// WriterOptions builds the Parquet writer options shared by every file of a
// run for the named compression codec.
func WriterOptions(compression, createdBy string) ([]parquet.WriterOption, error) {
	opts := []parquet.WriterOption{
		parquet.CreatedBy(createdBy, "", ""),
	}
	switch compression {
	case "", "snappy":
		opts = append(opts, parquet.Compression(&parquet.Snappy))
	case "none":
		opts = append(opts, parquet.Compression(&parquet.Uncompressed))
	case "gzip":
		opts = append(opts, parquet.Compression(&parquet.Gzip))
	case "zstd":
		opts = append(opts, parquet.Compression(&parquet.Zstd))
	case "lz4":
		opts = append(opts, parquet.Compression(&parquet.Lz4Raw))
	default:
		return nil, errors.NewConfigError(errors.CodeInvalidConfig, fmt.Sprintf("unsupported compression %q", compression))
	}
	return opts, nil
}
