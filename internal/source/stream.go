package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/martian17/parquet-generator/pkg/types"
)

// StreamMagic starts every encoded event stream.
var StreamMagic = [4]byte{'T', 'T', 'S', '1'}

// RecordSize is the encoded size of one event: channel (2 bytes) followed by
// the time tag (8 bytes), both little endian.
const RecordSize = 10

// StreamWriter encodes events into a snappy-framed binary stream.
type StreamWriter struct {
	w       *snappy.Writer
	scratch [RecordSize]byte
	header  bool
	count   int64
}

// NewStreamWriter creates a stream encoder on w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: snappy.NewBufferedWriter(w)}
}

// Write encodes one event.
func (s *StreamWriter) Write(e types.Event) error {
	if !s.header {
		if _, err := s.w.Write(StreamMagic[:]); err != nil {
			return fmt.Errorf("stream: failed to write header: %w", err)
		}
		s.header = true
	}
	binary.LittleEndian.PutUint16(s.scratch[0:2], e.ChannelID)
	binary.LittleEndian.PutUint64(s.scratch[2:10], e.TimeTagPS)
	if _, err := s.w.Write(s.scratch[:]); err != nil {
		return fmt.Errorf("stream: failed to write record: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of events written.
func (s *StreamWriter) Count() int64 {
	return s.count
}

// Close flushes buffered frames. It does not close the underlying writer.
func (s *StreamWriter) Close() error {
	if !s.header {
		if _, err := s.w.Write(StreamMagic[:]); err != nil {
			return fmt.Errorf("stream: failed to write header: %w", err)
		}
		s.header = true
	}
	return s.w.Close()
}

// StreamReader decodes a stream written by StreamWriter. It implements Source.
type StreamReader struct {
	r       *bufio.Reader
	scratch [RecordSize]byte
	header  bool
}

// NewStreamReader creates a stream decoder on r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReader(snappy.NewReader(r))}
}

// Next decodes the next event.
func (s *StreamReader) Next(ctx context.Context) (types.Event, error) {
	if !s.header {
		var magic [4]byte
		if _, err := io.ReadFull(s.r, magic[:]); err != nil || magic != StreamMagic {
			return types.Event{}, types.ErrBadStreamHeader
		}
		s.header = true
	}

	if _, err := io.ReadFull(s.r, s.scratch[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Event{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return types.Event{}, types.ErrShortRecord
		}
		return types.Event{}, fmt.Errorf("stream: failed to read record: %w", err)
	}
	return types.Event{
		ChannelID: binary.LittleEndian.Uint16(s.scratch[0:2]),
		TimeTagPS: binary.LittleEndian.Uint64(s.scratch[2:10]),
	}, nil
}
