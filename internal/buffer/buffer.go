// Package buffer accumulates events into column-oriented arrays until a
// chunk is ready to be flushed as one row group.
package buffer

import (
	"fmt"

	"github.com/martian17/parquet-generator/pkg/types"
)

// Chunk is one drained buffer's worth of rows in columnar form.
// Channels and TimeTags always have equal length.
type Chunk struct {
	Channels []uint16
	TimeTags []uint64
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return len(c.Channels)
}

// Row returns the row at position i.
func (c Chunk) Row(i int) types.Row {
	return types.Row{Channel: uint32(c.Channels[i]), TimeTag: c.TimeTags[i]}
}

// RowBuffer holds two parallel column arrays and a row counter. It is owned
// by a single goroutine and is not safe for concurrent use.
type RowBuffer struct {
	maxRows  int
	channels []uint16
	timeTags []uint64
}

// New creates a row buffer that reports full at maxRows rows.
func New(maxRows int) (*RowBuffer, error) {
	if maxRows <= 0 {
		return nil, fmt.Errorf("buffer: max rows must be positive, got %d", maxRows)
	}
	return &RowBuffer{maxRows: maxRows}, nil
}

// Append copies the event's fields into the tail of the column arrays.
func (b *RowBuffer) Append(e types.Event) {
	b.channels = append(b.channels, e.ChannelID)
	b.timeTags = append(b.timeTags, e.TimeTagPS)
}

// Len returns the number of buffered rows.
func (b *RowBuffer) Len() int {
	return len(b.channels)
}

// MaxRows returns the configured row threshold.
func (b *RowBuffer) MaxRows() int {
	return b.maxRows
}

// IsFull reports whether the buffer reached its row threshold.
func (b *RowBuffer) IsFull() bool {
	return len(b.channels) >= b.maxRows
}

// Drain transfers the buffered columns out and leaves the buffer empty.
// Draining an empty buffer yields an empty chunk.
func (b *RowBuffer) Drain() Chunk {
	c := Chunk{Channels: b.channels, TimeTags: b.timeTags}
	b.channels = nil
	b.timeTags = nil
	return c
}

// Recycle hands a flushed chunk's arrays back so the next chunk reuses their
// capacity. The chunk must not be used after this call. Recycling is a no-op
// when the buffer already holds rows.
func (b *RowBuffer) Recycle(c Chunk) {
	if len(b.channels) > 0 {
		return
	}
	b.channels = c.Channels[:0]
	b.timeTags = c.TimeTags[:0]
}
