// Package source provides pull-style event sources for the writer. A source
// may be backed by an in-memory vector, a producer goroutine feeding a
// bounded queue, or an encoded event stream.
package source

import (
	"context"
	"io"

	"github.com/martian17/parquet-generator/pkg/types"
)

// Source yields events in the order the writer must persist them.
type Source interface {
	// Next returns the next event, or io.EOF once the source is exhausted.
	Next(ctx context.Context) (types.Event, error)
}

// SliceSource replays a fully materialized event vector.
type SliceSource struct {
	events []types.Event
	pos    int
}

// FromSlice creates a source over events. The slice is not copied.
func FromSlice(events []types.Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the next event of the slice.
func (s *SliceSource) Next(ctx context.Context) (types.Event, error) {
	if s.pos >= len(s.events) {
		return types.Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// Func adapts a function to the Source interface.
type Func func(ctx context.Context) (types.Event, error)

// Next calls f.
func (f Func) Next(ctx context.Context) (types.Event, error) {
	return f(ctx)
}
