package source

import (
	"context"
	"io"

	"github.com/martian17/parquet-generator/pkg/types"
)

// ProduceFunc pushes events into out until it is done or ctx is canceled.
// It must not close out.
type ProduceFunc func(ctx context.Context, out chan<- types.Event) error

// ChannelSource drains a bounded queue filled by a producer goroutine. When
// the writer is slower than the producer, sends on the full queue block the
// producer.
type ChannelSource struct {
	events <-chan types.Event
	errc   <-chan error
	cancel context.CancelFunc

	done bool
	err  error
}

// NewPipe starts produce in its own goroutine with a queue of the given
// capacity. The returned source reports the producer's error, if any, once
// the queue is drained.
func NewPipe(ctx context.Context, capacity int, produce ProduceFunc) *ChannelSource {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan types.Event, capacity)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		errc <- produce(ctx, events)
	}()

	return &ChannelSource{events: events, errc: errc, cancel: cancel}
}

// FromChannel wraps an existing channel; the source ends when it is closed.
func FromChannel(events <-chan types.Event) *ChannelSource {
	errc := make(chan error, 1)
	errc <- nil
	return &ChannelSource{events: events, errc: errc, cancel: func() {}}
}

// Next receives the next event from the queue.
func (s *ChannelSource) Next(ctx context.Context) (types.Event, error) {
	if s.done {
		return types.Event{}, s.err
	}

	select {
	case <-ctx.Done():
		return types.Event{}, ctx.Err()
	case e, ok := <-s.events:
		if ok {
			return e, nil
		}
	}

	s.done = true
	s.err = io.EOF
	if err := <-s.errc; err != nil {
		s.err = err
	}
	return types.Event{}, s.err
}

// Close stops the producer. Pending events are discarded.
func (s *ChannelSource) Close() error {
	s.cancel()
	for range s.events {
	}
	return nil
}
