package buffer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/martian17/parquet-generator/pkg/types"
)

func TestNew_RejectsNonPositive(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New(n); err == nil {
			t.Errorf("New(%d) should fail", n)
		}
	}
}

func TestRowBuffer_AppendAndFull(t *testing.T) {
	b, err := New(3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.Append(types.Event{ChannelID: 0, TimeTagPS: 100})
	b.Append(types.Event{ChannelID: 1, TimeTagPS: 200})
	if b.IsFull() {
		t.Error("buffer with 2 of 3 rows should not be full")
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}

	b.Append(types.Event{ChannelID: 0, TimeTagPS: 181})
	if !b.IsFull() {
		t.Error("buffer with 3 of 3 rows should be full")
	}
}

func TestRowBuffer_DrainPreservesOrder(t *testing.T) {
	b, _ := New(10)
	events := []types.Event{{ChannelID: 0, TimeTagPS: 100}, {ChannelID: 1, TimeTagPS: 200}, {ChannelID: 0, TimeTagPS: 181}, {ChannelID: 1, TimeTagPS: 201}, {ChannelID: 0, TimeTagPS: 210}}
	for _, e := range events {
		b.Append(e)
	}

	c := b.Drain()
	if c.Len() != len(events) {
		t.Fatalf("chunk len = %d, want %d", c.Len(), len(events))
	}
	for i, e := range events {
		if c.Row(i).Event() != e {
			t.Errorf("row %d = %+v, want %+v", i, c.Row(i).Event(), e)
		}
	}
	if b.Len() != 0 {
		t.Errorf("buffer should be empty after drain, has %d rows", b.Len())
	}
}

func TestRowBuffer_DrainEmpty(t *testing.T) {
	b, _ := New(2)
	c := b.Drain()
	if c.Len() != 0 {
		t.Errorf("draining empty buffer should give empty chunk, got %d rows", c.Len())
	}
}

func TestRowBuffer_RecycleReusesCapacity(t *testing.T) {
	b, _ := New(4)
	for i := 0; i < 4; i++ {
		b.Append(types.Event{ChannelID: uint16(i), TimeTagPS: uint64(i)})
	}
	c := b.Drain()
	capBefore := cap(c.Channels)

	b.Recycle(c)
	if b.Len() != 0 {
		t.Fatalf("recycled buffer should be empty, has %d rows", b.Len())
	}
	b.Append(types.Event{ChannelID: 9, TimeTagPS: 9})
	if cap(b.channels) != capBefore {
		t.Errorf("capacity = %d, want reused %d", cap(b.channels), capBefore)
	}
}

func TestRowBuffer_RecycleIgnoredWhenNonEmpty(t *testing.T) {
	b, _ := New(4)
	b.Append(types.Event{ChannelID: 1, TimeTagPS: 1})
	c := b.Drain()
	b.Append(types.Event{ChannelID: 2, TimeTagPS: 2})

	b.Recycle(c)
	if b.Len() != 1 {
		t.Errorf("Recycle must not discard buffered rows, Len = %d", b.Len())
	}
}

// TestProperty_ColumnsStayAligned checks that for any sequence of appends and
// drains at the threshold the buffer never exceeds maxRows and every drained
// chunk has equal-length, order-preserving columns.
func TestProperty_ColumnsStayAligned(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("drained chunks are aligned and bounded", prop.ForAll(
		func(maxRows int, channels []uint16) bool {
			b, err := New(maxRows)
			if err != nil {
				return false
			}

			var seen []types.Event
			check := func(c Chunk) bool {
				if len(c.Channels) != len(c.TimeTags) || c.Len() > maxRows {
					return false
				}
				for i := 0; i < c.Len(); i++ {
					seen = append(seen, c.Row(i).Event())
				}
				b.Recycle(c)
				return true
			}

			for i, ch := range channels {
				b.Append(types.Event{ChannelID: ch, TimeTagPS: uint64(i)})
				if b.Len() > maxRows {
					return false
				}
				if b.IsFull() && !check(b.Drain()) {
					return false
				}
			}
			if !check(b.Drain()) {
				return false
			}

			if len(seen) != len(channels) {
				return false
			}
			for i, e := range seen {
				if e.ChannelID != channels[i] || e.TimeTagPS != uint64(i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.UInt16()),
	))

	properties.TestingRun(t)
}
