package partition

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/spaolacci/murmur3"

	"github.com/martian17/parquet-generator/pkg/types"
)

// StatsTracker tracks per-file statistics while rows are flushed.
type StatsTracker struct {
	rowCount int64

	minChannel *uint16
	maxChannel *uint16

	minTimeTag *uint64
	maxTimeTag *uint64

	// fingerprint is a murmur3 digest over rows in file order
	fingerprint hash.Hash64
	scratch     [10]byte
}

// NewStatsTracker creates a new statistics tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{fingerprint: murmur3.New64()}
}

// Update updates statistics with a new row.
func (s *StatsTracker) Update(row types.Row) {
	s.rowCount++

	ch := uint16(row.Channel)
	if s.minChannel == nil || ch < *s.minChannel {
		s.minChannel = ptr(ch)
	}
	if s.maxChannel == nil || ch > *s.maxChannel {
		s.maxChannel = ptr(ch)
	}

	if s.minTimeTag == nil || row.TimeTag < *s.minTimeTag {
		tt := row.TimeTag
		s.minTimeTag = &tt
	}
	if s.maxTimeTag == nil || row.TimeTag > *s.maxTimeTag {
		tt := row.TimeTag
		s.maxTimeTag = &tt
	}

	binary.LittleEndian.PutUint16(s.scratch[0:2], ch)
	binary.LittleEndian.PutUint64(s.scratch[2:10], row.TimeTag)
	s.fingerprint.Write(s.scratch[:])
}

// RowCount returns the number of rows tracked.
func (s *StatsTracker) RowCount() int64 {
	return s.rowCount
}

// Fingerprint returns the hex encoded murmur3 digest of all rows so far.
func (s *StatsTracker) Fingerprint() string {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], s.fingerprint.Sum64())
	return hex.EncodeToString(sum[:])
}

// Stats returns a snapshot of the tracked statistics.
func (s *StatsTracker) Stats() FileStats {
	stats := FileStats{
		RowCount:    s.rowCount,
		Fingerprint: s.Fingerprint(),
	}
	if s.minChannel != nil {
		stats.MinChannel = ptr(*s.minChannel)
		stats.MaxChannel = ptr(*s.maxChannel)
	}
	if s.minTimeTag != nil {
		stats.MinTimeTagPS = ptr(*s.minTimeTag)
		stats.MaxTimeTagPS = ptr(*s.maxTimeTag)
	}
	return stats
}

func ptr[T any](v T) *T {
	return &v
}
