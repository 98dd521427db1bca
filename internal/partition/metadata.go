package partition

import (
	"strconv"
	"time"
)

// Footer key/value metadata keys written into every file.
const (
	MetaRunID        = "pqgen.run_id"
	MetaLabel        = "pqgen.label"
	MetaRunTimestamp = "pqgen.run_timestamp"
	MetaSequence     = "pqgen.sequence"
	MetaRows         = "pqgen.rows"
	MetaRowGroups    = "pqgen.row_groups"
	MetaMinTimeTag   = "pqgen.min_time_tag_ps"
	MetaMaxTimeTag   = "pqgen.max_time_tag_ps"
	MetaFingerprint  = "pqgen.fingerprint"
)

// FileStats holds file-level statistics.
type FileStats struct {
	RowCount     int64   `json:"row_count"`
	MinChannel   *uint16 `json:"min_channel,omitempty"`
	MaxChannel   *uint16 `json:"max_channel,omitempty"`
	MinTimeTagPS *uint64 `json:"min_time_tag_ps,omitempty"`
	MaxTimeTagPS *uint64 `json:"max_time_tag_ps,omitempty"`
	Fingerprint  string  `json:"fingerprint"`
}

// FileInfo describes one closed output file.
type FileInfo struct {
	RunID        string    `json:"run_id"`
	Label        string    `json:"label"`
	RunTimestamp string    `json:"run_timestamp"`
	Sequence     int       `json:"sequence"`
	Path         string    `json:"path"`
	RowGroups    int       `json:"row_groups"`
	SizeBytes    int64     `json:"size_bytes"`
	Stats        FileStats `json:"stats"`
	ClosedAt     time.Time `json:"closed_at"`
}

// footerMetadata returns the key/value pairs that depend on flushed content.
func footerMetadata(rowGroups int, stats FileStats) map[string]string {
	kv := map[string]string{
		MetaRows:        strconv.FormatInt(stats.RowCount, 10),
		MetaRowGroups:   strconv.Itoa(rowGroups),
		MetaFingerprint: stats.Fingerprint,
	}
	if stats.MinTimeTagPS != nil {
		kv[MetaMinTimeTag] = strconv.FormatUint(*stats.MinTimeTagPS, 10)
		kv[MetaMaxTimeTag] = strconv.FormatUint(*stats.MaxTimeTagPS, 10)
	}
	return kv
}
