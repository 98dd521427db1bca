// Package partition manages the output files of a writer run: naming, the
// open/flush/close lifecycle of one Parquet file, and rotation between files.
package partition

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"

	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/pkg/types"
)

// State is the lifecycle state of a session's file handle.
type State int

const (
	StateNone State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// SessionConfig carries the run-wide values stamped into every file.
type SessionConfig struct {
	RunID         string
	Label         string
	RunTimestamp  string
	WriterOptions []parquet.WriterOption
}

// Session is the bookkeeping for one open output file.
type Session struct {
	fs       afero.Fs
	clock    clockwork.Clock
	path     string
	sequence int
	cfg      SessionConfig

	state  State
	file   afero.File
	writer *parquet.GenericWriter[types.Row]
	chunks int
	stats  *StatsTracker
}

// OpenSession creates path exclusively and starts a Parquet writer on it.
// An existing file at path is a naming collision and is never overwritten.
func OpenSession(fsys afero.Fs, clock clockwork.Clock, path string, sequence int, cfg SessionConfig) (*Session, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return nil, errors.NewNamingError(path)
		}
		return nil, errors.NewIOError(errors.CodeCreateFailed, "failed to create output file", path, err)
	}

	opts := make([]parquet.WriterOption, 0, len(cfg.WriterOptions)+5)
	opts = append(opts, fileSchema)
	opts = append(opts, cfg.WriterOptions...)
	opts = append(opts,
		parquet.KeyValueMetadata(MetaRunID, cfg.RunID),
		parquet.KeyValueMetadata(MetaLabel, cfg.Label),
		parquet.KeyValueMetadata(MetaRunTimestamp, cfg.RunTimestamp),
		parquet.KeyValueMetadata(MetaSequence, strconv.Itoa(sequence)),
	)

	return &Session{
		fs:       fsys,
		clock:    clock,
		path:     path,
		sequence: sequence,
		cfg:      cfg,
		state:    StateOpen,
		file:     f,
		writer:   parquet.NewGenericWriter[types.Row](f, opts...),
		stats:    NewStatsTracker(),
	}, nil
}

// Path returns the file path of the session.
func (s *Session) Path() string { return s.path }

// Sequence returns the 1-based sequence number used in the file name.
func (s *Session) Sequence() int { return s.sequence }

// Chunks returns the number of row groups flushed into this file.
func (s *Session) Chunks() int { return s.chunks }

// Rows returns the number of rows flushed into this file.
func (s *Session) Rows() int64 { return s.stats.RowCount() }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Close writes the footer so the file is independently readable and releases
// the handle. A closed session is never reopened.
func (s *Session) Close() (*FileInfo, error) {
	if s.state != StateOpen {
		return nil, errors.NewInternalError(fmt.Sprintf("close on %s session", s.state), nil)
	}
	s.state = StateClosed

	stats := s.stats.Stats()
	for k, v := range footerMetadata(s.chunks, stats) {
		s.writer.SetKeyValueMetadata(k, v)
	}

	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return nil, errors.NewIOError(errors.CodeCloseFailed, "failed to write file footer", s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return nil, errors.NewIOError(errors.CodeCloseFailed, "failed to close output file", s.path, err)
	}

	fileInfo, err := s.fs.Stat(s.path)
	if err != nil {
		return nil, errors.NewIOError(errors.CodeCloseFailed, "failed to stat output file", s.path, err)
	}

	return &FileInfo{
		RunID:        s.cfg.RunID,
		Label:        s.cfg.Label,
		RunTimestamp: s.cfg.RunTimestamp,
		Sequence:     s.sequence,
		Path:         s.path,
		RowGroups:    s.chunks,
		SizeBytes:    fileInfo.Size(),
		Stats:        stats,
		ClosedAt:     s.clock.Now().UTC(),
	}, nil
}

// Abort releases the handle without finalizing the file. The file is left
// without a footer and must be treated as corrupt.
func (s *Session) Abort() {
	if s.state != StateOpen {
		return
	}
	s.state = StateClosed
	s.file.Close()
}
