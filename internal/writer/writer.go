// Package writer drives a stream of events into a sequence of Parquet files.
//
// Records are pulled from a source.Source into a column-oriented row buffer.
// Each full buffer is appended to the open file as one row group, and after
// every such flush the rotation policy decides whether the file is closed and
// replaced by the next one in sequence. At most one file is open at a time and
// at most MaxChunkRows rows are buffered, whatever the length of the input.
package writer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/martian17/parquet-generator/internal/buffer"
	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/internal/observability"
	"github.com/martian17/parquet-generator/internal/partition"
	"github.com/martian17/parquet-generator/internal/source"
	"github.com/martian17/parquet-generator/pkg/types"
)

// CreatedBy is written into the footer of every file.
const CreatedBy = "parquet-generator"

// cancelCheckInterval is the number of records pulled between context checks.
const cancelCheckInterval = 4096

// FileObserver is notified after each file is finalized. An error returned
// by an observer is fatal to the run.
type FileObserver interface {
	FileClosed(ctx context.Context, info *partition.FileInfo) error
}

// ObserverFunc adapts a function to FileObserver.
type ObserverFunc func(ctx context.Context, info *partition.FileInfo) error

// FileClosed calls f.
func (f ObserverFunc) FileClosed(ctx context.Context, info *partition.FileInfo) error {
	return f(ctx, info)
}

// Result summarizes a successful run.
type Result struct {
	RunID string
	Files []*partition.FileInfo
	Rows  int64
}

// Writer writes one run. It is single-use: after Write returns, the writer is
// closed and further calls fail.
type Writer struct {
	cfg       Config
	fs        afero.Fs
	clock     clockwork.Clock
	logger    *zap.Logger
	metrics   *observability.WriterMetrics
	observers []FileObserver
	runID     string
	opts      []parquet.WriterOption
	state     State
}

// Option configures a Writer.
type Option func(*Writer)

// WithFs sets the filesystem output files are created on.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) { w.fs = fs }
}

// WithClock sets the clock the run timestamp is taken from.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Writer) { w.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.WriterMetrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithObserver adds an observer notified of every finalized file.
func WithObserver(o FileObserver) Option {
	return func(w *Writer) { w.observers = append(w.observers, o) }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(w *Writer) { w.runID = id }
}

// New validates cfg and creates a writer.
func New(cfg Config, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	parquetOpts, err := partition.WriterOptions(cfg.Compression, CreatedBy)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		runID:  uuid.NewString(),
		opts:   parquetOpts,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// State returns the driver state.
func (w *Writer) State() State {
	return w.state
}

// Write pulls every event from src and persists them. On success every
// produced file is closed and readable. On failure the error is returned
// immediately and the file open at the time may lack a footer.
func (w *Writer) Write(ctx context.Context, src source.Source) (*Result, error) {
	if w.state != StateIdle {
		return nil, errors.NewInternalError(fmt.Sprintf("write on %s writer", w.state), nil)
	}

	r := &run{Writer: w, result: &Result{RunID: w.runID}}
	err := r.execute(ctx, src)
	w.state = StateClosed
	if err != nil {
		r.abort()
		w.metrics.RecordFailure(string(errors.GetCategory(err)))
		w.logger.Error("write failed",
			zap.String("run_id", w.runID),
			zap.Error(err),
		)
		return nil, err
	}
	return r.result, nil
}

// WriteEvents writes events into outputDir with the default thresholds.
func WriteEvents(ctx context.Context, events []types.Event, outputDir, label string, opts ...Option) (*Result, error) {
	w, err := New(DefaultConfig(outputDir, label), opts...)
	if err != nil {
		return nil, err
	}
	return w.Write(ctx, source.FromSlice(events))
}

// run holds the state of one Write invocation.
type run struct {
	*Writer

	namer   *partition.Namer
	buf     *buffer.RowBuffer
	flusher *partition.Flusher
	policy  partition.RotationPolicy
	session *partition.Session
	result  *Result
}

func (r *run) execute(ctx context.Context, src source.Source) error {
	if err := r.checkOutputDir(); err != nil {
		return err
	}

	buf, err := buffer.New(r.cfg.MaxChunkRows)
	if err != nil {
		return errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidConfig, "invalid chunk size", err)
	}
	r.buf = buf
	r.namer = partition.NewNamer(r.clock, r.cfg.OutputDir, r.cfg.Label)
	r.flusher = partition.NewFlusher(partition.DefaultBatchRows)
	r.policy = partition.NewRotationPolicy(r.cfg.MaxChunkRows, r.cfg.MaxFileRows, r.cfg.StrictRotation)

	r.logger.Info("starting write",
		zap.String("run_id", r.runID),
		zap.String("output_dir", r.cfg.OutputDir),
		zap.String("label", r.cfg.Label),
		zap.Int("max_chunk_rows", r.cfg.MaxChunkRows),
		zap.Int("max_chunks_per_file", r.policy.MaxChunksPerFile),
		zap.Int("max_rows_per_file", r.policy.MaxRowsPerFile(r.cfg.MaxChunkRows)),
	)

	if err := r.open(); err != nil {
		return err
	}

	r.state = StateBuffering
	for pulled := 0; ; pulled++ {
		if pulled%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return canceled(err)
			}
			r.metrics.SetBuffered(r.buf.Len())
		}

		e, err := src.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return canceled(ctxErr)
			}
			return errors.Wrap(errors.ErrCategoryIO, errors.CodeSourceFailed, "failed to read next event", err)
		}

		r.buf.Append(e)
		if !r.buf.IsFull() {
			continue
		}

		if err := r.flush(); err != nil {
			return err
		}
		if r.policy.ShouldRotate(r.session.Chunks()) {
			if err := r.rotate(ctx); err != nil {
				return err
			}
		}
		r.state = StateBuffering
	}

	// The final flush never triggers rotation.
	if r.buf.Len() > 0 {
		if err := r.flush(); err != nil {
			return err
		}
	}

	if err := r.closeSession(ctx); err != nil {
		return err
	}

	r.logger.Info("write complete",
		zap.String("run_id", r.runID),
		zap.Int("files", len(r.result.Files)),
		zap.Int64("rows", r.result.Rows),
	)
	return nil
}

func (r *run) checkOutputDir() error {
	info, err := r.fs.Stat(r.cfg.OutputDir)
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.Wrap(errors.ErrCategoryConfig, errors.CodeNotADirectory,
			"requested output path does not exist", err).WithPath(r.cfg.OutputDir)
	case err != nil:
		return errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidConfig,
			"failed to stat output directory", err).WithPath(r.cfg.OutputDir)
	case !info.IsDir():
		return errors.New(errors.ErrCategoryConfig, errors.CodeNotADirectory,
			"requested output path is not a directory").WithPath(r.cfg.OutputDir)
	}
	return nil
}

func (r *run) open() error {
	seq, path := r.namer.Next()
	session, err := partition.OpenSession(r.fs, r.clock, path, seq, partition.SessionConfig{
		RunID:         r.runID,
		Label:         r.namer.Label(),
		RunTimestamp:  r.namer.Timestamp(),
		WriterOptions: r.opts,
	})
	if err != nil {
		return err
	}
	r.session = session
	r.state = StateOpen
	r.logger.Info("opened output file", zap.String("path", path), zap.Int("sequence", seq))
	return nil
}

func (r *run) flush() error {
	r.state = StateFlushing
	chunk := r.buf.Drain()
	r.metrics.SetBuffered(0)
	start := r.clock.Now()

	if err := r.flusher.Flush(r.session, chunk); err != nil {
		return err
	}

	elapsed := r.clock.Since(start)
	r.result.Rows += int64(chunk.Len())
	r.metrics.RecordFlush(chunk.Len(), elapsed)
	r.logger.Debug("flushed row group",
		zap.String("path", r.session.Path()),
		zap.Int("rows", chunk.Len()),
		zap.Int("chunk", r.session.Chunks()),
		zap.Duration("elapsed", elapsed),
	)
	r.buf.Recycle(chunk)
	return nil
}

func (r *run) rotate(ctx context.Context) error {
	r.state = StateRotating
	if err := r.closeSession(ctx); err != nil {
		return err
	}
	r.metrics.RecordRotation()
	return r.open()
}

func (r *run) closeSession(ctx context.Context) error {
	info, err := r.session.Close()
	if err != nil {
		return err
	}
	r.result.Files = append(r.result.Files, info)
	r.metrics.RecordClose()
	r.logger.Info("closed output file",
		zap.String("path", info.Path),
		zap.Int("sequence", info.Sequence),
		zap.Int64("rows", info.Stats.RowCount),
		zap.Int("row_groups", info.RowGroups),
		zap.Int64("size_bytes", info.SizeBytes),
	)

	for _, o := range r.observers {
		if err := o.FileClosed(ctx, info); err != nil {
			if errors.GetCategory(err) != "" {
				return err
			}
			return errors.NewInternalError("file observer failed", err).WithPath(info.Path)
		}
	}
	return nil
}

// abort releases the open handle after a fatal error without finalizing it.
func (r *run) abort() {
	if r.session != nil {
		r.session.Abort()
	}
}

func canceled(err error) error {
	return errors.Wrap(errors.ErrCategoryInternal, errors.CodeCanceled, "write canceled", err)
}
