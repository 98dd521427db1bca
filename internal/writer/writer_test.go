package writer

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/internal/observability"
	"github.com/martian17/parquet-generator/internal/partition"
	"github.com/martian17/parquet-generator/internal/source"
	"github.com/martian17/parquet-generator/pkg/types"
)

const outDir = "/out"

var runTime = time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)

func newTestWriter(t *testing.T, fsys afero.Fs, chunkRows, fileRows int, opts ...Option) *Writer {
	t.Helper()
	cfg := DefaultConfig(outDir, "simulation-1")
	cfg.MaxChunkRows = chunkRows
	cfg.MaxFileRows = fileRows

	opts = append([]Option{
		WithFs(fsys),
		WithClock(clockwork.NewFakeClockAt(runTime)),
		WithLogger(zaptest.NewLogger(t)),
		WithRunID("test-run"),
	}, opts...)
	w, err := New(cfg, opts...)
	require.NoError(t, err)
	return w
}

func newOutFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(outDir, 0755))
	return fsys
}

func sequentialEvents(n int) []types.Event {
	events := make([]types.Event, n)
	for i := range events {
		events[i] = types.Event{ChannelID: uint16(i % 2), TimeTagPS: uint64(1000 + i)}
	}
	return events
}

func outputFiles(t *testing.T, fsys afero.Fs) []string {
	t.Helper()
	entries, err := afero.ReadDir(fsys, outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func rowGroups(t *testing.T, fsys afero.Fs, name string) []int64 {
	t.Helper()
	summary, err := partition.Inspect(fsys, filepath.Join(outDir, name))
	require.NoError(t, err)
	return summary.RowGroupRows
}

func readAll(t *testing.T, fsys afero.Fs) []types.Event {
	t.Helper()
	var all []types.Event
	for _, name := range outputFiles(t, fsys) {
		events, err := partition.ReadEvents(fsys, filepath.Join(outDir, name))
		require.NoError(t, err)
		all = append(all, events...)
	}
	return all
}

func TestWrite_EndToEndSingleFile(t *testing.T) {
	fsys := newOutFs(t)
	events := []types.Event{
		{ChannelID: 0, TimeTagPS: 100},
		{ChannelID: 1, TimeTagPS: 200},
		{ChannelID: 0, TimeTagPS: 181},
		{ChannelID: 1, TimeTagPS: 201},
		{ChannelID: 0, TimeTagPS: 210},
	}

	w := newTestWriter(t, fsys, 2, 100)
	res, err := w.Write(context.Background(), source.FromSlice(events))
	require.NoError(t, err)

	assert.Equal(t, StateClosed, w.State())
	assert.Equal(t, int64(5), res.Rows)
	require.Len(t, res.Files, 1)
	assert.Equal(t, []string{"20260205T120000Z_simulation-1_0001.parquet"}, outputFiles(t, fsys))
	assert.Equal(t, []int64{2, 2, 1}, rowGroups(t, fsys, "20260205T120000Z_simulation-1_0001.parquet"))
	assert.Equal(t, events, readAll(t, fsys))
}

func TestWrite_RotationBoundary(t *testing.T) {
	fsys := newOutFs(t)
	events := sequentialEvents(10)

	res, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(events))
	require.NoError(t, err)

	names := outputFiles(t, fsys)
	require.Equal(t, []string{
		"20260205T120000Z_simulation-1_0001.parquet",
		"20260205T120000Z_simulation-1_0002.parquet",
	}, names)
	assert.Equal(t, []int64{2, 2, 2}, rowGroups(t, fsys, names[0]))
	assert.Equal(t, []int64{2, 2}, rowGroups(t, fsys, names[1]))
	assert.Equal(t, events, readAll(t, fsys))

	require.Len(t, res.Files, 2)
	assert.Equal(t, 3, res.Files[0].RowGroups)
	assert.Equal(t, 2, res.Files[1].RowGroups)
}

func TestWrite_StrictRotation(t *testing.T) {
	fsys := newOutFs(t)
	cfg := DefaultConfig(outDir, "strict")
	cfg.MaxChunkRows = 2
	cfg.MaxFileRows = 4
	cfg.StrictRotation = true
	w, err := New(cfg, WithFs(fsys), WithClock(clockwork.NewFakeClockAt(runTime)))
	require.NoError(t, err)

	_, err = w.Write(context.Background(), source.FromSlice(sequentialEvents(10)))
	require.NoError(t, err)

	names := outputFiles(t, fsys)
	require.Len(t, names, 3)
	assert.Equal(t, []int64{2, 2}, rowGroups(t, fsys, names[0]))
	assert.Equal(t, []int64{2, 2}, rowGroups(t, fsys, names[1]))
	assert.Equal(t, []int64{2}, rowGroups(t, fsys, names[2]))
}

func TestWrite_InputEndsOnRotation(t *testing.T) {
	fsys := newOutFs(t)

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(sequentialEvents(6)))
	require.NoError(t, err)

	names := outputFiles(t, fsys)
	require.Len(t, names, 2)
	assert.Equal(t, []int64{2, 2, 2}, rowGroups(t, fsys, names[0]))
	assert.Empty(t, rowGroups(t, fsys, names[1]), "file opened by the last rotation is closed empty")
}

func TestWrite_EmptyInput(t *testing.T) {
	fsys := newOutFs(t)

	res, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(nil))
	require.NoError(t, err)

	names := outputFiles(t, fsys)
	require.Len(t, names, 1)
	summary, err := partition.Inspect(fsys, filepath.Join(outDir, names[0]))
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.NumRows)
	assert.Empty(t, summary.RowGroupRows)
	assert.Equal(t, int64(0), res.Rows)
}

func TestWrite_MissingOutputDir(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(sequentialEvents(3)))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err), "expected config error, got %v", err)
	assert.Equal(t, errors.CodeNotADirectory, errors.GetCode(err))

	exists, err := afero.Exists(fsys, outDir)
	require.NoError(t, err)
	assert.False(t, exists, "no files or directories may be created")
}

func TestWrite_OutputPathIsFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, outDir, []byte("file"), 0644))

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(nil))
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotADirectory, errors.GetCode(err))
	assert.Equal(t, outDir, errors.GetPath(err))
}

// statDeniedFs fails every Stat with a permission error.
type statDeniedFs struct {
	afero.Fs
}

func (statDeniedFs) Stat(name string) (os.FileInfo, error) {
	return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrPermission}
}

func TestWrite_OutputDirStatFailure(t *testing.T) {
	fsys := statDeniedFs{newOutFs(t)}

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(sequentialEvents(3)))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err), "expected config error, got %v", err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
	assert.Equal(t, outDir, errors.GetPath(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestWrite_NameCollisionOnOpen(t *testing.T) {
	fsys := newOutFs(t)
	taken := filepath.Join(outDir, "20260205T120000Z_simulation-1_0001.parquet")
	require.NoError(t, afero.WriteFile(fsys, taken, []byte("keep"), 0644))

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), source.FromSlice(sequentialEvents(3)))
	require.Error(t, err)
	assert.True(t, errors.IsNaming(err), "expected naming error, got %v", err)
	assert.Equal(t, taken, errors.GetPath(err))

	data, err := afero.ReadFile(fsys, taken)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestWrite_NameCollisionOnRotation(t *testing.T) {
	fsys := newOutFs(t)
	taken := filepath.Join(outDir, "20260205T120000Z_simulation-1_0002.parquet")
	require.NoError(t, afero.WriteFile(fsys, taken, []byte("keep"), 0644))

	_, err := newTestWriter(t, fsys, 1, 1).Write(context.Background(), source.FromSlice(sequentialEvents(5)))
	require.Error(t, err)
	assert.True(t, errors.IsNaming(err))

	// The first file was closed before the collision and stays readable.
	events, err := partition.ReadEvents(fsys, filepath.Join(outDir, "20260205T120000Z_simulation-1_0001.parquet"))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// brokenFs creates files whose writes fail.
type brokenFs struct {
	afero.Fs
}

func (b brokenFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := b.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return brokenFile{f}, nil
}

type brokenFile struct {
	afero.File
}

func (brokenFile) Write([]byte) (int, error) {
	return 0, stderrors.New("input/output error")
}

func TestWrite_StorageFailureIsFatal(t *testing.T) {
	fsys := brokenFs{newOutFs(t)}
	reg := prometheus.NewRegistry()
	metrics := observability.NewWriterMetrics(reg)

	_, err := newTestWriter(t, fsys, 2, 4, WithMetrics(metrics)).Write(context.Background(), source.FromSlice(sequentialEvents(5)))
	require.Error(t, err)
	assert.True(t, errors.IsIO(err), "expected I/O error, got %v", err)
	assert.Contains(t, errors.GetPath(err), "20260205T120000Z_simulation-1_0001.parquet")

	count, err := testutil.GatherAndCount(reg, "pqgen_write_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWrite_SourceFailure(t *testing.T) {
	fsys := newOutFs(t)
	boom := stderrors.New("queue broken")
	n := 0
	src := source.Func(func(ctx context.Context) (types.Event, error) {
		n++
		if n > 3 {
			return types.Event{}, boom
		}
		return types.Event{ChannelID: 1, TimeTagPS: uint64(n)}, nil
	})

	_, err := newTestWriter(t, fsys, 2, 4).Write(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, errors.CodeSourceFailed, errors.GetCode(err))
	assert.ErrorIs(t, err, boom)
}

func TestWrite_Canceled(t *testing.T) {
	fsys := newOutFs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestWriter(t, fsys, 2, 4).Write(ctx, source.FromSlice(sequentialEvents(3)))
	require.Error(t, err)
	assert.Equal(t, errors.CodeCanceled, errors.GetCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrite_SingleUse(t *testing.T) {
	fsys := newOutFs(t)
	w := newTestWriter(t, fsys, 2, 4)
	_, err := w.Write(context.Background(), source.FromSlice(nil))
	require.NoError(t, err)

	_, err = w.Write(context.Background(), source.FromSlice(nil))
	require.Error(t, err)
	assert.Len(t, outputFiles(t, fsys), 1)
}

func TestWrite_ObserversSeeEveryFile(t *testing.T) {
	fsys := newOutFs(t)
	var seen []int
	observer := ObserverFunc(func(ctx context.Context, info *partition.FileInfo) error {
		seen = append(seen, info.Sequence)
		assert.Equal(t, "test-run", info.RunID)
		return nil
	})

	_, err := newTestWriter(t, fsys, 1, 1, WithObserver(observer)).Write(context.Background(), source.FromSlice(sequentialEvents(5)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestWrite_ObserverErrorIsFatal(t *testing.T) {
	fsys := newOutFs(t)
	observer := ObserverFunc(func(ctx context.Context, info *partition.FileInfo) error {
		return fmt.Errorf("catalog unavailable")
	})

	_, err := newTestWriter(t, fsys, 2, 4, WithObserver(observer)).Write(context.Background(), source.FromSlice(sequentialEvents(1)))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCategoryInternal, errors.GetCategory(err))
}

func TestWrite_Metrics(t *testing.T) {
	fsys := newOutFs(t)
	reg := prometheus.NewRegistry()

	_, err := newTestWriter(t, fsys, 2, 4, WithMetrics(observability.NewWriterMetrics(reg))).Write(context.Background(), source.FromSlice(sequentialEvents(10)))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 10.0, values["pqgen_rows_written_total"])
	assert.Equal(t, 5.0, values["pqgen_row_groups_written_total"])
	assert.Equal(t, 2.0, values["pqgen_files_closed_total"])
	assert.Equal(t, 1.0, values["pqgen_rotations_total"])
}

func TestWrite_FromPipe(t *testing.T) {
	fsys := newOutFs(t)
	events := sequentialEvents(1000)
	src := source.NewPipe(context.Background(), 16, func(ctx context.Context, out chan<- types.Event) error {
		for _, e := range events {
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	defer src.Close()

	res, err := newTestWriter(t, fsys, 64, 256).Write(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Rows)
	assert.Equal(t, events, readAll(t, fsys))
}

func TestWriteEvents_OnDisk(t *testing.T) {
	dir := t.TempDir()
	events := sequentialEvents(5)

	res, err := WriteEvents(context.Background(), events, dir, "disk")
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	got, err := partition.ReadEvents(afero.NewOsFs(), res.Files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, events, got)
	require.NoError(t, partition.Verify(afero.NewOsFs(), res.Files[0].Path))
}

func TestWriteEvents_ChannelRange(t *testing.T) {
	dir := t.TempDir()
	events := []types.Event{
		{ChannelID: 0, TimeTagPS: 100},
		{ChannelID: 1, TimeTagPS: 200},
		{ChannelID: 255, TimeTagPS: 300},
		{ChannelID: math.MaxUint16, TimeTagPS: math.MaxUint64},
	}

	res, err := WriteEvents(context.Background(), events, dir, "x")
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, uint16(0), *res.Files[0].Stats.MinChannel)
	assert.Equal(t, uint16(math.MaxUint16), *res.Files[0].Stats.MaxChannel)

	got, err := partition.ReadEvents(afero.NewOsFs(), res.Files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []Config{
		{MaxChunkRows: 0, MaxFileRows: 10, OutputDir: "/x", Label: "a"},
		{MaxChunkRows: 1, MaxFileRows: -1, OutputDir: "/x", Label: "a"},
		{MaxChunkRows: 1, MaxFileRows: 1, OutputDir: "", Label: "a"},
		{MaxChunkRows: 1, MaxFileRows: 1, OutputDir: "/x", Label: "a/b"},
		{MaxChunkRows: 1, MaxFileRows: 1, OutputDir: "/x", Label: "a", Compression: "rar"},
	}
	for i, cfg := range tests {
		_, err := New(cfg)
		if assert.Error(t, err, "case %d", i) {
			assert.True(t, errors.IsConfig(err), "case %d: %v", i, err)
		}
	}
}
