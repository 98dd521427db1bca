package writer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"github.com/martian17/parquet-generator/internal/partition"
	"github.com/martian17/parquet-generator/internal/source"
	"github.com/martian17/parquet-generator/pkg/types"
)

// TestProperty_RowConservation checks that for any input length and pair of
// thresholds, the rows across all produced files equal the input exactly and
// in order, no row group exceeds the chunk size, no file exceeds its chunk
// budget, and sequence numbers are contiguous from 1.
func TestProperty_RowConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("rows are conserved across rotation", prop.ForAll(
		func(n, chunkRows, fileRows int, strict bool) (bool, error) {
			fsys := afero.NewMemMapFs()
			if err := fsys.MkdirAll(outDir, 0755); err != nil {
				return false, err
			}

			cfg := DefaultConfig(outDir, "prop")
			cfg.MaxChunkRows = chunkRows
			cfg.MaxFileRows = fileRows
			cfg.StrictRotation = strict
			w, err := New(cfg, WithFs(fsys), WithClock(clockwork.NewFakeClockAt(runTime)))
			if err != nil {
				return false, err
			}

			events := sequentialEvents(n)
			res, err := w.Write(context.Background(), source.FromSlice(events))
			if err != nil {
				return false, err
			}

			policy := partition.NewRotationPolicy(chunkRows, fileRows, strict)
			maxGroups := policy.MaxChunksPerFile
			if !strict {
				maxGroups++
			}
			if maxGroups < 1 {
				maxGroups = 1
			}

			var all []types.Event
			for i, info := range res.Files {
				if info.Sequence != i+1 {
					return false, fmt.Errorf("file %d has sequence %d", i, info.Sequence)
				}
				summary, err := partition.Inspect(fsys, info.Path)
				if err != nil {
					return false, err
				}
				if len(summary.RowGroupRows) > maxGroups {
					return false, fmt.Errorf("file %d has %d row groups, budget %d", i, len(summary.RowGroupRows), maxGroups)
				}
				for _, rows := range summary.RowGroupRows {
					if rows > int64(chunkRows) || rows == 0 {
						return false, fmt.Errorf("row group of %d rows with chunk size %d", rows, chunkRows)
					}
				}
				got, err := partition.ReadEvents(fsys, filepath.Clean(info.Path))
				if err != nil {
					return false, err
				}
				all = append(all, got...)
			}

			if len(all) != n || res.Rows != int64(n) {
				return false, fmt.Errorf("read %d rows, result %d, want %d", len(all), res.Rows, n)
			}
			for i := range all {
				if all[i] != events[i] {
					return false, fmt.Errorf("row %d = %+v, want %+v", i, all[i], events[i])
				}
			}
			return true, nil
		},
		gen.IntRange(0, 200),
		gen.IntRange(1, 17),
		gen.IntRange(1, 60),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
