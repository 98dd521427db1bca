package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/internal/partition"
	"github.com/martian17/parquet-generator/internal/simulate"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := BuildCLI("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func inspectJSON(t *testing.T, dir string) []*partition.FileSummary {
	t.Helper()
	out, err := execute(t, "inspect", "--json", "--verify", dir)
	require.NoError(t, err)
	var summaries []*partition.FileSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	return summaries
}

func totalRows(summaries []*partition.FileSummary) int64 {
	var n int64
	for _, s := range summaries {
		n += s.NumRows
	}
	return n
}

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI("1.2.3")

	assert.Equal(t, "parquet-generator", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"generate", "convert", "inspect", "catalog"} {
		assert.True(t, names[name], "missing %s command", name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestGenerateAndInspect(t *testing.T) {
	out := t.TempDir()

	stdout, err := execute(t, "generate",
		"--out", out, "--label", "sim", "--pairs", "2000", "--seed", "7",
		"--chunk-rows", "500", "--file-rows", "1000")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rows in")

	cfg := simulate.DefaultConfig()
	cfg.Seed = 7
	cfg.Pairs = 2000
	want := int64(len(simulate.Generate(cfg)))

	summaries := inspectJSON(t, out)
	require.NotEmpty(t, summaries)
	assert.Equal(t, want, totalRows(summaries))
	for i, s := range summaries {
		assert.Equal(t, i+1, s.Sequence())
		assert.Equal(t, []string{"channel", "time_tag"}, s.Columns)
		// Default rotation lets a file take one chunk past its budget.
		assert.LessOrEqual(t, s.NumRows, int64(1500))
	}

	table, err := execute(t, "inspect", "--verify", out)
	require.NoError(t, err)
	assert.Contains(t, table, "verified")
}

func TestGenerateStreamThenConvert(t *testing.T) {
	dir := t.TempDir()
	stream := filepath.Join(dir, "events.tts")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0755))

	stdout, err := execute(t, "generate", "--pairs", "500", "--stream", stream)
	require.NoError(t, err)
	assert.Contains(t, stdout, "events to")

	// The same stream twice forms one run.
	_, err = execute(t, "convert", stream, stream, "--out", out, "--label", "conv")
	require.NoError(t, err)

	cfg := simulate.DefaultConfig()
	cfg.Pairs = 500
	want := int64(len(simulate.Generate(cfg)))

	assert.Equal(t, 2*want, totalRows(inspectJSON(t, out)))
}

func TestGenerate_MissingOutputDir(t *testing.T) {
	_, err := execute(t, "generate", "--pairs", "10", "--out", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestGenerate_InvalidFlags(t *testing.T) {
	_, err := execute(t, "generate", "--pairs", "10", "--out", t.TempDir(), "--chunk-rows", "-1")
	assert.Error(t, err)
}

func TestGenerate_WithArchiveAndCatalog(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0755))
	dbPath := filepath.Join(dir, "manifest.db")

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
writer:
  output_dir: `+out+`
  label: archived
  max_chunk_rows: 200
  max_file_rows: 400
storage:
  type: local
  path: `+filepath.Join(dir, "archive")+`
  prefix: runs
manifest:
  path: `+dbPath+`
`), 0644))

	_, err := execute(t, "generate", "--config", configPath, "--pairs", "300")
	require.NoError(t, err)

	local, err := filepath.Glob(filepath.Join(out, "*.parquet"))
	require.NoError(t, err)
	archived, err := filepath.Glob(filepath.Join(dir, "archive", "runs", "archived", "*.parquet"))
	require.NoError(t, err)
	assert.Equal(t, len(local), len(archived))

	runs, err := execute(t, "catalog", "runs", "--manifest", dbPath)
	require.NoError(t, err)
	assert.Contains(t, runs, "archived")

	found, err := execute(t, "catalog", "find", "--manifest", dbPath, "--from", "0")
	require.NoError(t, err)
	assert.Contains(t, found, out)
}

func TestCatalog_NoManifest(t *testing.T) {
	_, err := execute(t, "catalog", "runs")
	assert.Error(t, err)
}
