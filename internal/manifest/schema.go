// Package manifest provides the SQLite catalog of closed output files.
package manifest

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

// CreateFilesTableSQL creates the core files table. One row per closed
// parquet file; time tag bounds are stored as signed integers and are NULL
// for files holding no rows.
const CreateFilesTableSQL = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    label TEXT NOT NULL,
    run_timestamp TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    object_path TEXT,
    row_count INTEGER NOT NULL,
    row_groups INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    min_channel INTEGER,
    max_channel INTEGER,
    min_time_tag INTEGER,
    max_time_tag INTEGER,
    fingerprint TEXT NOT NULL,
    closed_at INTEGER NOT NULL,
    UNIQUE (run_id, sequence)
)`

// CreateFilesIndexesSQL creates indexes for run listing and time pruning.
var CreateFilesIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id, sequence)`,

	// Time range pruning; empty files are never candidates
	`CREATE INDEX IF NOT EXISTS idx_files_time ON files(min_time_tag, max_time_tag)
		WHERE min_time_tag IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS idx_files_label ON files(label, run_timestamp)`,
}

// AllSchemaSQL returns all schema creation statements in order.
func AllSchemaSQL() []string {
	stmts := []string{CreateFilesTableSQL}
	return append(stmts, CreateFilesIndexesSQL...)
}
