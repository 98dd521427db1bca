package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/martian17/parquet-generator/internal/partition"
)

// ErrNotFound is returned when a file is not in the catalog.
var ErrNotFound = errors.New("manifest: file not found")

// ErrConflict is returned when a path is already registered by another run.
var ErrConflict = errors.New("manifest: path registered by another run")

// Catalog records closed output files.
type Catalog interface {
	// RegisterFile adds a closed file. Registering the same path twice for
	// the same run is a no-op.
	RegisterFile(ctx context.Context, info *partition.FileInfo, objectPath string) error

	// GetFile retrieves a single file by its local path.
	GetFile(ctx context.Context, path string) (*FileRecord, error)

	// ListRun returns the files of one run ordered by sequence.
	ListRun(ctx context.Context, runID string) ([]*FileRecord, error)

	// FindOverlapping returns non-empty files whose time tag range
	// intersects [minPS, maxPS].
	FindOverlapping(ctx context.Context, minPS, maxPS uint64) ([]*FileRecord, error)

	// Runs summarizes every run in the catalog, newest first.
	Runs(ctx context.Context) ([]*RunSummary, error)

	// Close closes the catalog database connection.
	Close() error
}

// FileRecord represents a file in the manifest.
type FileRecord struct {
	Path         string
	RunID        string
	Label        string
	RunTimestamp string
	Sequence     int
	ObjectPath   string
	RowCount     int64
	RowGroups    int
	SizeBytes    int64
	MinChannel   *uint16
	MaxChannel   *uint16
	MinTimeTagPS *uint64
	MaxTimeTagPS *uint64
	Fingerprint  string
	ClosedAt     time.Time
}

// RunSummary aggregates the files of one run.
type RunSummary struct {
	RunID        string
	Label        string
	RunTimestamp string
	Files        int
	Rows         int64
	SizeBytes    int64
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertStmt *sql.Stmt
}

const fileColumns = `path, run_id, label, run_timestamp, sequence, object_path,
	row_count, row_groups, size_bytes, min_channel, max_channel,
	min_time_tag, max_time_tag, fingerprint, closed_at`

// NewCatalog opens or creates the catalog at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to initialize schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO files (` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to prepare insert statement: %w", err)
	}
	catalog.insertStmt = insertStmt

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var version int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	if _, err := c.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// RegisterFile adds a closed file to the catalog.
func (c *SQLiteCatalog) RegisterFile(ctx context.Context, info *partition.FileInfo, objectPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var minCh, maxCh *int64
	if info.Stats.MinChannel != nil {
		minCh, maxCh = ptr(int64(*info.Stats.MinChannel)), ptr(int64(*info.Stats.MaxChannel))
	}
	var minTT, maxTT *int64
	if info.Stats.MinTimeTagPS != nil {
		lo, err := toInt64(*info.Stats.MinTimeTagPS)
		if err != nil {
			return err
		}
		hi, err := toInt64(*info.Stats.MaxTimeTagPS)
		if err != nil {
			return err
		}
		minTT, maxTT = &lo, &hi
	}
	var object *string
	if objectPath != "" {
		object = &objectPath
	}

	res, err := c.insertStmt.ExecContext(ctx,
		info.Path, info.RunID, info.Label, info.RunTimestamp, info.Sequence, object,
		info.Stats.RowCount, info.RowGroups, info.SizeBytes, minCh, maxCh,
		minTT, maxTT, info.Stats.Fingerprint, info.ClosedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("manifest: failed to insert file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	// The path was already present.
	var existingRun string
	if err := c.db.QueryRowContext(ctx, "SELECT run_id FROM files WHERE path = ?", info.Path).Scan(&existingRun); err != nil {
		return fmt.Errorf("manifest: failed to check existing file: %w", err)
	}
	if existingRun != info.RunID {
		return fmt.Errorf("%w: %s", ErrConflict, info.Path)
	}
	return nil
}

// GetFile retrieves a single file by path.
func (c *SQLiteCatalog) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to get file: %w", err)
	}
	return rec, nil
}

// ListRun returns the files of one run ordered by sequence.
func (c *SQLiteCatalog) ListRun(ctx context.Context, runID string) ([]*FileRecord, error) {
	return c.queryFiles(ctx, "SELECT "+fileColumns+" FROM files WHERE run_id = ? ORDER BY sequence", runID)
}

// FindOverlapping returns files whose time tag range intersects [minPS, maxPS].
func (c *SQLiteCatalog) FindOverlapping(ctx context.Context, minPS, maxPS uint64) ([]*FileRecord, error) {
	if minPS > maxPS {
		return nil, fmt.Errorf("manifest: invalid range [%d, %d]", minPS, maxPS)
	}
	lo := clampInt64(minPS)
	hi := clampInt64(maxPS)
	return c.queryFiles(ctx, `SELECT `+fileColumns+` FROM files
		WHERE min_time_tag IS NOT NULL AND min_time_tag <= ? AND max_time_tag >= ?
		ORDER BY min_time_tag, path`, hi, lo)
}

// Runs summarizes every run in the catalog, newest first.
func (c *SQLiteCatalog) Runs(ctx context.Context) ([]*RunSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, label, run_timestamp, COUNT(*), SUM(row_count), SUM(size_bytes)
		FROM files
		GROUP BY run_id, label, run_timestamp
		ORDER BY run_timestamp DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		r := &RunSummary{}
		if err := rows.Scan(&r.RunID, &r.Label, &r.RunTimestamp, &r.Files, &r.Rows, &r.SizeBytes); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the catalog database connection.
func (c *SQLiteCatalog) Close() error {
	if c.insertStmt != nil {
		c.insertStmt.Close()
	}
	return c.db.Close()
}

func (c *SQLiteCatalog) queryFiles(ctx context.Context, query string, args ...any) ([]*FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("manifest: failed to scan file: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*FileRecord, error) {
	var (
		rec           FileRecord
		object        sql.NullString
		minCh, maxCh  sql.NullInt64
		minTT, maxTT  sql.NullInt64
		closedAtNanos int64
	)
	err := s.Scan(&rec.Path, &rec.RunID, &rec.Label, &rec.RunTimestamp, &rec.Sequence, &object,
		&rec.RowCount, &rec.RowGroups, &rec.SizeBytes, &minCh, &maxCh,
		&minTT, &maxTT, &rec.Fingerprint, &closedAtNanos)
	if err != nil {
		return nil, err
	}
	rec.ObjectPath = object.String
	if minCh.Valid && maxCh.Valid {
		rec.MinChannel, rec.MaxChannel = ptr(uint16(minCh.Int64)), ptr(uint16(maxCh.Int64))
	}
	if minTT.Valid && maxTT.Valid {
		rec.MinTimeTagPS, rec.MaxTimeTagPS = ptr(uint64(minTT.Int64)), ptr(uint64(maxTT.Int64))
	}
	rec.ClosedAt = time.Unix(0, closedAtNanos).UTC()
	return &rec, nil
}

// toInt64 rejects time tags SQLite cannot store as INTEGER.
func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("manifest: time tag %d exceeds catalog range", v)
	}
	return int64(v), nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func ptr[T any](v T) *T {
	return &v
}
