// Package index records processed files and caches chunk completions in a
// local SQLite database under the state directory.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a stem has no recorded run.
var ErrNotFound = errors.New("not found")

// FileRecord describes the latest processing of one log file.
type FileRecord struct {
	Stem          string
	SourcePath    string
	SourceSHA256  string
	OutputPath    string
	Chunks        int
	EmptyChunks   int
	BytesIn       int64
	BytesFiltered int64
	RunID         string
	ProcessedAt   time.Time
}

// Store is the run index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the index at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// Workers share one connection; sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS files (
			stem TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			source_sha256 TEXT NOT NULL DEFAULT '',
			output_path TEXT NOT NULL DEFAULT '',
			chunks INTEGER NOT NULL DEFAULT 0,
			empty_chunks INTEGER NOT NULL DEFAULT 0,
			bytes_in INTEGER NOT NULL DEFAULT 0,
			bytes_filtered INTEGER NOT NULL DEFAULT 0,
			run_id TEXT NOT NULL DEFAULT '',
			processed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completions (
			key TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_run_id ON files(run_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordFile inserts or replaces the record for rec.Stem.
func (s *Store) RecordFile(ctx context.Context, rec FileRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (stem, source_path, source_sha256, output_path, chunks, empty_chunks,
		                    bytes_in, bytes_filtered, run_id, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(stem) DO UPDATE SET
		   source_path = excluded.source_path,
		   source_sha256 = excluded.source_sha256,
		   output_path = excluded.output_path,
		   chunks = excluded.chunks,
		   empty_chunks = excluded.empty_chunks,
		   bytes_in = excluded.bytes_in,
		   bytes_filtered = excluded.bytes_filtered,
		   run_id = excluded.run_id,
		   processed_at = excluded.processed_at`,
		rec.Stem, rec.SourcePath, rec.SourceSHA256, rec.OutputPath, rec.Chunks, rec.EmptyChunks,
		rec.BytesIn, rec.BytesFiltered, rec.RunID, rec.ProcessedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.Stem, err)
	}
	return nil
}

const fileColumns = `stem, source_path, source_sha256, output_path, chunks, empty_chunks,
	bytes_in, bytes_filtered, run_id, processed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (FileRecord, error) {
	var (
		rec FileRecord
		at  string
	)
	err := row.Scan(&rec.Stem, &rec.SourcePath, &rec.SourceSHA256, &rec.OutputPath, &rec.Chunks,
		&rec.EmptyChunks, &rec.BytesIn, &rec.BytesFiltered, &rec.RunID, &at)
	if err != nil {
		return rec, err
	}
	rec.ProcessedAt, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return rec, fmt.Errorf("parse processed_at for %s: %w", rec.Stem, err)
	}
	return rec, nil
}

// File returns the record for stem, or ErrNotFound.
func (s *Store) File(ctx context.Context, stem string) (FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE stem = ?`, stem)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, ErrNotFound
	}
	return rec, err
}

// Files returns every record ordered by stem.
func (s *Store) Files(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY stem`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CachedCompletion looks up a stored completion by key.
func (s *Store) CachedCompletion(ctx context.Context, key string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM completions WHERE key = ?`, key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// StoreCompletion saves a completion under key.
func (s *Store) StoreCompletion(ctx context.Context, key, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completions (key, text, created_at) VALUES (?, ?, ?)`,
		key, text, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// CompletionCount returns the number of cached completions.
func (s *Store) CompletionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completions`).Scan(&n)
	return n, err
}
