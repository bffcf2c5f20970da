// Package sqlite keeps job records in a local SQLite database, for runs that
// want a queryable history without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/webcrawlerapi-go/internal/storage"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout has fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS webcrawler_jobs (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	url TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	blob_uri TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS webcrawler_jobs_job_id ON webcrawler_jobs (job_id);`

// JobStore implements storage.JobStore on SQLite.
type JobStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema. Parent
// directories are created as needed.
func Open(ctx context.Context, path string) (*JobStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &JobStore{db: db, path: path}, nil
}

// Close closes the database.
func (s *JobStore) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *JobStore) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordJob inserts one row. Record IDs must be unique.
func (s *JobStore) RecordJob(ctx context.Context, record storage.JobRecord) error {
	if record.ID == "" {
		return errors.New("record id is required")
	}
	if record.JobID == "" {
		return errors.New("job id is required")
	}
	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webcrawler_jobs (id, job_id, kind, status, url, item_count, blob_uri, content_hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.JobID,
		record.Kind,
		record.Status,
		record.URL,
		record.ItemCount,
		record.BlobURI,
		record.ContentHash,
		recordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// Records returns the rows for jobID, oldest first.
func (s *JobStore) Records(ctx context.Context, jobID string) ([]storage.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, kind, status, url, item_count, blob_uri, content_hash, recorded_at
		FROM webcrawler_jobs WHERE job_id = ? ORDER BY recorded_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job records: %w", err)
	}
	defer rows.Close()

	var out []storage.JobRecord
	for rows.Next() {
		var (
			rec        storage.JobRecord
			recordedAt string
		)
		if err := rows.Scan(
			&rec.ID, &rec.JobID, &rec.Kind, &rec.Status, &rec.URL,
			&rec.ItemCount, &rec.BlobURI, &rec.ContentHash, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		rec.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return out, nil
}
