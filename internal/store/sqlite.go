// Package store persists crawled jobs and serves the deduplication index.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/beneyalraj/listing/internal/dedup"
	"github.com/beneyalraj/listing/internal/model"
)

// SQLiteStore keeps crawled jobs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// jobs table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS jobs (
		job_id      TEXT PRIMARY KEY,
		provider    TEXT NOT NULL,
		company     TEXT NOT NULL,
		title       TEXT NOT NULL,
		location    TEXT,
		level       TEXT,
		description TEXT,
		posted_at   DATETIME,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// LoadIndex reads every stored job's ID and company/title pair into an
// in-memory deduplication index.
func (s *SQLiteStore) LoadIndex(ctx context.Context) (*model.DedupIndex, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT job_id, company, title FROM jobs")
	if err != nil {
		return nil, fmt.Errorf("loading dedup index: %w", err)
	}
	defer rows.Close()

	index := model.NewDedupIndex()
	for rows.Next() {
		var id, company, title string
		if err := rows.Scan(&id, &company, &title); err != nil {
			return nil, fmt.Errorf("scanning dedup row: %w", err)
		}
		index.IDs[id] = struct{}{}
		if pair, ok := dedup.NormalizePair(company, title); ok {
			index.Pairs[pair] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dedup rows: %w", err)
	}
	return index, nil
}

// SaveJobs writes jobs in a single transaction. A job whose ID already exists
// is skipped silently, so concurrent passes over overlapping queries are safe.
func (s *SQLiteStore) SaveJobs(ctx context.Context, jobs []model.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO jobs
		(job_id, provider, company, title, location, level, description, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		var postedAt any
		if job.PostedAt != nil {
			postedAt = *job.PostedAt
		}
		if _, err := stmt.ExecContext(ctx,
			job.SourceID, job.Provider, job.Company, job.Title,
			job.Location, job.Level, job.Description, postedAt,
		); err != nil {
			return fmt.Errorf("inserting job %s: %w", job.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save transaction: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
