package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beneyalraj/listing/internal/dedup"
	"github.com/beneyalraj/listing/internal/model"
)

// PostgresStore keeps crawled jobs in a PostgreSQL database. It is the store
// to pick when several crawler instances share one backing database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database named by dsn and ensures the jobs
// table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS jobs (
		job_id      TEXT PRIMARY KEY,
		provider    TEXT NOT NULL,
		company     TEXT NOT NULL,
		title       TEXT NOT NULL,
		location    TEXT,
		level       TEXT,
		description TEXT,
		posted_at   TIMESTAMPTZ,
		created_at  TIMESTAMPTZ DEFAULT now()
	)`
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// LoadIndex reads every stored job's ID and company/title pair into an
// in-memory deduplication index.
func (s *PostgresStore) LoadIndex(ctx context.Context) (*model.DedupIndex, error) {
	rows, err := s.pool.Query(ctx, "SELECT job_id, company, title FROM jobs")
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

// SaveJobs writes jobs in a single transaction, skipping IDs that already
// exist.
func (s *PostgresStore) SaveJobs(ctx context.Context, jobs []model.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, job := range jobs {
		if _, err := tx.Exec(ctx, `INSERT INTO jobs
			(job_id, provider, company, title, location, level, description, posted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (job_id) DO NOTHING`,
			job.SourceID, job.Provider, job.Company, job.Title,
			job.Location, job.Level, job.Description, job.PostedAt,
		); err != nil {
			return fmt.Errorf("inserting job %s: %w", job.SourceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing save transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
