// Package storage persists extraction jobs, their extracted items and their
// log entries in PostgreSQL. Every status change goes through a guarded
// conditional UPDATE, so concurrent commands against the same job are
// serialized by the database and losers get a typed state error instead of
// a silent overwrite.
package storage

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	jobColumns = `job_id, source_url, requester_id, status, max_time_minutes, max_books,
		books_extracted, error_count, total_paused_seconds,
		created_at, started_at, paused_at, completed_at, updated_at`

	itemColumns = `item_id, job_id, title, author, cover_url, status, created_at`

	logColumns = `log_id, job_id, level, message, created_at`
)

// JobCursor marks a position in the created_at-descending job listing.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// JobFilter narrows and pages the job listing. The query fetches PageSize+1
// rows so the caller can detect whether another page exists.
type JobFilter struct {
	RequesterID string
	Status      string
	PageSize    int
	Cursor      *JobCursor
}

// Storage provides PostgreSQL-backed persistence for extraction jobs.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new storage instance.
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}
