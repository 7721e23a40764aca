package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
)

// CreateJob inserts a new job in status pending.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO extraction_jobs (
			job_id, source_url, requester_id, status,
			max_time_minutes, max_books, books_extracted, error_count,
			total_paused_seconds, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.SourceURL, job.RequesterID, job.Status,
		job.MaxTimeMinutes, job.MaxBooks, job.BooksExtracted, job.ErrorCount,
		job.TotalPausedSeconds, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("requester_id", job.RequesterID))

	return nil
}

// GetJob fetches a job by ID.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM extraction_jobs
		WHERE job_id = $1`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by requester and
// status and resumed from a cursor.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM extraction_jobs`

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", argIndex))
		args = append(args, filter.RequesterID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Cursor != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, job_id) < ($%d, $%d)", argIndex, argIndex+1))
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIndex += 2
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, job_id DESC LIMIT $%d", argIndex)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// StartJob moves a pending job to running and stamps started_at.
func (s *Storage) StartJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "start", query,
		domain.StatusRunning, jobID, domain.StatusPending)
}

// PauseJob moves a running job to paused and opens the paused interval.
func (s *Storage) PauseJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1, paused_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "pause", query,
		domain.StatusPaused, jobID, domain.StatusRunning)
}

// ResumeJob moves a paused job back to running, folding the closed paused
// interval into total_paused_seconds. The interval is floored to whole
// seconds so reported elapsed time never decreases across a resume.
func (s *Storage) ResumeJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
			total_paused_seconds = total_paused_seconds + COALESCE(FLOOR(EXTRACT(EPOCH FROM (NOW() - paused_at)))::BIGINT, 0),
			paused_at = NULL,
			updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "resume", query,
		domain.StatusRunning, jobID, domain.StatusPaused)
}

// StopJob moves a running or paused job to stopped. Stopping while paused
// closes the open paused interval first.
func (s *Storage) StopJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
			completed_at = NOW(),
			total_paused_seconds = total_paused_seconds + COALESCE(FLOOR(EXTRACT(EPOCH FROM (NOW() - paused_at)))::BIGINT, 0),
			paused_at = NULL,
			updated_at = NOW()
		WHERE job_id = $2 AND status IN ($3, $4)
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "stop", query,
		domain.StatusStopped, jobID, domain.StatusRunning, domain.StatusPaused)
}

// CompleteJob moves a running job to completed. Only the worker calls this;
// losing the guard to a concurrent pause or stop is expected and the worker
// resolves it from the returned state error.
func (s *Storage) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "complete", query,
		domain.StatusCompleted, jobID, domain.StatusRunning)
}

// FailJob moves a running job to failed.
func (s *Storage) FailJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING ` + jobColumns

	return s.transitionJob(ctx, "fail", query,
		domain.StatusFailed, jobID, domain.StatusRunning)
}

func (s *Storage) transitionJob(ctx context.Context, command, query string, args ...interface{}) (*domain.Job, error) {
	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.commandConflict(ctx, args[1].(string), command)
		}
		return nil, fmt.Errorf("failed to %s job: %w", command, err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", job.ID),
		slog.String("command", command),
		slog.String("status", string(job.Status)))

	return &job, nil
}

// commandConflict explains a guarded update that matched no row: either the
// job is gone or its current status does not permit the command.
func (s *Storage) commandConflict(ctx context.Context, jobID, command string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return &domain.InvalidStateError{JobID: jobID, Command: command, Status: job.Status}
}

// DeleteJob removes a terminal job together with its items and logs. The
// status guard sits inside the same transaction as the cascade, so a job
// observed terminal cannot lose rows and then survive.
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_items WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete extracted items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extraction_logs WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete job logs: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM extraction_jobs
		WHERE job_id = $1 AND status IN ($2, $3, $4)`,
		jobID, domain.StatusStopped, domain.StatusCompleted, domain.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if rows == 0 {
		return s.commandConflict(ctx, jobID, "delete")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Job deleted", slog.String("job_id", jobID))
	return nil
}

// IncrementBooksExtracted bumps the extraction counter and returns the new
// value. Not status-guarded: an item finished while a pause command was in
// flight still counts.
func (s *Storage) IncrementBooksExtracted(ctx context.Context, jobID string) (int, error) {
	query := `
		UPDATE extraction_jobs
		SET books_extracted = books_extracted + 1, updated_at = NOW()
		WHERE job_id = $1
		RETURNING books_extracted`

	var count int
	if err := s.db.GetContext(ctx, &count, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrJobNotFound
		}
		return 0, fmt.Errorf("failed to increment books extracted: %w", err)
	}

	return count, nil
}

// IncrementErrorCount bumps the item error counter and returns the new value.
func (s *Storage) IncrementErrorCount(ctx context.Context, jobID string) (int, error) {
	query := `
		UPDATE extraction_jobs
		SET error_count = error_count + 1, updated_at = NOW()
		WHERE job_id = $1
		RETURNING error_count`

	var count int
	if err := s.db.GetContext(ctx, &count, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrJobNotFound
		}
		return 0, fmt.Errorf("failed to increment error count: %w", err)
	}

	return count, nil
}

// RecoverInterruptedJobs marks jobs left running or paused by an unclean
// shutdown as failed. Their workers died with the process, so nobody is
// coming back for them. Returns the number of jobs swept.
func (s *Storage) RecoverInterruptedJobs(ctx context.Context) (int, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
			completed_at = NOW(),
			total_paused_seconds = total_paused_seconds + COALESCE(FLOOR(EXTRACT(EPOCH FROM (NOW() - paused_at)))::BIGINT, 0),
			paused_at = NULL,
			updated_at = NOW()
		WHERE status IN ($2, $3)
		RETURNING job_id`

	var jobIDs []string
	if err := s.db.SelectContext(ctx, &jobIDs, query,
		domain.StatusFailed, domain.StatusRunning, domain.StatusPaused); err != nil {
		return 0, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}

	for _, jobID := range jobIDs {
		entry := &domain.LogEntry{
			ID:        uuid.New().String(),
			JobID:     jobID,
			Level:     domain.LogLevelError,
			Message:   "Extraction interrupted by service restart",
			CreatedAt: time.Now().UTC(),
		}
		if err := s.InsertLog(ctx, entry); err != nil {
			s.logger.Warn("Failed to record recovery log entry",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
		}

		s.logger.Warn("Marked interrupted job as failed", slog.String("job_id", jobID))
	}

	return len(jobIDs), nil
}
