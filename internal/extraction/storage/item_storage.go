package storage

import (
	"context"
	"fmt"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
)

// InsertItem records one extracted item.
func (s *Storage) InsertItem(ctx context.Context, item *domain.ExtractedItem) error {
	query := `
		INSERT INTO extracted_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.JobID, item.Title, item.Author, item.CoverURL,
		item.Status, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert extracted item: %w", err)
	}

	return nil
}

// UpdateItemStatus moves an item along the catalog pipeline.
func (s *Storage) UpdateItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) error {
	query := `
		UPDATE extracted_items
		SET status = $1
		WHERE item_id = $2`

	result, err := s.db.ExecContext(ctx, query, status, itemID)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("extracted item not found: %s", itemID)
	}

	return nil
}

// ListItems returns a job's extracted items in discovery order.
func (s *Storage) ListItems(ctx context.Context, jobID string) ([]domain.ExtractedItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM extracted_items
		WHERE job_id = $1
		ORDER BY created_at ASC, item_id ASC`

	var items []domain.ExtractedItem
	if err := s.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list extracted items: %w", err)
	}

	return items, nil
}

// InsertLog records one job log entry.
func (s *Storage) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	query := `
		INSERT INTO extraction_logs (` + logColumns + `)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.JobID, entry.Level, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	return nil
}

// ListLogs returns a job's most recent log entries, newest first.
func (s *Storage) ListLogs(ctx context.Context, jobID string, limit int) ([]domain.LogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM extraction_logs
		WHERE job_id = $1
		ORDER BY created_at DESC, log_id DESC
		LIMIT $2`

	var entries []domain.LogEntry
	if err := s.db.SelectContext(ctx, &entries, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}

	return entries, nil
}
