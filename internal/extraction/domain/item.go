package domain

import "time"

// ItemStatus tracks an extracted item through the catalog pipeline.
type ItemStatus string

const (
	ItemStatusDiscovered ItemStatus = "discovered"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
	ItemStatusPublished  ItemStatus = "published"
)

// ExtractedItem is one document pulled from a source, owned by exactly
// one job.
type ExtractedItem struct {
	ID        string     `db:"item_id"`
	JobID     string     `db:"job_id"`
	Title     string     `db:"title"`
	Author    string     `db:"author"`
	CoverURL  string     `db:"cover_url"`
	Status    ItemStatus `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
}
