// Package extraction orchestrates background extraction jobs: a Controller
// validates commands and drives guarded status transitions, a Manager owns
// one worker goroutine per running job, and each Worker walks its source
// between checkpoints where control commands and budgets are honored.
package extraction

import (
	"context"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
)

// Store is the persistence surface the orchestrator drives. Implementations
// must apply status transitions as guarded conditional updates: a transition
// whose precondition no longer holds returns InvalidStateError and changes
// nothing.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	StartJob(ctx context.Context, jobID string) (*domain.Job, error)
	PauseJob(ctx context.Context, jobID string) (*domain.Job, error)
	ResumeJob(ctx context.Context, jobID string) (*domain.Job, error)
	StopJob(ctx context.Context, jobID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID string) (*domain.Job, error)
	FailJob(ctx context.Context, jobID string) (*domain.Job, error)
	DeleteJob(ctx context.Context, jobID string) error

	IncrementBooksExtracted(ctx context.Context, jobID string) (int, error)
	IncrementErrorCount(ctx context.Context, jobID string) (int, error)

	InsertItem(ctx context.Context, item *domain.ExtractedItem) error
	UpdateItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) error
	InsertLog(ctx context.Context, entry *domain.LogEntry) error
}
