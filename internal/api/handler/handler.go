package handler

import (
	"context"
	"log/slog"

	"github.com/drizaikin/extraction-be/internal/extraction"
	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/storage"
	"github.com/drizaikin/extraction-be/shared/postgresql"
	"github.com/drizaikin/extraction-be/shared/rabbitmq"
)

// JobController is the command surface handlers drive. Satisfied by
// *extraction.Controller.
type JobController interface {
	CreateJob(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error)
	StartJob(ctx context.Context, jobID string) (*domain.Job, error)
	PauseJob(ctx context.Context, jobID string) (*domain.Job, error)
	ResumeJob(ctx context.Context, jobID string) (*domain.Job, error)
	StopJob(ctx context.Context, jobID string) (*domain.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// JobObserver is the read surface behind the observation endpoints.
// Satisfied by *storage.Storage.
type JobObserver interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	ListItems(ctx context.Context, jobID string) ([]domain.ExtractedItem, error)
	ListLogs(ctx context.Context, jobID string, limit int) ([]domain.LogEntry, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Controller   JobController
	Observer     JobObserver
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client

	// ActiveJobs reports the number of live workers for the health view.
	ActiveJobs func() int
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	controller JobController
	observer   JobObserver
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		controller: deps.Controller,
		observer:   deps.Observer,
	}
}
