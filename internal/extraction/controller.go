package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
)

// CreateJobInput carries the caller-supplied fields for a new job. Budget
// pointers distinguish omitted from explicit values.
type CreateJobInput struct {
	SourceURL      string
	RequesterID    string
	MaxTimeMinutes *int
	MaxBooks       *int
}

// ControllerConfig holds controller dependencies.
type ControllerConfig struct {
	Logger  *slog.Logger
	Store   Store
	Manager *Manager

	// StopGracePeriod bounds how long deletion waits for a stopped job's
	// worker to drain.
	StopGracePeriod time.Duration
}

// Controller is the single command surface for jobs. Every transport (HTTP
// handlers, the queue consumer) goes through it, so validation and state
// checks live in exactly one place.
type Controller struct {
	logger    *slog.Logger
	store     Store
	manager   *Manager
	stopGrace time.Duration
}

// NewController creates a controller.
func NewController(cfg *ControllerConfig) *Controller {
	return &Controller{
		logger:    cfg.Logger,
		store:     cfg.Store,
		manager:   cfg.Manager,
		stopGrace: cfg.StopGracePeriod,
	}
}

// CreateJob validates the request and persists a new job in status pending.
// Nothing runs until StartJob.
func (c *Controller) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if err := domain.ValidateSourceURL(in.SourceURL); err != nil {
		return nil, err
	}

	if in.RequesterID == "" {
		return nil, &domain.ValidationError{Field: "requester_id", Reason: "is required"}
	}

	budgets, err := domain.ResolveBudgets(in.MaxTimeMinutes, in.MaxBooks)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:             uuid.New().String(),
		SourceURL:      in.SourceURL,
		RequesterID:    in.RequesterID,
		Status:         domain.StatusPending,
		MaxTimeMinutes: budgets.MaxTimeMinutes,
		MaxBooks:       budgets.MaxBooks,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	c.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("source_url", job.SourceURL),
		slog.String("requester_id", job.RequesterID),
		slog.Int("max_time_minutes", job.MaxTimeMinutes),
		slog.Int("max_books", job.MaxBooks))

	return job, nil
}

// StartJob moves a pending job to running and launches its worker.
func (c *Controller) StartJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.StartJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := c.manager.Launch(job); err != nil {
		c.logger.Error("Failed to launch worker",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		if _, failErr := c.store.FailJob(ctx, jobID); failErr != nil {
			c.logger.Error("Failed to settle unlaunchable job",
				slog.String("job_id", jobID),
				slog.String("error", failErr.Error()))
		}
		return nil, fmt.Errorf("failed to launch worker: %w", err)
	}

	return job, nil
}

// PauseJob moves a running job to paused and signals its worker to park.
func (c *Controller) PauseJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.PauseJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	c.manager.Signal(jobID, commandPause)
	return job, nil
}

// ResumeJob moves a paused job back to running and wakes its worker.
func (c *Controller) ResumeJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.ResumeJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	c.manager.Signal(jobID, commandResume)
	return job, nil
}

// StopJob moves a running or paused job to stopped. The status is final as
// soon as this returns; the worker acknowledges by exiting on its own time.
func (c *Controller) StopJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.StopJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	c.manager.Signal(jobID, commandStop)
	return job, nil
}

// DeleteJob removes a terminal job with everything it produced. A worker
// still draining after a stop is given the grace period to exit first, so
// the cascade cannot race a final item insert.
func (c *Controller) DeleteJob(ctx context.Context, jobID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if !domain.IsTerminal(job.Status) {
		return &domain.InvalidStateError{JobID: jobID, Command: "delete", Status: job.Status}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.stopGrace)
	defer cancel()
	if err := c.manager.WaitStopped(waitCtx, jobID); err != nil {
		return fmt.Errorf("worker for job %s has not exited: %w", jobID, err)
	}

	if err := c.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	c.logger.Info("Job deleted", slog.String("job_id", jobID))
	return nil
}
