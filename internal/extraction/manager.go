package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/source"
)

// command is a control message delivered to a job's worker.
type command int

const (
	commandPause command = iota
	commandResume
	commandStop
)

func (c command) String() string {
	switch c {
	case commandPause:
		return "pause"
	case commandResume:
		return "resume"
	case commandStop:
		return "stop"
	}
	return "unknown"
}

// commandBuffer bounds how many undelivered commands a worker may have.
// Commands are only issued after a guarded transition succeeded, so bursts
// beyond the pause/resume/stop alphabet cannot occur in practice.
const commandBuffer = 8

// handle tracks one live worker goroutine.
type handle struct {
	commands chan command
	done     chan struct{}
}

// ManagerConfig holds the dependencies workers are built from.
type ManagerConfig struct {
	Logger    *slog.Logger
	Store     Store
	Source    source.Source
	Publisher *Publisher

	ItemRetries    int
	RetryBackoff   time.Duration
	ErrorThreshold int
}

// Manager owns the worker goroutines for running jobs and routes control
// commands to them. Workers remove themselves from the registry when they
// exit, whatever the reason.
type Manager struct {
	logger *slog.Logger
	store  Store
	source source.Source

	publisher      itemPublisher
	itemRetries    int
	retryBackoff   time.Duration
	errorThreshold int

	baseCtx context.Context

	mu      sync.RWMutex
	workers map[string]*handle
	wg      sync.WaitGroup
}

// NewManager creates a manager whose workers run under ctx. Canceling ctx
// interrupts every worker without touching job rows; the recovery sweep at
// next startup settles whatever was in flight.
func NewManager(ctx context.Context, cfg *ManagerConfig) *Manager {
	m := &Manager{
		logger:         cfg.Logger,
		store:          cfg.Store,
		source:         cfg.Source,
		itemRetries:    cfg.ItemRetries,
		retryBackoff:   cfg.RetryBackoff,
		errorThreshold: cfg.ErrorThreshold,
		baseCtx:        ctx,
		workers:        make(map[string]*handle),
	}

	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	}

	return m
}

// Launch starts a worker goroutine for a job that just moved to running.
func (m *Manager) Launch(job *domain.Job) error {
	m.mu.Lock()
	if _, exists := m.workers[job.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("worker already active for job %s", job.ID)
	}

	h := &handle{
		commands: make(chan command, commandBuffer),
		done:     make(chan struct{}),
	}
	m.workers[job.ID] = h
	m.mu.Unlock()

	worker := &Worker{
		logger:         m.logger.With(slog.String("job_id", job.ID)),
		store:          m.store,
		source:         m.source,
		publisher:      m.publisher,
		job:            job,
		commands:       h.commands,
		itemRetries:    m.itemRetries,
		retryBackoff:   m.retryBackoff,
		errorThreshold: m.errorThreshold,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(job.ID, h)
		worker.Run(m.baseCtx)
	}()

	m.logger.Info("Worker launched", slog.String("job_id", job.ID))
	return nil
}

func (m *Manager) release(jobID string, h *handle) {
	m.mu.Lock()
	delete(m.workers, jobID)
	m.mu.Unlock()
	close(h.done)
}

// Signal delivers a control command to the job's worker. Returns false when
// no worker is live, which callers treat as already acknowledged: the row
// transition has happened and there is nobody left to object.
func (m *Manager) Signal(jobID string, cmd command) bool {
	m.mu.RLock()
	h := m.workers[jobID]
	m.mu.RUnlock()

	if h == nil {
		m.logger.Debug("No live worker for command",
			slog.String("job_id", jobID),
			slog.String("command", cmd.String()))
		return false
	}

	select {
	case h.commands <- cmd:
		return true
	default:
		m.logger.Warn("Worker command buffer full, command dropped",
			slog.String("job_id", jobID),
			slog.String("command", cmd.String()))
		return false
	}
}

// WaitStopped blocks until the job's worker goroutine has exited, or ctx
// runs out. Returns immediately when no worker is live.
func (m *Manager) WaitStopped(ctx context.Context, jobID string) error {
	m.mu.RLock()
	h := m.workers[jobID]
	m.mu.RUnlock()

	if h == nil {
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of live workers.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Shutdown waits for all workers to exit after the base context was
// canceled.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All workers stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Shutdown timed out waiting for workers",
			slog.Int("remaining", m.Active()))
		return ctx.Err()
	}
}
