package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/source"
)

// fakeStore is an in-memory Store mirroring the guarded transitions of the
// real one: a transition whose precondition does not hold returns
// InvalidStateError and changes nothing.
type fakeStore struct {
	mu    sync.Mutex
	jobs  map[string]*domain.Job
	items []domain.ExtractedItem
	logs  []domain.LogEntry

	insertItemErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*domain.Job)}
}

func (f *fakeStore) seed(job *domain.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
}

func (f *fakeStore) CreateJob(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.jobs[job.ID]; exists {
		return fmt.Errorf("duplicate job %s", job.ID)
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) guarded(jobID, command string, from []domain.Status, to domain.Status, mutate func(*domain.Job)) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	allowed := false
	for _, s := range from {
		if job.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &domain.InvalidStateError{JobID: jobID, Command: command, Status: job.Status}
	}

	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(job)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) StartJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "start", []domain.Status{domain.StatusPending}, domain.StatusRunning, func(job *domain.Job) {
		now := time.Now().UTC()
		job.StartedAt = &now
	})
}

func (f *fakeStore) PauseJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "pause", []domain.Status{domain.StatusRunning}, domain.StatusPaused, func(job *domain.Job) {
		now := time.Now().UTC()
		job.PausedAt = &now
	})
}

func (f *fakeStore) ResumeJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "resume", []domain.Status{domain.StatusPaused}, domain.StatusRunning, func(job *domain.Job) {
		if job.PausedAt != nil {
			job.TotalPausedSeconds += int64(time.Since(*job.PausedAt).Seconds())
			job.PausedAt = nil
		}
	})
}

func (f *fakeStore) StopJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "stop", []domain.Status{domain.StatusRunning, domain.StatusPaused}, domain.StatusStopped, func(job *domain.Job) {
		now := time.Now().UTC()
		if job.PausedAt != nil {
			job.TotalPausedSeconds += int64(now.Sub(*job.PausedAt).Seconds())
			job.PausedAt = nil
		}
		job.CompletedAt = &now
	})
}

func (f *fakeStore) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "complete", []domain.Status{domain.StatusRunning}, domain.StatusCompleted, func(job *domain.Job) {
		now := time.Now().UTC()
		job.CompletedAt = &now
	})
}

func (f *fakeStore) FailJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.guarded(jobID, "fail", []domain.Status{domain.StatusRunning}, domain.StatusFailed, func(job *domain.Job) {
		now := time.Now().UTC()
		job.CompletedAt = &now
	})
}

func (f *fakeStore) DeleteJob(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !domain.IsTerminal(job.Status) {
		return &domain.InvalidStateError{JobID: jobID, Command: "delete", Status: job.Status}
	}

	delete(f.jobs, jobID)

	kept := f.items[:0]
	for _, item := range f.items {
		if item.JobID != jobID {
			kept = append(kept, item)
		}
	}
	f.items = kept

	keptLogs := f.logs[:0]
	for _, entry := range f.logs {
		if entry.JobID != jobID {
			keptLogs = append(keptLogs, entry)
		}
	}
	f.logs = keptLogs

	return nil
}

func (f *fakeStore) IncrementBooksExtracted(ctx context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return 0, domain.ErrJobNotFound
	}
	job.BooksExtracted++
	return job.BooksExtracted, nil
}

func (f *fakeStore) IncrementErrorCount(ctx context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return 0, domain.ErrJobNotFound
	}
	job.ErrorCount++
	return job.ErrorCount, nil
}

func (f *fakeStore) InsertItem(ctx context.Context, item *domain.ExtractedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertItemErr != nil {
		return f.insertItemErr
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeStore) UpdateItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("extracted item not found: %s", itemID)
}

func (f *fakeStore) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) status(jobID string) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ""
	}
	return job.Status
}

func (f *fakeStore) books(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return 0
	}
	return job.BooksExtracted
}

func (f *fakeStore) itemsFor(jobID string) []domain.ExtractedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExtractedItem
	for _, item := range f.items {
		if item.JobID == jobID {
			out = append(out, item)
		}
	}
	return out
}

func (f *fakeStore) hasLogContaining(jobID, fragment string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.logs {
		if entry.JobID == jobID && strings.Contains(entry.Message, fragment) {
			return true
		}
	}
	return false
}

// funcCrawl scripts crawl behavior per test.
type funcCrawl struct {
	next    func(ctx context.Context) (*source.Candidate, error)
	extract func(ctx context.Context, candidate *source.Candidate) (*source.Record, error)
}

func (c *funcCrawl) Next(ctx context.Context) (*source.Candidate, error) {
	return c.next(ctx)
}

func (c *funcCrawl) Extract(ctx context.Context, candidate *source.Candidate) (*source.Record, error) {
	return c.extract(ctx, candidate)
}

func (c *funcCrawl) Close() error { return nil }

// funcSource opens a scripted crawl, or fails the open itself.
type funcSource struct {
	openErr error
	crawl   source.Crawl
}

func (s *funcSource) Open(ctx context.Context, rootURL string) (source.Crawl, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.crawl, nil
}
