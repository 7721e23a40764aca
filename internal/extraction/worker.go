package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/source"
)

// itemPublisher announces completed items downstream. A nil publisher
// disables publishing without touching the extraction flow.
type itemPublisher interface {
	PublishItem(ctx context.Context, item *domain.ExtractedItem) error
}

// Worker performs the crawl-extract loop for exactly one job. It is the only
// writer of the job's worker-owned transitions (completed, failed) and of its
// counters, items and log entries. Control commands reach it through the
// commands channel and are honored at checkpoints between items.
type Worker struct {
	logger    *slog.Logger
	store     Store
	source    source.Source
	publisher itemPublisher
	job       *domain.Job
	commands  <-chan command

	itemRetries    int
	retryBackoff   time.Duration
	errorThreshold int

	booksExtracted int
	errorCount     int
	startedAt      time.Time
	pausedTotal    time.Duration
}

// Run executes the job until it reaches a terminal status or ctx is
// canceled. Cancellation exits without a transition; the startup recovery
// sweep settles the row on the next boot.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker panic", slog.Any("panic", r))
			w.writeLog(ctx, domain.LogLevelError, fmt.Sprintf("Extraction aborted by internal error: %v", r))
			w.finalize(ctx, domain.StatusFailed)
		}
	}()

	w.booksExtracted = w.job.BooksExtracted
	w.errorCount = w.job.ErrorCount
	w.pausedTotal = time.Duration(w.job.TotalPausedSeconds) * time.Second
	if w.job.StartedAt != nil {
		w.startedAt = *w.job.StartedAt
	} else {
		w.startedAt = time.Now()
	}

	w.logger.Info("Worker started",
		slog.String("source_url", w.job.SourceURL),
		slog.Int("max_books", w.job.MaxBooks),
		slog.Int("max_time_minutes", w.job.MaxTimeMinutes))
	w.writeLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Extraction started for %s", w.job.SourceURL))

	crawl, err := w.source.Open(ctx, w.job.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			w.logger.Info("Worker interrupted by shutdown")
			return
		}
		w.writeLog(ctx, domain.LogLevelError, fmt.Sprintf("Cannot open source: %v", err))
		w.finalize(ctx, domain.StatusFailed)
		return
	}
	defer crawl.Close()

	for {
		if !w.drainCommands(ctx) {
			return
		}

		if reached, reason := w.budgetReached(); reached {
			w.writeLog(ctx, domain.LogLevelInfo, "Extraction complete: "+reason)
			w.finalize(ctx, domain.StatusCompleted)
			return
		}

		candidate, err := crawl.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrExhausted) {
				w.writeLog(ctx, domain.LogLevelInfo, "Extraction complete: source exhausted")
				w.finalize(ctx, domain.StatusCompleted)
				return
			}
			if ctx.Err() != nil {
				w.logger.Info("Worker interrupted by shutdown")
				return
			}
			w.writeLog(ctx, domain.LogLevelError, fmt.Sprintf("Crawl cannot continue: %v", err))
			w.finalize(ctx, domain.StatusFailed)
			return
		}

		if !w.processCandidate(ctx, crawl, candidate) {
			return
		}
	}
}

// drainCommands applies every queued command. Returns false when the worker
// must exit: a stop was received or the context is gone. A pause blocks
// inside awaitResume until the matching resume or stop arrives.
func (w *Worker) drainCommands(ctx context.Context) bool {
	for {
		select {
		case cmd := <-w.commands:
			switch cmd {
			case commandStop:
				w.acknowledgeStop(ctx)
				return false
			case commandPause:
				if !w.awaitResume(ctx) {
					return false
				}
			case commandResume:
				// stale resume from an already finished pause cycle
			}
		case <-ctx.Done():
			w.logger.Info("Worker interrupted by shutdown")
			return false
		default:
			return true
		}
	}
}

// awaitResume parks the worker while its job is paused. Returns true on
// resume, false when a stop or shutdown ends the job instead.
func (w *Worker) awaitResume(ctx context.Context) bool {
	pausedAt := time.Now()
	defer func() {
		w.pausedTotal += time.Since(pausedAt)
	}()

	w.logger.Info("Worker paused")
	w.writeLog(ctx, domain.LogLevelInfo, "Extraction paused")

	for {
		select {
		case cmd := <-w.commands:
			switch cmd {
			case commandResume:
				w.logger.Info("Worker resumed")
				w.writeLog(ctx, domain.LogLevelInfo, "Extraction resumed")
				return true
			case commandStop:
				w.acknowledgeStop(ctx)
				return false
			case commandPause:
				// already paused
			}
		case <-ctx.Done():
			w.logger.Info("Worker interrupted by shutdown")
			return false
		}
	}
}

// acknowledgeStop records the stop. The status row was already moved to
// stopped by the controller before the command was sent; exiting the
// goroutine is the acknowledgment.
func (w *Worker) acknowledgeStop(ctx context.Context) {
	w.writeLog(ctx, domain.LogLevelInfo, "Extraction stopped by request")
	w.logger.Info("Worker stopped",
		slog.Int("books_extracted", w.booksExtracted))
}

// budgetReached checks both budgets against local state. Elapsed time
// excludes completed pause intervals, mirroring what observers compute from
// the row.
func (w *Worker) budgetReached() (bool, string) {
	if w.booksExtracted >= w.job.MaxBooks {
		return true, fmt.Sprintf("book budget reached (%d books)", w.booksExtracted)
	}

	elapsed := time.Since(w.startedAt) - w.pausedTotal
	if elapsed >= time.Duration(w.job.MaxTimeMinutes)*time.Minute {
		return true, fmt.Sprintf("time budget reached after %s", elapsed.Round(time.Second))
	}

	return false, ""
}

// processCandidate extracts one candidate and records the outcome. Returns
// false when the job reached a terminal status and the worker must exit.
func (w *Worker) processCandidate(ctx context.Context, crawl source.Crawl, candidate *source.Candidate) bool {
	record, err := w.extractWithRetry(ctx, crawl, candidate)
	if err != nil {
		if ctx.Err() != nil {
			w.logger.Info("Worker interrupted by shutdown")
			return false
		}

		var fatal *domain.FatalJobError
		if errors.As(err, &fatal) {
			w.writeLog(ctx, domain.LogLevelError, fmt.Sprintf("Extraction cannot continue: %v", err))
			w.finalize(ctx, domain.StatusFailed)
			return false
		}

		return w.recordItemFailure(ctx, fmt.Sprintf("Failed to extract %s: %v", candidate.URL, err))
	}

	item := &domain.ExtractedItem{
		ID:        uuid.New().String(),
		JobID:     w.job.ID,
		Title:     record.Title,
		Author:    record.Author,
		CoverURL:  record.CoverURL,
		Status:    domain.ItemStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.store.InsertItem(ctx, item); err != nil {
		return w.recordItemFailure(ctx, fmt.Sprintf("Failed to persist %q: %v", record.Title, err))
	}

	count, err := w.store.IncrementBooksExtracted(ctx, w.job.ID)
	if err != nil {
		w.logger.Error("Failed to increment books counter", slog.String("error", err.Error()))
	} else {
		w.booksExtracted = count
	}

	w.writeLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Extracted %q by %s", record.Title, record.Author))
	w.publish(ctx, item)

	return true
}

// recordItemFailure counts one lost item against the job. Returns false when
// the error threshold is reached and the job was failed.
func (w *Worker) recordItemFailure(ctx context.Context, message string) bool {
	w.writeLog(ctx, domain.LogLevelError, message)

	count, err := w.store.IncrementErrorCount(ctx, w.job.ID)
	if err != nil {
		w.logger.Error("Failed to increment error count", slog.String("error", err.Error()))
		return true
	}
	w.errorCount = count

	if w.errorThreshold > 0 && w.errorCount >= w.errorThreshold {
		w.writeLog(ctx, domain.LogLevelError,
			fmt.Sprintf("Giving up after %d item errors", w.errorCount))
		w.finalize(ctx, domain.StatusFailed)
		return false
	}

	return true
}

// extractWithRetry pulls the candidate's record, retrying transient failures
// with exponential backoff. Fatal and context errors pass through untouched;
// the last transient error is returned once retries are exhausted.
func (w *Worker) extractWithRetry(ctx context.Context, crawl source.Crawl, candidate *source.Candidate) (*source.Record, error) {
	var lastErr error

	for attempt := 0; attempt <= w.itemRetries; attempt++ {
		record, err := crawl.Extract(ctx, candidate)
		if err == nil {
			return record, nil
		}
		lastErr = err

		var transient *domain.TransientItemError
		if !errors.As(err, &transient) {
			return nil, err
		}

		if attempt < w.itemRetries {
			backoff := time.Duration(float64(w.retryBackoff) * float64(uint(1)<<uint(attempt)))
			w.logger.Warn("Retrying item after transient error",
				slog.String("url", candidate.URL),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

// finalize drives the job to a worker-owned terminal status. Losing the
// guarded update to a concurrent pause parks the worker until resume, then
// tries again; losing to a stop or another terminal transition means the job
// is settled and the worker just exits.
func (w *Worker) finalize(ctx context.Context, target domain.Status) {
	transition := w.store.CompleteJob
	if target == domain.StatusFailed {
		transition = w.store.FailJob
	}

	for {
		_, err := transition(ctx, w.job.ID)
		if err == nil {
			w.logger.Info("Job finished",
				slog.String("status", string(target)),
				slog.Int("books_extracted", w.booksExtracted),
				slog.Int("error_count", w.errorCount))
			return
		}

		var stateErr *domain.InvalidStateError
		switch {
		case errors.As(err, &stateErr) && stateErr.Status == domain.StatusPaused:
			if !w.awaitResume(ctx) {
				return
			}
		case errors.As(err, &stateErr):
			w.logger.Info("Job already settled", slog.String("status", string(stateErr.Status)))
			return
		case errors.Is(err, domain.ErrJobNotFound):
			return
		default:
			w.logger.Error("Failed to finalize job",
				slog.String("target", string(target)),
				slog.String("error", err.Error()))
			return
		}
	}
}

// publish hands a completed item to the catalog pipeline and advances its
// status. Publish failures are logged and left for a later reconciliation;
// they never fail the item or the job.
func (w *Worker) publish(ctx context.Context, item *domain.ExtractedItem) {
	if w.publisher == nil {
		return
	}

	if err := w.publisher.PublishItem(ctx, item); err != nil {
		w.logger.Warn("Failed to publish extracted item",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()))
		return
	}

	if err := w.store.UpdateItemStatus(ctx, item.ID, domain.ItemStatusPublished); err != nil {
		w.logger.Warn("Failed to mark item published",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()))
	}
}

// writeLog appends an entry to the job's log and mirrors it to the service
// log.
func (w *Worker) writeLog(ctx context.Context, level domain.LogLevel, message string) {
	entry := &domain.LogEntry{
		ID:        uuid.New().String(),
		JobID:     w.job.ID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.store.InsertLog(ctx, entry); err != nil {
		w.logger.Warn("Failed to write job log entry", slog.String("error", err.Error()))
	}

	switch level {
	case domain.LogLevelError:
		w.logger.Error(message)
	case domain.LogLevelWarning:
		w.logger.Warn(message)
	default:
		w.logger.Info(message)
	}
}
