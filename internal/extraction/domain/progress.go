package domain

import "time"

// Progress is a derived view of a job's counters and timestamps. It is
// computed on read and never stored.
type Progress struct {
	JobID                     string
	BooksExtracted            int
	MaxBooks                  int
	ElapsedSeconds            int64
	EstimatedRemainingSeconds int64
}

// ComputeProgress derives elapsed working time and a remaining-time estimate
// from a job snapshot. Elapsed time excludes paused intervals: for a job
// paused right now the open interval is cut off at paused_at, so the value
// holds still until resume folds the interval into total_paused_seconds.
//
// The estimate is the smaller of the time left by extraction rate and the
// time left in the budget, floored at zero. Pure function; any number of
// observers may call it concurrently.
func ComputeProgress(job *Job, now time.Time) Progress {
	progress := Progress{
		JobID:          job.ID,
		BooksExtracted: job.BooksExtracted,
		MaxBooks:       job.MaxBooks,
	}

	if job.StartedAt == nil {
		return progress
	}

	end := now
	switch {
	case job.CompletedAt != nil:
		end = *job.CompletedAt
	case job.Status == StatusPaused && job.PausedAt != nil:
		end = *job.PausedAt
	}

	elapsed := int64(end.Sub(*job.StartedAt).Seconds()) - job.TotalPausedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	progress.ElapsedSeconds = elapsed

	if IsTerminal(job.Status) {
		return progress
	}

	remainingByTime := int64(job.MaxTimeMinutes)*60 - elapsed
	if remainingByTime < 0 {
		remainingByTime = 0
	}

	estimate := remainingByTime
	if job.BooksExtracted > 0 && elapsed > 0 {
		rate := float64(job.BooksExtracted) / float64(elapsed)
		remainingByCount := int64(float64(job.MaxBooks-job.BooksExtracted) / rate)
		if remainingByCount < estimate {
			estimate = remainingByCount
		}
	}
	progress.EstimatedRemainingSeconds = estimate

	return progress
}
