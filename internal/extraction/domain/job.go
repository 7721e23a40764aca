package domain

import (
	"net/url"
	"time"
)

// Status is the lifecycle state of an extraction job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Default budgets applied when a creator supplies none.
const (
	DefaultMaxTimeMinutes = 60
	DefaultMaxBooks       = 100
)

// Job is one managed, budgeted background extraction task.
type Job struct {
	ID                 string     `db:"job_id"`
	SourceURL          string     `db:"source_url"`
	RequesterID        string     `db:"requester_id"`
	Status             Status     `db:"status"`
	MaxTimeMinutes     int        `db:"max_time_minutes"`
	MaxBooks           int        `db:"max_books"`
	BooksExtracted     int        `db:"books_extracted"`
	ErrorCount         int        `db:"error_count"`
	TotalPausedSeconds int64      `db:"total_paused_seconds"`
	CreatedAt          time.Time  `db:"created_at"`
	StartedAt          *time.Time `db:"started_at"`
	PausedAt           *time.Time `db:"paused_at"`
	CompletedAt        *time.Time `db:"completed_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// validTransitions maps each status to the statuses it may move to.
// Terminal statuses map to nothing; their only exit is deletion.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning},
	StatusRunning:   {StatusPaused, StatusStopped, StatusCompleted, StatusFailed},
	StatusPaused:    {StatusRunning, StatusStopped},
	StatusStopped:   {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ValidateTransition reports whether a job may move from one status to
// another. Returns an InvalidStateError naming the current status when the
// transition is not allowed.
func ValidateTransition(jobID string, from, to Status) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidStateError{
		JobID:   jobID,
		Command: string(to),
		Status:  from,
	}
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(s Status) bool {
	switch s {
	case StatusStopped, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Budgets bounds how long and how much a job may do before auto-completing.
type Budgets struct {
	MaxTimeMinutes int
	MaxBooks       int
}

// ResolveBudgets applies the default budget for each field the creator
// omitted. A supplied non-positive value is rejected.
func ResolveBudgets(maxTimeMinutes, maxBooks *int) (Budgets, error) {
	budgets := Budgets{
		MaxTimeMinutes: DefaultMaxTimeMinutes,
		MaxBooks:       DefaultMaxBooks,
	}

	if maxTimeMinutes != nil {
		if *maxTimeMinutes <= 0 {
			return Budgets{}, &ValidationError{Field: "max_time_minutes", Reason: "must be a positive integer"}
		}
		budgets.MaxTimeMinutes = *maxTimeMinutes
	}

	if maxBooks != nil {
		if *maxBooks <= 0 {
			return Budgets{}, &ValidationError{Field: "max_books", Reason: "must be a positive integer"}
		}
		budgets.MaxBooks = *maxBooks
	}

	return budgets, nil
}

// ValidateSourceURL checks that raw is a usable crawl root.
func ValidateSourceURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "source_url", Reason: "is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: "source_url", Reason: "must be an absolute http(s) URL"}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "source_url", Reason: "must be an absolute http(s) URL"}
	}

	return nil
}
