package domain

import "time"

// LogLevel classifies a job log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogEntry is one immutable, timestamped event recorded by a job's worker.
type LogEntry struct {
	ID        string    `db:"log_id"`
	JobID     string    `db:"job_id"`
	Level     LogLevel  `db:"level"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}
