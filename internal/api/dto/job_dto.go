package dto

// CreateJobRequest is the body of POST /api/v1/jobs. Budget pointers
// distinguish omitted fields from explicit values.
type CreateJobRequest struct {
	SourceURL      string `json:"source_url" binding:"required"`
	RequesterID    string `json:"requester_id" binding:"required"`
	MaxTimeMinutes *int   `json:"max_time_minutes"`
	MaxBooks       *int   `json:"max_books"`
}

// ListJobsRequest carries the query parameters of GET /api/v1/jobs.
type ListJobsRequest struct {
	RequesterID string `form:"requester_id"`
	Status      string `form:"status"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

// ListJobsResponse is one page of jobs, newest first.
type ListJobsResponse struct {
	Jobs       []JobResponse `json:"jobs"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListJobLogsRequest carries the query parameters of the job logs endpoint.
type ListJobLogsRequest struct {
	Limit int `form:"limit"`
}

// JobResponse is the API projection of a job.
type JobResponse struct {
	JobID          string `json:"job_id"`
	SourceURL      string `json:"source_url"`
	RequesterID    string `json:"requester_id"`
	Status         string `json:"status"`
	MaxTimeMinutes int    `json:"max_time_minutes"`
	MaxBooks       int    `json:"max_books"`
	BooksExtracted int    `json:"books_extracted"`
	ErrorCount     int    `json:"error_count"`
	CreatedAt      string `json:"created_at"`
	StartedAt      string `json:"started_at,omitempty"`
	PausedAt       string `json:"paused_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

// ProgressResponse is the derived progress view of a job.
type ProgressResponse struct {
	JobID                     string `json:"job_id"`
	Status                    string `json:"status"`
	BooksExtracted            int    `json:"books_extracted"`
	MaxBooks                  int    `json:"max_books"`
	ElapsedSeconds            int64  `json:"elapsed_seconds"`
	EstimatedRemainingSeconds int64  `json:"estimated_remaining_seconds"`
}

// ExtractedItemResponse is the API projection of one extracted item.
type ExtractedItemResponse struct {
	ItemID    string `json:"item_id"`
	JobID     string `json:"job_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CoverURL  string `json:"cover_url,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ListExtractedItemsResponse wraps a job's extracted items.
type ListExtractedItemsResponse struct {
	JobID string                  `json:"job_id"`
	Items []ExtractedItemResponse `json:"items"`
}

// LogEntryResponse is the API projection of one job log entry.
type LogEntryResponse struct {
	LogID     string `json:"log_id"`
	JobID     string `json:"job_id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ListJobLogsResponse wraps a job's most recent log entries.
type ListJobLogsResponse struct {
	JobID string             `json:"job_id"`
	Logs  []LogEntryResponse `json:"logs"`
}
