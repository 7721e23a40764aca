package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/drizaikin/extraction-be/internal/api/dto"
	"github.com/drizaikin/extraction-be/internal/extraction"
	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultLogLimit = 100
	maxLogLimit     = 500
)

// CreateJob handles POST /api/v1/jobs
// Registers a new extraction job in status pending.
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.logger.Info("CreateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.controller.CreateJob(c.Request.Context(), extraction.CreateJobInput{
		SourceURL:      req.SourceURL,
		RequesterID:    req.RequesterID,
		MaxTimeMinutes: req.MaxTimeMinutes,
		MaxBooks:       req.MaxBooks,
	})
	if err != nil {
		h.respondJobError(c, "create job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("GetJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.observer.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "get job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Info("ListJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		RequesterID: req.RequesterID,
		Status:      req.Status,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	jobs, err := h.observer.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobResponse, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobResponse(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// StartJob handles POST /api/v1/jobs/:job_id/start
// Begins extraction for a pending job
func (h *JobHandler) StartJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("StartJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.controller.StartJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "start job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// PauseJob handles POST /api/v1/jobs/:job_id/pause
// Suspends a running job without losing its position
func (h *JobHandler) PauseJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("PauseJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.controller.PauseJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "pause job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// ResumeJob handles POST /api/v1/jobs/:job_id/resume
// Continues a paused job from where it left off
func (h *JobHandler) ResumeJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("ResumeJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.controller.ResumeJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "resume job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// StopJob handles POST /api/v1/jobs/:job_id/stop
// Terminates a running or paused job, keeping everything extracted so far
func (h *JobHandler) StopJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("StopJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.controller.StopJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "stop job", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Permanently deletes a terminal job with its items and logs
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("DeleteJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if err := h.controller.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.respondJobError(c, "delete job", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetJobProgress handles GET /api/v1/jobs/:job_id/progress
// Returns the derived progress and remaining-time estimate for a job
func (h *JobHandler) GetJobProgress(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("GetJobProgress called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.observer.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, "get job progress", err)
		return
	}

	progress := domain.ComputeProgress(job, time.Now().UTC())

	c.JSON(http.StatusOK, dto.ProgressResponse{
		JobID:                     progress.JobID,
		Status:                    string(job.Status),
		BooksExtracted:            progress.BooksExtracted,
		MaxBooks:                  progress.MaxBooks,
		ElapsedSeconds:            progress.ElapsedSeconds,
		EstimatedRemainingSeconds: progress.EstimatedRemainingSeconds,
	})
}

// ListExtractedItems handles GET /api/v1/jobs/:job_id/items
// Returns everything the job has extracted, in discovery order
func (h *JobHandler) ListExtractedItems(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("ListExtractedItems called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if _, err := h.observer.GetJob(c.Request.Context(), jobID); err != nil {
		h.respondJobError(c, "list extracted items", err)
		return
	}

	items, err := h.observer.ListItems(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list extracted items", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list extracted items",
		})
		return
	}

	itemResponse := make([]dto.ExtractedItemResponse, len(items))
	for i, item := range items {
		itemResponse[i] = dto.ExtractedItemResponse{
			ItemID:    item.ID,
			JobID:     item.JobID,
			Title:     item.Title,
			Author:    item.Author,
			CoverURL:  item.CoverURL,
			Status:    string(item.Status),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.ListExtractedItemsResponse{
		JobID: jobID,
		Items: itemResponse,
	})
}

// ListJobLogs handles GET /api/v1/jobs/:job_id/logs
// Returns the job's most recent log entries, newest first
func (h *JobHandler) ListJobLogs(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("ListJobLogs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	var req dto.ListJobLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = defaultLogLimit
	}

	if req.Limit > maxLogLimit {
		req.Limit = maxLogLimit
	}

	if _, err := h.observer.GetJob(c.Request.Context(), jobID); err != nil {
		h.respondJobError(c, "list job logs", err)
		return
	}

	entries, err := h.observer.ListLogs(c.Request.Context(), jobID, req.Limit)
	if err != nil {
		h.logger.Error("Failed to list job logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list job logs",
		})
		return
	}

	logResponse := make([]dto.LogEntryResponse, len(entries))
	for i, entry := range entries {
		logResponse[i] = dto.LogEntryResponse{
			LogID:     entry.ID,
			JobID:     entry.JobID,
			Level:     string(entry.Level),
			Message:   entry.Message,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.ListJobLogsResponse{
		JobID: jobID,
		Logs:  logResponse,
	})
}

// jobIDParam validates the :job_id path parameter.
func (h *JobHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

// respondJobError maps domain errors onto HTTP statuses: validation failures
// to 400, unknown jobs to 404, illegal transitions to 409, everything else
// to 500.
func (h *JobHandler) respondJobError(c *gin.Context, action string, err error) {
	var validationErr *domain.ValidationError
	var stateErr *domain.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		h.logger.Error("Request validation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Error(),
		})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": stateErr.Error(),
		})
	default:
		h.logger.Error("Failed to "+action, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to " + action,
		})
	}
}

func toJobResponse(job *domain.Job) dto.JobResponse {
	return dto.JobResponse{
		JobID:          job.ID,
		SourceURL:      job.SourceURL,
		RequesterID:    job.RequesterID,
		Status:         string(job.Status),
		MaxTimeMinutes: job.MaxTimeMinutes,
		MaxBooks:       job.MaxBooks,
		BooksExtracted: job.BooksExtracted,
		ErrorCount:     job.ErrorCount,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		StartedAt:      formatTimePtr(job.StartedAt),
		PausedAt:       formatTimePtr(job.PausedAt),
		CompletedAt:    formatTimePtr(job.CompletedAt),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
