package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drizaikin/extraction-be/internal/api/dto"
	"github.com/drizaikin/extraction-be/internal/extraction"
	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/internal/extraction/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type mockController struct {
	createFn func(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error)
	startFn  func(ctx context.Context, jobID string) (*domain.Job, error)
	pauseFn  func(ctx context.Context, jobID string) (*domain.Job, error)
	resumeFn func(ctx context.Context, jobID string) (*domain.Job, error)
	stopFn   func(ctx context.Context, jobID string) (*domain.Job, error)
	deleteFn func(ctx context.Context, jobID string) error
}

func (m *mockController) CreateJob(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error) {
	return m.createFn(ctx, in)
}

func (m *mockController) StartJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.startFn(ctx, jobID)
}

func (m *mockController) PauseJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.pauseFn(ctx, jobID)
}

func (m *mockController) ResumeJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.resumeFn(ctx, jobID)
}

func (m *mockController) StopJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.stopFn(ctx, jobID)
}

func (m *mockController) DeleteJob(ctx context.Context, jobID string) error {
	return m.deleteFn(ctx, jobID)
}

type mockObserver struct {
	getFn   func(ctx context.Context, jobID string) (*domain.Job, error)
	listFn  func(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	itemsFn func(ctx context.Context, jobID string) ([]domain.ExtractedItem, error)
	logsFn  func(ctx context.Context, jobID string, limit int) ([]domain.LogEntry, error)
}

func (m *mockObserver) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.getFn(ctx, jobID)
}

func (m *mockObserver) ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	return m.listFn(ctx, filter)
}

func (m *mockObserver) ListItems(ctx context.Context, jobID string) ([]domain.ExtractedItem, error) {
	return m.itemsFn(ctx, jobID)
}

func (m *mockObserver) ListLogs(ctx context.Context, jobID string, limit int) ([]domain.LogEntry, error) {
	return m.logsFn(ctx, jobID, limit)
}

func newTestHandler(ctrl JobController, obs JobObserver) *JobHandler {
	return NewJobHandler(&Dependencies{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Controller: ctrl,
		Observer:   obs,
	})
}

func sampleJob(status domain.Status) *domain.Job {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Job{
		ID:             "7f9c2f0a-1111-4222-8333-444455556666",
		SourceURL:      "https://catalog.example.com/books",
		RequesterID:    "librarian-1",
		Status:         status,
		MaxTimeMinutes: 60,
		MaxBooks:       100,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestCreateJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createFn   func(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error)
		wantStatus int
		wantError  string
	}{
		{
			name: "success",
			body: `{"source_url":"https://catalog.example.com/books","requester_id":"librarian-1"}`,
			createFn: func(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error) {
				return sampleJob(domain.StatusPending), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed body",
			body:       `{"source_url":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "missing requester",
			body:       `{"source_url":"https://catalog.example.com/books"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name: "budget rejected",
			body: `{"source_url":"https://catalog.example.com/books","requester_id":"librarian-1","max_books":0}`,
			createFn: func(ctx context.Context, in extraction.CreateJobInput) (*domain.Job, error) {
				return nil, &domain.ValidationError{Field: "max_books", Reason: "must be a positive integer"}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "max_books must be a positive integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockController{createFn: tt.createFn}, &mockObserver{})

			r := gin.New()
			r.POST("/api/v1/jobs", h.CreateJob)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantError != "" {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantError, resp["error"])
				return
			}

			var resp dto.JobResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "pending", resp.Status)
			assert.Equal(t, 60, resp.MaxTimeMinutes)
			assert.Equal(t, 100, resp.MaxBooks)
			assert.Empty(t, resp.StartedAt)
		})
	}
}

func TestStartJob(t *testing.T) {
	jobID := sampleJob(domain.StatusPending).ID

	tests := []struct {
		name       string
		jobID      string
		startFn    func(ctx context.Context, jobID string) (*domain.Job, error)
		wantStatus int
	}{
		{
			name:  "success",
			jobID: jobID,
			startFn: func(ctx context.Context, id string) (*domain.Job, error) {
				job := sampleJob(domain.StatusRunning)
				now := time.Now().UTC()
				job.StartedAt = &now
				return job, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid uuid",
			jobID:      "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "already running",
			jobID: jobID,
			startFn: func(ctx context.Context, id string) (*domain.Job, error) {
				return nil, &domain.InvalidStateError{JobID: id, Command: "start", Status: domain.StatusRunning}
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:  "unknown job",
			jobID: uuid.New().String(),
			startFn: func(ctx context.Context, id string) (*domain.Job, error) {
				return nil, domain.ErrJobNotFound
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockController{startFn: tt.startFn}, &mockObserver{})

			r := gin.New()
			r.POST("/api/v1/jobs/:job_id/start", h.StartJob)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+tt.jobID+"/start", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var resp dto.JobResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "running", resp.Status)
				assert.NotEmpty(t, resp.StartedAt)
			}
		})
	}
}

func TestPauseJob_Conflict(t *testing.T) {
	job := sampleJob(domain.StatusPending)
	h := newTestHandler(&mockController{
		pauseFn: func(ctx context.Context, id string) (*domain.Job, error) {
			return nil, &domain.InvalidStateError{JobID: id, Command: "pause", Status: domain.StatusPending}
		},
	}, &mockObserver{})

	r := gin.New()
	r.POST("/api/v1/jobs/:job_id/pause", h.PauseJob)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+job.ID+"/pause", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "pause")
	assert.Contains(t, resp["error"], "pending")
}

func TestStopJob(t *testing.T) {
	job := sampleJob(domain.StatusRunning)
	h := newTestHandler(&mockController{
		stopFn: func(ctx context.Context, id string) (*domain.Job, error) {
			stopped := sampleJob(domain.StatusStopped)
			now := time.Now().UTC()
			stopped.CompletedAt = &now
			return stopped, nil
		},
	}, &mockObserver{})

	r := gin.New()
	r.POST("/api/v1/jobs/:job_id/stop", h.StopJob)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+job.ID+"/stop", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "stopped", resp.Status)
	assert.NotEmpty(t, resp.CompletedAt)
}

func TestDeleteJob(t *testing.T) {
	job := sampleJob(domain.StatusCompleted)

	t.Run("success returns no content", func(t *testing.T) {
		h := newTestHandler(&mockController{
			deleteFn: func(ctx context.Context, id string) error { return nil },
		}, &mockObserver{})

		r := gin.New()
		r.DELETE("/api/v1/jobs/:job_id", h.DeleteJob)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("non-terminal job conflicts", func(t *testing.T) {
		h := newTestHandler(&mockController{
			deleteFn: func(ctx context.Context, id string) error {
				return &domain.InvalidStateError{JobID: id, Command: "delete", Status: domain.StatusRunning}
			},
		}, &mockObserver{})

		r := gin.New()
		r.DELETE("/api/v1/jobs/:job_id", h.DeleteJob)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetJobProgress(t *testing.T) {
	job := sampleJob(domain.StatusRunning)
	startedAt := time.Now().UTC().Add(-130 * time.Second)
	job.StartedAt = &startedAt
	job.TotalPausedSeconds = 30
	job.BooksExtracted = 13

	h := newTestHandler(&mockController{}, &mockObserver{
		getFn: func(ctx context.Context, id string) (*domain.Job, error) {
			return job, nil
		},
	})

	r := gin.New()
	r.GET("/api/v1/jobs/:job_id/progress", h.GetJobProgress)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/progress", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 13, resp.BooksExtracted)
	assert.Equal(t, 100, resp.MaxBooks)
	assert.InDelta(t, 100, resp.ElapsedSeconds, 2)
	assert.Greater(t, resp.EstimatedRemainingSeconds, int64(0))
}

func TestListJobs(t *testing.T) {
	t.Run("full page yields next cursor", func(t *testing.T) {
		var gotFilter storage.JobFilter
		h := newTestHandler(&mockController{}, &mockObserver{
			listFn: func(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
				gotFilter = filter
				jobs := make([]domain.Job, filter.PageSize+1)
				for i := range jobs {
					job := sampleJob(domain.StatusPending)
					job.ID = uuid.New().String()
					job.CreatedAt = job.CreatedAt.Add(-time.Duration(i) * time.Minute)
					jobs[i] = *job
				}
				return jobs, nil
			},
		})

		r := gin.New()
		r.GET("/api/v1/jobs", h.ListJobs)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?page_size=2&requester_id=librarian-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "librarian-1", gotFilter.RequesterID)
		assert.Equal(t, 2, gotFilter.PageSize)

		var resp dto.ListJobsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Jobs, 2)
		require.NotEmpty(t, resp.NextCursor)

		cursor, err := DecodeJobCursor(resp.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, resp.Jobs[1].JobID, cursor.JobID)
	})

	t.Run("short page has no next cursor", func(t *testing.T) {
		h := newTestHandler(&mockController{}, &mockObserver{
			listFn: func(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
				return []domain.Job{*sampleJob(domain.StatusPending)}, nil
			},
		})

		r := gin.New()
		r.GET("/api/v1/jobs", h.ListJobs)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ListJobsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Jobs, 1)
		assert.Empty(t, resp.NextCursor)
	})

	t.Run("invalid cursor rejected", func(t *testing.T) {
		h := newTestHandler(&mockController{}, &mockObserver{})

		r := gin.New()
		r.GET("/api/v1/jobs", h.ListJobs)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?cursor=%21%21not-base64", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListExtractedItems(t *testing.T) {
	job := sampleJob(domain.StatusCompleted)

	t.Run("returns items in discovery order", func(t *testing.T) {
		h := newTestHandler(&mockController{}, &mockObserver{
			getFn: func(ctx context.Context, id string) (*domain.Job, error) {
				return job, nil
			},
			itemsFn: func(ctx context.Context, id string) ([]domain.ExtractedItem, error) {
				return []domain.ExtractedItem{
					{
						ID:        uuid.New().String(),
						JobID:     id,
						Title:     "Sample Book 1",
						Author:    "Author 1",
						Status:    domain.ItemStatusPublished,
						CreatedAt: time.Now().UTC(),
					},
					{
						ID:        uuid.New().String(),
						JobID:     id,
						Title:     "Sample Book 2",
						Author:    "Author 2",
						Status:    domain.ItemStatusCompleted,
						CreatedAt: time.Now().UTC(),
					},
				}, nil
			},
		})

		r := gin.New()
		r.GET("/api/v1/jobs/:job_id/items", h.ListExtractedItems)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/items", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ListExtractedItemsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, job.ID, resp.JobID)
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "Sample Book 1", resp.Items[0].Title)
		assert.Equal(t, "published", resp.Items[0].Status)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		h := newTestHandler(&mockController{}, &mockObserver{
			getFn: func(ctx context.Context, id string) (*domain.Job, error) {
				return nil, domain.ErrJobNotFound
			},
		})

		r := gin.New()
		r.GET("/api/v1/jobs/:job_id/items", h.ListExtractedItems)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.New().String()+"/items", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListJobLogs(t *testing.T) {
	job := sampleJob(domain.StatusRunning)

	newHandler := func(gotLimit *int) *JobHandler {
		return newTestHandler(&mockController{}, &mockObserver{
			getFn: func(ctx context.Context, id string) (*domain.Job, error) {
				return job, nil
			},
			logsFn: func(ctx context.Context, id string, limit int) ([]domain.LogEntry, error) {
				*gotLimit = limit
				return []domain.LogEntry{
					{
						ID:        uuid.New().String(),
						JobID:     id,
						Level:     domain.LogLevelInfo,
						Message:   fmt.Sprintf("Extraction started for %s", job.SourceURL),
						CreatedAt: time.Now().UTC(),
					},
				}, nil
			},
		})
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{
			name:       "default limit",
			query:      "",
			wantStatus: http.StatusOK,
			wantLimit:  100,
		},
		{
			name:       "explicit limit",
			query:      "?limit=5",
			wantStatus: http.StatusOK,
			wantLimit:  5,
		},
		{
			name:       "limit clamped",
			query:      "?limit=9999",
			wantStatus: http.StatusOK,
			wantLimit:  500,
		},
		{
			name:       "non-numeric limit rejected",
			query:      "?limit=many",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			h := newHandler(&gotLimit)

			r := gin.New()
			r.GET("/api/v1/jobs/:job_id/logs", h.ListJobLogs)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/logs"+tt.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus != http.StatusOK {
				return
			}

			assert.Equal(t, tt.wantLimit, gotLimit)

			var resp dto.ListJobLogsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Logs, 1)
			assert.Equal(t, "info", resp.Logs[0].Level)
		})
	}
}
