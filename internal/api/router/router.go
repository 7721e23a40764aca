package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drizaikin/extraction-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":  "healthy",
			"service": "extraction-service",
		}

		if deps.ActiveJobs != nil {
			health["active_jobs"] = deps.ActiveJobs()
		}

		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				health["status"] = "degraded"
				health["database"] = "down"
			} else {
				health["database"] = "up"
			}
		}

		if deps.RabbitClient != nil {
			if deps.RabbitClient.IsConnected() {
				health["rabbitmq"] = "up"
			} else {
				health["status"] = "degraded"
				health["rabbitmq"] = "down"
			}
		}

		c.JSON(http.StatusOK, health)
	})

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new extraction job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/start - Begin extraction
			jobs.POST("/:job_id/start", jobHandler.StartJob)

			// POST /api/v1/jobs/:job_id/pause - Suspend a running job
			jobs.POST("/:job_id/pause", jobHandler.PauseJob)

			// POST /api/v1/jobs/:job_id/resume - Continue a paused job
			jobs.POST("/:job_id/resume", jobHandler.ResumeJob)

			// POST /api/v1/jobs/:job_id/stop - Terminate a job, keeping results
			jobs.POST("/:job_id/stop", jobHandler.StopJob)

			// DELETE /api/v1/jobs/:job_id - Delete a terminal job
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)

			// GET /api/v1/jobs/:job_id/progress - Progress and time estimate
			jobs.GET("/:job_id/progress", jobHandler.GetJobProgress)

			// GET /api/v1/jobs/:job_id/items - Extracted items
			jobs.GET("/:job_id/items", jobHandler.ListExtractedItems)

			// GET /api/v1/jobs/:job_id/logs - Recent job log entries
			jobs.GET("/:job_id/logs", jobHandler.ListJobLogs)
		}
	}

	return r
}
