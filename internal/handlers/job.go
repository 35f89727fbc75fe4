package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/jobs"
	"renderowl-intel-api/internal/middleware"
)

// JobHandler handles Job HTTP requests (spec §5 "Polling a Job",
// "Cancelling a Job").
type JobHandler struct {
	orchestrator *jobs.Orchestrator
	repo         domain.JobRepository
}

// NewJobHandler creates a new job handler.
func NewJobHandler(orchestrator *jobs.Orchestrator, repo domain.JobRepository) *JobHandler {
	return &JobHandler{orchestrator: orchestrator, repo: repo}
}

// Get retrieves a Job by id (spec §6 "GET /jobs/{id}").
func (h *JobHandler) Get(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	job, err := h.repo.Get(id)
	if err != nil {
		c.Error(err)
		return
	}
	if job.UserID != user.ID {
		c.Error(domain.NotFoundf("job %q not found", id))
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel cancels a running Job (spec §6 "POST /jobs/{id}/cancel").
func (h *JobHandler) Cancel(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	if err := h.orchestrator.Cancel(c.Request.Context(), user, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
