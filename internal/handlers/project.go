package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renderowl-intel-api/internal/jobs"
	"renderowl-intel-api/internal/middleware"
)

// ProjectHandler handles Project HTTP requests (spec §6).
type ProjectHandler struct {
	orchestrator *jobs.Orchestrator
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(orchestrator *jobs.Orchestrator) *ProjectHandler {
	return &ProjectHandler{orchestrator: orchestrator}
}

type createProjectRequest struct {
	Name           string `json:"name" binding:"required"`
	SeedChannelURL string `json:"seedChannelUrl" binding:"required"`
}

// Create creates a Project and spawns its create_project Job
// (spec §6 "POST /projects").
func (h *ProjectHandler) Create(c *gin.Context) {
	user := middleware.GetUser(c)
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	project, job, err := h.orchestrator.CreateProject(c.Request.Context(), user, req.Name, req.SeedChannelURL)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": project, "job": job})
}

// Get retrieves a Project by id (spec §6 "GET /projects/{id}").
func (h *ProjectHandler) Get(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	project, err := h.orchestrator.GetProject(c.Request.Context(), user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// List lists the caller's own Projects.
func (h *ProjectHandler) List(c *gin.Context) {
	user := middleware.GetUser(c)
	projects, err := h.orchestrator.ListProjects(c.Request.Context(), user)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

// Delete deletes a Project (spec §6, §7).
func (h *ProjectHandler) Delete(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	if err := h.orchestrator.DeleteProject(c.Request.Context(), user, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PotentialCompetitors returns the project's discovered candidate
// channels by series (spec §6 "GET /projects/{id}/potential_competitors").
func (h *ProjectHandler) PotentialCompetitors(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	project, err := h.orchestrator.GetProject(c.Request.Context(), user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": project.PotentialCompetitors})
}

// Discover spawns a discover_channels Job.
func (h *ProjectHandler) Discover(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	job, err := h.orchestrator.DiscoverChannels(c.Request.Context(), user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type finalizeRequest struct {
	SelectedChannelIDs []string            `json:"selectedChannelIds" binding:"required"`
	MatchingBySeries   map[string][]string `json:"matchingBySeries,omitempty"`
}

// Finalize spawns a finalize_competitors Job
// (spec §6 "POST /projects/{id}/finalize").
func (h *ProjectHandler) Finalize(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.orchestrator.Finalize(c.Request.Context(), user, id, req.SelectedChannelIDs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Analyze spawns an analyze_competitors Job
// (spec §6 "POST /projects/{id}/analyze").
func (h *ProjectHandler) Analyze(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	job, err := h.orchestrator.AnalyzeCompetitors(c.Request.Context(), user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type prepareResourcesRequest struct {
	SeriesName string   `json:"seriesName" binding:"required"`
	ThemeName  string   `json:"themeName" binding:"required"`
	VideoIDs   []string `json:"videoIds" binding:"required"`
}

// PrepareResources spawns a prepare_resources Job
// (spec §6 "POST /projects/{id}/prepare_resources").
func (h *ProjectHandler) PrepareResources(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	var req prepareResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.orchestrator.PrepareResources(c.Request.Context(), user, id, jobs.PrepareResourcesRequest{
		SeriesName: req.SeriesName,
		ThemeName:  req.ThemeName,
		VideoIDs:   req.VideoIDs,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type generatePlotRequest struct {
	SeriesName     string `json:"seriesName" binding:"required"`
	ThemeName      string `json:"themeName" binding:"required"`
	Title          string `json:"title" binding:"required"`
	VideoLengthMin int    `json:"videoLengthMin" binding:"required"`
}

// GeneratePlot spawns a generate_plot Job (spec §6 "POST /projects/{id}/plots").
func (h *ProjectHandler) GeneratePlot(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	var req generatePlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.orchestrator.GeneratePlot(c.Request.Context(), user, id, jobs.PlotRequest{
		SeriesName:     req.SeriesName,
		ThemeName:      req.ThemeName,
		Title:          req.Title,
		VideoLengthMin: req.VideoLengthMin,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type generateThumbnailsRequest struct {
	SeriesName          string   `json:"seriesName" binding:"required"`
	ReferenceURLs       []string `json:"referenceUrls" binding:"required"`
	TrainedModelVersion string   `json:"trainedModelVersion,omitempty"`
	TriggerWord         string   `json:"triggerWord,omitempty"`
	Concepts            []string `json:"concepts" binding:"required"`
}

// GenerateThumbnails spawns a generate_thumbnails Job
// (spec §6 "POST /projects/{id}/thumbnails").
func (h *ProjectHandler) GenerateThumbnails(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	var req generateThumbnailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.orchestrator.GenerateThumbnails(c.Request.Context(), user, id, jobs.ThumbnailRequest{
		SeriesName:          req.SeriesName,
		ReferenceURLs:       req.ReferenceURLs,
		TrainedModelVersion: req.TrainedModelVersion,
		TriggerWord:         req.TriggerWord,
		Concepts:            req.Concepts,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}
