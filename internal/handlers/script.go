package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renderowl-intel-api/internal/jobs"
	"renderowl-intel-api/internal/middleware"
)

// ScriptHandler handles Full Script generation requests
// (spec §6 "POST /projects/{id}/scripts").
type ScriptHandler struct {
	orchestrator *jobs.Orchestrator
}

// NewScriptHandler creates a new script handler.
func NewScriptHandler(orchestrator *jobs.Orchestrator) *ScriptHandler {
	return &ScriptHandler{orchestrator: orchestrator}
}

type scriptCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type generateScriptRequest struct {
	Series                string                   `json:"series" binding:"required"`
	Theme                 string                   `json:"theme" binding:"required"`
	Title                 string                   `json:"title" binding:"required"`
	DurationMin           int                      `json:"duration_min" binding:"required"`
	Characters            []scriptCharacterRequest `json:"characters,omitempty"`
	HostName              string                   `json:"host_name,omitempty"`
	SponsoredInstructions string                   `json:"sponsored_instructions,omitempty"`
}

// Create spawns a generate_script Job for a Project (spec §6).
func (h *ScriptHandler) Create(c *gin.Context) {
	user := middleware.GetUser(c)
	id := c.Param("id")

	var req generateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	characters := make([]jobs.ScriptCharacter, 0, len(req.Characters))
	for _, ch := range req.Characters {
		characters = append(characters, jobs.ScriptCharacter{Name: ch.Name, Description: ch.Description})
	}

	job, err := h.orchestrator.GenerateScript(c.Request.Context(), user, id, jobs.ScriptRequest{
		SeriesName:            req.Series,
		ThemeName:             req.Theme,
		Title:                 req.Title,
		DurationMin:           req.DurationMin,
		Characters:            characters,
		HostName:              req.HostName,
		SponsoredInstructions: req.SponsoredInstructions,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}
