package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/middleware"
)

// SecretsHandler manages per-user API keys (spec §3 "user_secrets",
// SPEC_FULL §12.2 API-key precondition check).
type SecretsHandler struct {
	secrets domain.UserSecrets
}

// NewSecretsHandler creates a new secrets handler.
func NewSecretsHandler(secrets domain.UserSecrets) *SecretsHandler {
	return &SecretsHandler{secrets: secrets}
}

type setSecretRequest struct {
	Service string `json:"service" binding:"required"`
	Key     string `json:"key" binding:"required"`
}

// Set stores or replaces a user's API key for a service
// (spec §6 "POST /secrets").
func (h *SecretsHandler) Set(c *gin.Context) {
	user := middleware.GetUser(c)

	var req setSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	if err := h.secrets.Set(user.ID, req.Service, req.Key); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a user's API key for a service.
func (h *SecretsHandler) Delete(c *gin.Context) {
	user := middleware.GetUser(c)
	service := c.Param("service")

	if err := h.secrets.Delete(user.ID, service); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Test reports whether the caller has a key stored for service
// (spec §6 "POST /secrets/{service}/test").
func (h *SecretsHandler) Test(c *gin.Context) {
	user := middleware.GetUser(c)
	service := c.Param("service")

	_, ok := h.secrets.Get(user.ID, service)
	c.JSON(http.StatusOK, gin.H{"service": service, "configured": ok})
}
