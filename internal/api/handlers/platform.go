package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundledger/stream-ingest-iq/internal/api/response"
	"github.com/soundledger/stream-ingest-iq/internal/repository"
)

// PlatformHandler handles platform listing endpoints.
type PlatformHandler struct {
	platformRepo *repository.PlatformRepository
}

// NewPlatformHandler creates a new platform handler.
func NewPlatformHandler(platformRepo *repository.PlatformRepository) *PlatformHandler {
	return &PlatformHandler{platformRepo: platformRepo}
}

// HandleList handles GET /api/v1/platforms.
func (h *PlatformHandler) HandleList(c *gin.Context) {
	platforms, err := h.platformRepo.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to list platforms")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"platforms": platforms})
}
