package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/pkg/response"
)

// InternalHandler exposes operator endpoints. Mount it behind middleware.InternalTokenAuth.
type InternalHandler struct {
	cleanup   *CleanupService
	cfg       CleanupConfig
	responder response.Responder
}

func NewInternalHandler(cleanup *CleanupService, cfg CleanupConfig, responder response.Responder) *InternalHandler {
	return &InternalHandler{cleanup: cleanup, cfg: cfg, responder: responder}
}

func (h *InternalHandler) RegisterRoutes(internal *gin.RouterGroup) {
	internal.POST("/sessions/sweep", h.Sweep)
}

// Sweep runs one session cleanup pass synchronously.
func (h *InternalHandler) Sweep(c *gin.Context) {
	deleted, err := h.cleanup.RunOnce(c.Request.Context(), h.cfg.Retention)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
