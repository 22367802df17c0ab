package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/models"
)

// trackerOrigin parses the :origin parameter of an integration route
func trackerOrigin(c *gin.Context) (models.Origin, bool) {
	origin, ok := models.ParseOrigin(c.Param("origin"))
	if !ok {
		apierrors.NotFound(c, "Unknown origin")
		return "", false
	}
	if !origin.IsTracker() {
		apierrors.BadRequest(c, "Native tasks are always open")
		return "", false
	}
	return origin, true
}

// OpenIntegration activates a tracker store, loading it from the backend
func (h *WorkspaceHandler) OpenIntegration(c *gin.Context) {
	ws, _ := middleware.GetWorkspace(c)
	origin, ok := trackerOrigin(c)
	if !ok {
		return
	}

	s, err := h.registry.Open(c.Request.Context(), ws.ID, origin)
	if err != nil {
		middleware.RespondWithStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshotResponse(s))
}

// CloseIntegration stops a tracker store and discards its state
func (h *WorkspaceHandler) CloseIntegration(c *gin.Context) {
	ws, _ := middleware.GetWorkspace(c)
	origin, ok := trackerOrigin(c)
	if !ok {
		return
	}

	if err := h.registry.Close(ws.ID, origin); err != nil {
		middleware.RespondWithStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Integration closed"})
}
