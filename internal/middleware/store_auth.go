package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/constants"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/sources"
	"github.com/yukikurage/task-sync/internal/store"
)

// RequireStore resolves the store of the :origin path parameter for the
// workspace loaded by RequireWorkspaceAccess. Tracker stores must be open.
func RequireStore(stores services.StoreProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin, ok := models.ParseOrigin(c.Param("origin"))
		if !ok {
			apierrors.NotFound(c, "Unknown origin")
			c.Abort()
			return
		}

		ws, ok := GetWorkspace(c)
		if !ok {
			apierrors.Forbidden(c, "Workspace access required")
			c.Abort()
			return
		}

		s, err := stores.Store(c.Request.Context(), ws.ID, origin)
		if err != nil {
			RespondWithStoreError(c, err)
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyStore, s)
		c.Next()
	}
}

// RespondWithStoreError maps store resolution failures onto API responses
func RespondWithStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotOpen):
		apierrors.RespondWithError(c, http.StatusConflict,
			apierrors.NewAPIError(apierrors.ErrCodeIntegrationClosed, "Integration is not open"))
	case errors.Is(err, store.ErrNativeAlwaysOpen):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, sources.ErrNotConfigured):
		apierrors.NotFound(c, "Integration is not configured")
	default:
		apierrors.RespondWithSyncError(c, err)
	}
}

// GetStore retrieves the store resolved by RequireStore
func GetStore(c *gin.Context) (*store.Store, bool) {
	v, exists := c.Get(constants.ContextKeyStore)
	if !exists {
		return nil, false
	}
	s, ok := v.(*store.Store)
	return s, ok
}
