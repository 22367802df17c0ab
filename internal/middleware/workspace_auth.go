package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/constants"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/services"
)

// RequireWorkspaceAccess checks if the user is a member of the workspace
func RequireWorkspaceAccess(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID, err := strconv.ParseUint(c.Param("workspace_id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid workspace ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		ws, member, err := workspaces.Membership(workspaceID, userID)
		if err != nil {
			// Return 404 instead of 403 to avoid leaking workspace existence
			if errors.Is(err, services.ErrWorkspaceNotFound) || errors.Is(err, services.ErrNotWorkspaceMember) {
				apierrors.NotFound(c, "Workspace not found")
			} else {
				apierrors.InternalError(c, "Failed to verify workspace membership")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyWorkspace, *ws)
		c.Set(constants.ContextKeyWorkspaceMember, *member)
		c.Next()
	}
}

// RequireWorkspaceOwner checks if the user is an owner of the workspace
func RequireWorkspaceOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := GetWorkspaceMember(c)
		if !ok {
			apierrors.Forbidden(c, "Workspace access required")
			c.Abort()
			return
		}

		if member.Role != models.RoleOwner {
			apierrors.Forbidden(c, "Only workspace owners can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetWorkspace retrieves the workspace loaded by RequireWorkspaceAccess
func GetWorkspace(c *gin.Context) (models.Workspace, bool) {
	v, exists := c.Get(constants.ContextKeyWorkspace)
	if !exists {
		return models.Workspace{}, false
	}
	ws, ok := v.(models.Workspace)
	return ws, ok
}

// GetWorkspaceMember retrieves the membership loaded by RequireWorkspaceAccess
func GetWorkspaceMember(c *gin.Context) (models.WorkspaceMember, bool) {
	v, exists := c.Get(constants.ContextKeyWorkspaceMember)
	if !exists {
		return models.WorkspaceMember{}, false
	}
	member, ok := v.(models.WorkspaceMember)
	return member, ok
}
