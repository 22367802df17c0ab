package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/dto"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/store"
)

// OriginChecker reports whether an origin has an integration backend
type OriginChecker interface {
	Configured(origin models.Origin) bool
}

type WorkspaceHandler struct {
	workspaces *services.WorkspaceService
	registry   *store.Registry
	origins    OriginChecker
}

func NewWorkspaceHandler(workspaces *services.WorkspaceService, registry *store.Registry, origins OriginChecker) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		registry:   registry,
		origins:    origins,
	}
}

// CreateWorkspace creates a new workspace owned by the current user
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req dto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	ws, err := h.workspaces.CreateWorkspace(req.Name, userID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWorkspaceName) {
			apierrors.BadRequest(c, err.Error())
			return
		}
		apierrors.InternalError(c, "Failed to create workspace")
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkspaceDTO(*ws))
}

// ListWorkspaces returns all workspaces the user is a member of
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	memberships, err := h.workspaces.ListWorkspacesForUser(userID)
	if err != nil {
		apierrors.InternalError(c, "Failed to fetch workspaces")
		return
	}

	workspaces := make([]dto.WorkspaceWithRoleDTO, len(memberships))
	for i, m := range memberships {
		workspaces[i] = dto.ToWorkspaceWithRoleDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{
		"workspaces": workspaces,
	})
}

// GetWorkspace returns workspace details with members and integration state
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	// Workspace is already loaded by RequireWorkspaceAccess middleware
	ws, _ := middleware.GetWorkspace(c)
	member, _ := middleware.GetWorkspaceMember(c)

	members, err := h.workspaces.Members(ws.ID)
	if err != nil {
		apierrors.InternalError(c, "Failed to fetch workspace members")
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkspaceDetailDTO(ws, members, h.integrations(ws.ID), member.Role))
}

func (h *WorkspaceHandler) integrations(workspaceID uint64) []dto.IntegrationDTO {
	out := make([]dto.IntegrationDTO, 0, len(models.Origins))
	for _, origin := range models.Origins {
		out = append(out, dto.IntegrationDTO{
			Origin:     origin,
			Configured: h.origins.Configured(origin),
			Open:       h.registry.IsOpen(workspaceID, origin),
		})
	}
	return out
}
