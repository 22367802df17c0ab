package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrWorkspaceNotFound    = errors.New("workspace not found")
	ErrInvalidWorkspaceName = errors.New("workspace name cannot be empty")
	ErrNotWorkspaceMember   = errors.New("user is not a member of the workspace")
)

// WorkspaceService provides business logic for workspace operations.
type WorkspaceService struct {
	wsRepo repository.WorkspaceRepository
	now    func() time.Time
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(wsRepo repository.WorkspaceRepository) *WorkspaceService {
	return &WorkspaceService{
		wsRepo: wsRepo,
		now:    time.Now,
	}
}

// CreateWorkspace creates a new workspace and makes ownerID its owner.
func (s *WorkspaceService) CreateWorkspace(name string, ownerID uint64) (*models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidWorkspaceName
	}

	ws := &models.Workspace{Name: name}
	if err := s.wsRepo.Create(ws); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      ownerID,
		Role:        models.RoleOwner,
		JoinedAt:    s.now(),
	}
	if err := s.wsRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add owner to workspace: %w", err)
	}

	return ws, nil
}

// ListWorkspacesForUser returns the memberships of a user with their workspaces.
func (s *WorkspaceService) ListWorkspacesForUser(userID uint64) ([]models.WorkspaceMember, error) {
	memberships, err := s.wsRepo.ListMembersByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return memberships, nil
}

// Membership returns the workspace and the user's membership in it.
// A user outside the workspace gets ErrNotWorkspaceMember.
func (s *WorkspaceService) Membership(workspaceID, userID uint64) (*models.Workspace, *models.WorkspaceMember, error) {
	ws, err := s.wsRepo.FindByID(workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkspaceNotFound
		}
		return nil, nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	member, err := s.wsRepo.FindMember(workspaceID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotWorkspaceMember
		}
		return nil, nil, fmt.Errorf("failed to verify workspace membership: %w", err)
	}

	return ws, member, nil
}

// Members returns every member of a workspace.
func (s *WorkspaceService) Members(workspaceID uint64) ([]models.WorkspaceMember, error) {
	members, err := s.wsRepo.ListMembers(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace members: %w", err)
	}
	return members, nil
}
