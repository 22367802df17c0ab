package dto

import (
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// WorkspaceDTO represents a workspace in API responses
type WorkspaceDTO struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkspaceWithRoleDTO represents a workspace with the user's role
type WorkspaceWithRoleDTO struct {
	WorkspaceDTO
	Role models.WorkspaceRole `json:"role"`
}

// WorkspaceMemberDTO represents a member in a workspace
type WorkspaceMemberDTO struct {
	User     UserDTO              `json:"user"`
	Role     models.WorkspaceRole `json:"role"`
	JoinedAt time.Time            `json:"joined_at"`
}

// IntegrationDTO reports whether an origin's store is active in a workspace
type IntegrationDTO struct {
	Origin     models.Origin `json:"origin"`
	Configured bool          `json:"configured"`
	Open       bool          `json:"open"`
}

// WorkspaceDetailDTO represents detailed workspace information
type WorkspaceDetailDTO struct {
	WorkspaceDTO
	Members      []WorkspaceMemberDTO `json:"members"`
	Integrations []IntegrationDTO     `json:"integrations"`
	YourRole     models.WorkspaceRole `json:"your_role"`
}

// CreateWorkspaceRequest is the body of a workspace creation
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToWorkspaceDTO converts a Workspace model to WorkspaceDTO
func ToWorkspaceDTO(ws models.Workspace) WorkspaceDTO {
	return WorkspaceDTO{
		ID:        ws.ID,
		Name:      ws.Name,
		CreatedAt: ws.CreatedAt,
	}
}

// ToWorkspaceWithRoleDTO converts a membership with its preloaded workspace
func ToWorkspaceWithRoleDTO(member models.WorkspaceMember) WorkspaceWithRoleDTO {
	return WorkspaceWithRoleDTO{
		WorkspaceDTO: ToWorkspaceDTO(member.Workspace),
		Role:         member.Role,
	}
}

// ToWorkspaceDetailDTO converts a workspace with members and integrations
func ToWorkspaceDetailDTO(ws models.Workspace, members []models.WorkspaceMember, integrations []IntegrationDTO, yourRole models.WorkspaceRole) WorkspaceDetailDTO {
	memberDTOs := make([]WorkspaceMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = WorkspaceMemberDTO{
			User:     ToUserDTO(member.User),
			Role:     member.Role,
			JoinedAt: member.JoinedAt,
		}
	}

	return WorkspaceDetailDTO{
		WorkspaceDTO: ToWorkspaceDTO(ws),
		Members:      memberDTOs,
		Integrations: integrations,
		YourRole:     yourRole,
	}
}
