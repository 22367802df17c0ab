package repository

import (
	"context"

	"github.com/yukikurage/task-sync/internal/models"
)

// TaskRepository defines the interface for native task data access
type TaskRepository interface {
	// Create inserts a task together with its sub-collections
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with its sub-collections preloaded
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// List retrieves the tasks of a workspace in insertion order
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// Update saves a task and replaces its sub-collections
	Update(ctx context.Context, task *models.Task) error

	// Delete removes a task and everything it owns
	Delete(ctx context.Context, id string) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	WorkspaceID   uint64
	Origin        models.Origin
	Status        *models.Status
	SortByDueDate bool
}

// WorkspaceRepository defines the interface for workspace data access
type WorkspaceRepository interface {
	// Create creates a new workspace
	Create(ws *models.Workspace) error

	// FindByID finds a workspace by ID
	FindByID(id uint64) (*models.Workspace, error)

	// AddMember adds a member to a workspace
	AddMember(member *models.WorkspaceMember) error

	// FindMember finds a specific workspace member
	FindMember(workspaceID, userID uint64) (*models.WorkspaceMember, error)

	// ListMembers lists the members of a workspace with their users
	ListMembers(workspaceID uint64) ([]models.WorkspaceMember, error)

	// ListMembersByUserID lists all workspaces a user is a member of
	ListMembersByUserID(userID uint64) ([]models.WorkspaceMember, error)
}
