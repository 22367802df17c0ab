// Package sources translates each origin's item representation into the
// canonical task model and performs the origin-specific remote writes.
//
// An adapter declares its capabilities up front; callers are expected to
// check them before dispatching, and adapters refuse unsupported kinds
// without performing any I/O.
package sources

import (
	"context"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

// Ack is a remote acknowledgement of a dispatched write.
type Ack struct {
	TaskID     string
	AcceptedAt time.Time
}

// ImportRequest selects the external items to mirror. ExternalIDs wins over
// Query when both are set.
type ImportRequest struct {
	ExternalIDs []string `json:"external_ids"`
	Query       string   `json:"query"`
}

// Empty reports whether the request selects nothing.
func (r ImportRequest) Empty() bool {
	return len(r.ExternalIDs) == 0 && r.Query == ""
}

// Adapter is the boundary between the synchronization store and one origin.
type Adapter interface {
	Origin() models.Origin
	Capabilities() models.CapabilitySet
	Columns() []models.Column
	DefaultStatus() models.Status

	// Fetch pulls the full collection and returns it in canonical form.
	Fetch(ctx context.Context) ([]models.Task, error)

	// Dispatch performs a remote partial update.
	Dispatch(ctx context.Context, taskID string, patch models.TaskPatch) (Ack, error)

	// Create persists a draft and returns the task as the origin assigned it.
	Create(ctx context.Context, draft models.Task) (models.Task, error)

	Delete(ctx context.Context, taskID string) error

	// Import mirrors a batch of external items and returns them in canonical form.
	Import(ctx context.Context, req ImportRequest) ([]models.Task, error)
}

// RequireCapabilities fails with a CapabilityError naming the first kind the
// adapter does not declare.
func RequireCapabilities(a Adapter, kinds ...models.Capability) error {
	if missing := a.Capabilities().Missing(kinds); len(missing) > 0 {
		return &apierrors.CapabilityError{Origin: string(a.Origin()), Kind: string(missing[0])}
	}
	return nil
}
