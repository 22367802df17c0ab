package sources

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
	"gorm.io/gorm"
)

var nativeCapabilities = models.NewCapabilitySet(
	models.CapUpdateStatus,
	models.CapUpdateFields,
	models.CapCreate,
	models.CapDelete,
	models.CapMutateSubtasks,
	models.CapComment,
	models.CapAttach,
)

// NativeAdapter serves the workspace's own tasks from the database.
type NativeAdapter struct {
	repo        repository.TaskRepository
	workspaceID uint64
	log         *slog.Logger
	now         func() time.Time
}

func NewNativeAdapter(repo repository.TaskRepository, workspaceID uint64, log *slog.Logger) *NativeAdapter {
	return &NativeAdapter{
		repo:        repo,
		workspaceID: workspaceID,
		log:         log.With("origin", models.OriginNative, "workspace_id", workspaceID),
		now:         time.Now,
	}
}

func (a *NativeAdapter) Origin() models.Origin              { return models.OriginNative }
func (a *NativeAdapter) Capabilities() models.CapabilitySet { return nativeCapabilities }
func (a *NativeAdapter) Columns() []models.Column           { return models.ColumnsFor(models.OriginNative) }
func (a *NativeAdapter) DefaultStatus() models.Status       { return models.StatusTodo }

func (a *NativeAdapter) Fetch(ctx context.Context) ([]models.Task, error) {
	rows, err := a.repo.List(ctx, repository.TaskFilter{WorkspaceID: a.workspaceID, Origin: models.OriginNative})
	if err != nil {
		return nil, a.fail("fetch", "", err)
	}
	tasks := make([]models.Task, len(rows))
	for i, t := range rows {
		tasks[i] = a.canonical(t)
	}
	return tasks, nil
}

func (a *NativeAdapter) Dispatch(ctx context.Context, taskID string, patch models.TaskPatch) (Ack, error) {
	if err := RequireCapabilities(a, patch.Kinds()...); err != nil {
		return Ack{}, err
	}
	current, err := a.find(ctx, taskID)
	if err != nil {
		return Ack{}, a.fail("update", taskID, err)
	}

	updated := patch.ApplyTo(*current)
	assignChildIDs(&updated, a.now())
	if err := models.Check(updated); err != nil {
		return Ack{}, &apierrors.DispatchError{
			Origin: string(models.OriginNative), Op: "update", TaskID: taskID,
			Reason: apierrors.ReasonValidation, Err: err,
		}
	}
	if err := a.repo.Update(ctx, &updated); err != nil {
		return Ack{}, a.fail("update", taskID, err)
	}
	return Ack{TaskID: taskID, AcceptedAt: updated.UpdatedAt}, nil
}

func (a *NativeAdapter) Create(ctx context.Context, draft models.Task) (models.Task, error) {
	if err := RequireCapabilities(a, models.CapCreate); err != nil {
		return models.Task{}, err
	}
	task := draft.Clone()
	task.ID = uuid.NewString()
	task.WorkspaceID = a.workspaceID
	task.Origin = models.OriginNative
	task.ExternalRef = ""
	task.SyncedAt = nil
	assignChildIDs(&task, a.now())
	task = a.canonical(task)

	if err := models.Check(task); err != nil {
		return models.Task{}, err
	}
	if err := a.repo.Create(ctx, &task); err != nil {
		return models.Task{}, a.fail("create", task.ID, err)
	}
	a.log.Info("task created", "task_id", task.ID)
	return task, nil
}

func (a *NativeAdapter) Delete(ctx context.Context, taskID string) error {
	if _, err := a.find(ctx, taskID); err != nil {
		return a.fail("delete", taskID, err)
	}
	if err := a.repo.Delete(ctx, taskID); err != nil {
		return a.fail("delete", taskID, err)
	}
	a.log.Info("task deleted", "task_id", taskID)
	return nil
}

func (a *NativeAdapter) Import(context.Context, ImportRequest) ([]models.Task, error) {
	return nil, RequireCapabilities(a, models.CapImport)
}

// find loads a task and hides tasks of other workspaces.
func (a *NativeAdapter) find(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := a.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.WorkspaceID != a.workspaceID || task.Origin != models.OriginNative {
		return nil, gorm.ErrRecordNotFound
	}
	return task, nil
}

// canonical fills the defaults a stored row may lack.
func (a *NativeAdapter) canonical(t models.Task) models.Task {
	if st, ok := models.ParseStatus(string(t.Status)); ok {
		t.Status = models.ClampStatus(models.OriginNative, st, a.DefaultStatus())
	} else {
		t.Status = a.DefaultStatus()
	}
	if !t.Priority.Valid() {
		t.Priority = models.PriorityMedium
	}
	t.Assignees = nonNil(t.Assignees)
	t.Tags = nonNil(t.Tags)
	if t.Subtasks == nil {
		t.Subtasks = []models.Subtask{}
	}
	if t.Comments == nil {
		t.Comments = []models.Comment{}
	}
	if t.Attachments == nil {
		t.Attachments = []models.Attachment{}
	}
	return t
}

func (a *NativeAdapter) fail(op, taskID string, err error) error {
	reason := apierrors.ReasonRemote
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		reason = apierrors.ReasonNotFound
	}
	return &apierrors.DispatchError{
		Origin: string(models.OriginNative),
		Op:     op,
		TaskID: taskID,
		Reason: reason,
		Err:    err,
	}
}

// assignChildIDs gives new sub-collection entries an id and comments a timestamp.
func assignChildIDs(t *models.Task, now time.Time) {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == "" {
			t.Subtasks[i].ID = uuid.NewString()
		}
	}
	for i := range t.Comments {
		if t.Comments[i].ID == "" {
			t.Comments[i].ID = uuid.NewString()
		}
		if t.Comments[i].CreatedAt.IsZero() {
			t.Comments[i].CreatedAt = now
		}
	}
	for i := range t.Attachments {
		if t.Attachments[i].ID == "" {
			t.Attachments[i].ID = uuid.NewString()
		}
	}
}
