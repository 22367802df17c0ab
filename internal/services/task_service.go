package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yukikurage/task-sync/internal/constants"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/store"
)

var (
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
	ErrAITooManyTasks         = fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	ErrTextTooLong            = fmt.Errorf("text must be at most %d characters", constants.MaxGenerateTextLen)
)

// TaskGenerator extracts task drafts from free text
type TaskGenerator interface {
	GenerateTasksFromText(ctx context.Context, text string) ([]GeneratedTask, error)
}

// StoreProvider resolves the store of an origin within a workspace
type StoreProvider interface {
	Store(ctx context.Context, workspaceID uint64, origin models.Origin) (*store.Store, error)
}

// TaskService handles task generation into the native origin
type TaskService struct {
	stores    StoreProvider
	generator TaskGenerator
	log       *slog.Logger
	now       func() time.Time
}

// NewTaskService creates a new TaskService. generator may be nil when no AI
// backend is configured.
func NewTaskService(stores StoreProvider, generator TaskGenerator, log *slog.Logger) *TaskService {
	return &TaskService{
		stores:    stores,
		generator: generator,
		log:       log,
		now:       time.Now,
	}
}

// GenerateTasksInput represents input for generating tasks from text
type GenerateTasksInput struct {
	WorkspaceID uint64
	Text        string
}

// GenerateTasksResult lists the created tasks and how many drafts were dropped
type GenerateTasksResult struct {
	Created []models.Task
	Skipped int
}

// GenerateTasks uses AI to extract drafts from text and creates them as
// native tasks. Drafts that fail validation are skipped.
func (s *TaskService) GenerateTasks(ctx context.Context, input GenerateTasksInput) (*GenerateTasksResult, error) {
	if s.generator == nil {
		return nil, ErrAIServiceNotConfigured
	}
	if len(input.Text) > constants.MaxGenerateTextLen {
		return nil, ErrTextTooLong
	}

	aiTasks, err := s.generator.GenerateTasksFromText(ctx, input.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, ErrAITooManyTasks
	}

	native, err := s.stores.Store(ctx, input.WorkspaceID, models.OriginNative)
	if err != nil {
		return nil, fmt.Errorf("failed to open native tasks: %w", err)
	}

	result := &GenerateTasksResult{Created: make([]models.Task, 0, len(aiTasks))}
	cutoff := s.now().Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		draft, ok := toDraft(aiTask, cutoff)
		if !ok {
			result.Skipped++
			continue
		}

		created, err := native.Create(ctx, draft)
		if err != nil {
			var valErr *apierrors.ValidationError
			if errors.As(err, &valErr) {
				s.log.Warn("skipping generated task", "title", draft.Title, "error", err)
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to create generated task: %w", err)
		}
		result.Created = append(result.Created, created)
	}

	if len(result.Created) == 0 {
		return nil, ErrAINoValidTasks
	}

	s.log.Info("generated tasks", "workspace_id", input.WorkspaceID, "created", len(result.Created), "skipped", result.Skipped)
	return result, nil
}

// toDraft normalizes an AI suggestion. Past deadlines are dropped rather than
// creating tasks that are overdue on arrival.
func toDraft(g GeneratedTask, cutoff time.Time) (models.Task, bool) {
	title := strings.TrimSpace(g.Title)
	if title == "" {
		return models.Task{}, false
	}

	draft := models.Task{
		Title:       title,
		Description: strings.TrimSpace(g.Description),
		Status:      models.StatusTodo,
		Priority:    models.Priority(strings.ToLower(strings.TrimSpace(string(g.Priority)))),
	}
	if !draft.Priority.Valid() {
		draft.Priority = models.PriorityMedium
	}
	if g.EstimatedEffort > 0 {
		draft.EstimatedEffort = g.EstimatedEffort
	}
	if g.DueDate != nil && !g.DueDate.Before(cutoff) {
		due := *g.DueDate
		draft.DueDate = &due
	}
	return draft, true
}
