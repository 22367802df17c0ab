package dto

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Status          models.Status       `json:"status"`
	Priority        models.Priority     `json:"priority"`
	StartDate       *time.Time          `json:"start_date"`
	DueDate         *time.Time          `json:"due_date"`
	EstimatedEffort float64             `json:"estimated_effort"`
	Assignees       []string            `json:"assignees"`
	Tags            []string            `json:"tags"`
	Project         string              `json:"project,omitempty"`
	Origin          models.Origin       `json:"origin"`
	ExternalRef     string              `json:"external_ref,omitempty"`
	SyncedAt        *time.Time          `json:"synced_at,omitempty"`
	Subtasks        []models.Subtask    `json:"subtasks"`
	Comments        []models.Comment    `json:"comments"`
	Attachments     []models.Attachment `json:"attachments"`
	CreatedAt       *time.Time          `json:"created_at,omitempty"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`
}

// SnapshotResponse is the full collection of one origin at a version
type SnapshotResponse struct {
	Origin       models.Origin       `json:"origin"`
	Version      uint64              `json:"version"`
	Capabilities []models.Capability `json:"capabilities"`
	Columns      []models.Column     `json:"columns"`
	Tasks        []TaskDTO           `json:"tasks"`
}

// MutationResponse carries the optimistic task and the dispatch outcome
type MutationResponse struct {
	Task     TaskDTO `json:"task"`
	Version  uint64  `json:"version"`
	Dispatch string  `json:"dispatch"`
	Error    string  `json:"error,omitempty"`
}

// Dispatch outcomes reported by MutationResponse
const (
	DispatchPending   = "pending"
	DispatchConfirmed = "confirmed"
	DispatchFailed    = "failed"
)

// Conversion functions

// ToTaskDTO converts a canonical task to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:              task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		Priority:        task.Priority,
		StartDate:       task.StartDate,
		DueDate:         task.DueDate,
		EstimatedEffort: task.EstimatedEffort,
		Assignees:       nonNil(task.Assignees),
		Tags:            nonNil(task.Tags),
		Project:         task.Project,
		Origin:          task.Origin,
		ExternalRef:     task.ExternalRef,
		SyncedAt:        task.SyncedAt,
		Subtasks:        nonNil(task.Subtasks),
		Comments:        nonNil(task.Comments),
		Attachments:     nonNil(task.Attachments),
	}

	// Tracker tasks carry no local timestamps
	if !task.CreatedAt.IsZero() {
		createdAt := task.CreatedAt
		dto.CreatedAt = &createdAt
	}
	if !task.UpdatedAt.IsZero() {
		updatedAt := task.UpdatedAt
		dto.UpdatedAt = &updatedAt
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = ToTaskDTO(t)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Requests

// CreateTaskRequest is the body of a task creation
type CreateTaskRequest struct {
	Title           string              `json:"title" binding:"required"`
	Description     string              `json:"description"`
	Status          string              `json:"status"`
	Priority        models.Priority     `json:"priority"`
	StartDate       *time.Time          `json:"start_date"`
	DueDate         *time.Time          `json:"due_date"`
	EstimatedEffort float64             `json:"estimated_effort"`
	Assignees       []string            `json:"assignees"`
	Tags            []string            `json:"tags"`
	Project         string              `json:"project"`
	Subtasks        []models.Subtask    `json:"subtasks"`
	Attachments     []models.Attachment `json:"attachments"`
}

// ToDraft converts the request into a task draft. An unrecognized status is
// kept verbatim so that validation reports it.
func (r CreateTaskRequest) ToDraft() models.Task {
	draft := models.Task{
		Title:           strings.TrimSpace(r.Title),
		Description:     r.Description,
		Priority:        r.Priority,
		StartDate:       r.StartDate,
		DueDate:         r.DueDate,
		EstimatedEffort: r.EstimatedEffort,
		Assignees:       r.Assignees,
		Tags:            r.Tags,
		Project:         r.Project,
		Subtasks:        r.Subtasks,
		Attachments:     r.Attachments,
	}
	if r.Status != "" {
		if st, ok := models.ParseStatus(r.Status); ok {
			draft.Status = st
		} else {
			draft.Status = models.Status(r.Status)
		}
	}
	return draft
}

// MoveTaskRequest moves a task to another board column
type MoveTaskRequest struct {
	Status string `json:"status" binding:"required"`
}

// BulkUpdateRequest applies one patch to many tasks
type BulkUpdateRequest struct {
	TaskIDs []string       `json:"task_ids" binding:"required,min=1"`
	Patch   map[string]any `json:"patch" binding:"required"`
}

// ImportTasksRequest selects tracker items to mirror
type ImportTasksRequest struct {
	ExternalIDs []string `json:"external_ids"`
	Query       string   `json:"query"`
}

// GenerateTasksRequest asks for task drafts extracted from free text
type GenerateTasksRequest struct {
	Text string `json:"text" binding:"required"`
}

// ParsePatch turns a JSON object into a TaskPatch. Only the keys present are
// patched; a null start_date or due_date clears the date. Fields with the
// wrong type are reported as violations instead of being ignored.
func ParsePatch(raw map[string]any) (models.TaskPatch, error) {
	var p models.TaskPatch
	var violations []apierrors.Violation
	invalid := func(field, msg string) {
		violations = append(violations, apierrors.Violation{Field: field, Message: msg})
	}

	if v, ok := raw["title"]; ok {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			p.Title = &s
		} else {
			invalid("title", "must be a string")
		}
	}
	if v, ok := raw["description"]; ok {
		if s, ok := v.(string); ok {
			p.Description = &s
		} else {
			invalid("description", "must be a string")
		}
	}
	if v, ok := raw["status"]; ok {
		s, isString := v.(string)
		st, known := models.ParseStatus(s)
		if isString && known {
			p.Status = &st
		} else {
			invalid("status", fmt.Sprintf("unknown status %v", v))
		}
	}
	if v, ok := raw["priority"]; ok {
		s, _ := v.(string)
		pr := models.Priority(strings.ToLower(s))
		if pr.Valid() {
			p.Priority = &pr
		} else {
			invalid("priority", fmt.Sprintf("unknown priority %v", v))
		}
	}
	if v, ok := raw["start_date"]; ok {
		t, clear, err := parseDate(v)
		switch {
		case err != nil:
			invalid("start_date", err.Error())
		case clear:
			p.ClearStartDate = true
		default:
			p.StartDate = &t
		}
	}
	if v, ok := raw["due_date"]; ok {
		t, clear, err := parseDate(v)
		switch {
		case err != nil:
			invalid("due_date", err.Error())
		case clear:
			p.ClearDueDate = true
		default:
			p.DueDate = &t
		}
	}
	if v, ok := raw["estimated_effort"]; ok {
		f, isNumber := v.(float64)
		if isNumber && f >= 0 && !math.IsInf(f, 0) {
			p.EstimatedEffort = &f
		} else {
			invalid("estimated_effort", "must be a non-negative number of hours")
		}
	}
	if v, ok := raw["assignees"]; ok {
		if list, ok := stringList(v); ok {
			p.Assignees = &list
		} else {
			invalid("assignees", "must be a list of strings")
		}
	}
	if v, ok := raw["tags"]; ok {
		if list, ok := stringList(v); ok {
			p.Tags = &list
		} else {
			invalid("tags", "must be a list of strings")
		}
	}
	if v, ok := raw["project"]; ok {
		if s, ok := v.(string); ok {
			p.Project = &s
		} else {
			invalid("project", "must be a string")
		}
	}
	if v, ok := raw["subtasks"]; ok {
		var subtasks []models.Subtask
		if err := redecode(v, &subtasks); err != nil {
			invalid("subtasks", "must be a list of subtasks")
		} else {
			p.Subtasks = &subtasks
		}
	}
	if v, ok := raw["comments"]; ok {
		var comments []models.Comment
		if err := redecode(v, &comments); err != nil {
			invalid("comments", "must be a list of comments")
		} else {
			p.Comments = &comments
		}
	}
	if v, ok := raw["attachments"]; ok {
		var attachments []models.Attachment
		if err := redecode(v, &attachments); err != nil {
			invalid("attachments", "must be a list of attachments")
		} else {
			p.Attachments = &attachments
		}
	}

	if len(violations) > 0 {
		return models.TaskPatch{}, apierrors.NewValidationError(violations)
	}
	return p, nil
}

// parseDate accepts RFC3339 timestamps and plain dates. null clears.
func parseDate(v any) (time.Time, bool, error) {
	if v == nil {
		return time.Time{}, true, nil
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false, fmt.Errorf("must be a date string or null")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q", s)
}

func stringList(v any) ([]string, bool) {
	if v == nil {
		return []string{}, true
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// redecode maps an already-decoded JSON value onto a typed destination
func redecode(v any, dst any) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
