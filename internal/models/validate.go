package models

import (
	"math"
	"strings"
	"unicode/utf8"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// Validate checks every canonical-model invariant and returns the violated ones.
// A task must pass before it becomes visible to projections.
func Validate(t Task) []apierrors.Violation {
	return validate(t, false)
}

// ValidateDraft checks a task that has not been assigned an id or an external
// reference by its origin yet.
func ValidateDraft(t Task) []apierrors.Violation {
	return validate(t, true)
}

// Check is Validate as an error, nil when the task is valid.
func Check(t Task) error {
	return apierrors.NewValidationError(Validate(t))
}

func validate(t Task, draft bool) []apierrors.Violation {
	var v []apierrors.Violation
	add := func(field, msg string) {
		v = append(v, apierrors.Violation{Field: field, Message: msg})
	}

	if !draft && strings.TrimSpace(t.ID) == "" {
		add("id", "is required")
	}

	if strings.TrimSpace(t.Title) == "" {
		add("title", "must not be empty")
	} else if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		add("title", "must be at most 200 characters")
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		add("description", "must be at most 2000 characters")
	}

	if !t.Origin.Valid() {
		add("origin", "unknown origin "+string(t.Origin))
	} else {
		if !t.Origin.Supports(t.Status) {
			add("status", string(t.Status)+" is not supported by "+string(t.Origin))
		}
		if t.Origin == OriginNative {
			if t.ExternalRef != "" {
				add("external_ref", "must be empty for native tasks")
			}
			if t.SyncedAt != nil {
				add("synced_at", "must be empty for native tasks")
			}
		} else if !draft && t.ExternalRef == "" {
			add("external_ref", "is required for tracker tasks")
		}
	}

	if !t.Priority.Valid() {
		add("priority", "unknown priority "+string(t.Priority))
	}
	if t.EstimatedEffort < 0 || math.IsNaN(t.EstimatedEffort) || math.IsInf(t.EstimatedEffort, 0) {
		add("estimated_effort", "must be a non-negative number of hours")
	}
	if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
		add("start_date", "must not be after due_date")
	}

	for _, st := range t.Subtasks {
		if strings.TrimSpace(st.Title) == "" {
			add("subtasks", "subtask title must not be empty")
			break
		}
	}
	for _, a := range t.Attachments {
		if a.URL == "" {
			add("attachments", "attachment url must not be empty")
			break
		}
	}

	return v
}
