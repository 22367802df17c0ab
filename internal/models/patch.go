package models

import (
	"slices"
	"time"
)

// TaskPatch is a partial update. Nil fields are left untouched; the Clear
// flags remove an optional date.
type TaskPatch struct {
	Title           *string
	Description     *string
	Status          *Status
	Priority        *Priority
	StartDate       *time.Time
	ClearStartDate  bool
	DueDate         *time.Time
	ClearDueDate    bool
	EstimatedEffort *float64
	Assignees       *[]string
	Tags            *[]string
	Project         *string

	Subtasks    *[]Subtask
	Comments    *[]Comment
	Attachments *[]Attachment
}

// StatusPatch builds a patch touching only the status.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return len(p.Kinds()) == 0
}

func (p TaskPatch) touchesFields() bool {
	return p.Title != nil || p.Description != nil || p.Priority != nil ||
		p.StartDate != nil || p.ClearStartDate || p.DueDate != nil || p.ClearDueDate ||
		p.EstimatedEffort != nil || p.Assignees != nil || p.Tags != nil || p.Project != nil
}

// Kinds returns the capabilities an origin must declare to accept the patch.
func (p TaskPatch) Kinds() []Capability {
	var kinds []Capability
	if p.Status != nil {
		kinds = append(kinds, CapUpdateStatus)
	}
	if p.touchesFields() {
		kinds = append(kinds, CapUpdateFields)
	}
	if p.Subtasks != nil {
		kinds = append(kinds, CapMutateSubtasks)
	}
	if p.Comments != nil {
		kinds = append(kinds, CapComment)
	}
	if p.Attachments != nil {
		kinds = append(kinds, CapAttach)
	}
	return kinds
}

// ApplyTo returns a patched deep copy of t. t itself is not modified.
func (p TaskPatch) ApplyTo(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ClearStartDate {
		out.StartDate = nil
	} else if p.StartDate != nil {
		out.StartDate = cloneTime(p.StartDate)
	}
	if p.ClearDueDate {
		out.DueDate = nil
	} else if p.DueDate != nil {
		out.DueDate = cloneTime(p.DueDate)
	}
	if p.EstimatedEffort != nil {
		out.EstimatedEffort = *p.EstimatedEffort
	}
	if p.Assignees != nil {
		out.Assignees = slices.Clone(*p.Assignees)
	}
	if p.Tags != nil {
		out.Tags = slices.Clone(*p.Tags)
	}
	if p.Project != nil {
		out.Project = *p.Project
	}
	if p.Subtasks != nil {
		out.Subtasks = slices.Clone(*p.Subtasks)
	}
	if p.Comments != nil {
		out.Comments = Task{Comments: *p.Comments}.Clone().Comments
	}
	if p.Attachments != nil {
		out.Attachments = slices.Clone(*p.Attachments)
	}
	return out
}
