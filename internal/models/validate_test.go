package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validNativeTask() Task {
	return Task{
		ID:       "t-1",
		Title:    "Write release notes",
		Status:   StatusTodo,
		Priority: PriorityMedium,
		Origin:   OriginNative,
	}
}

func fields(t *testing.T, task Task) []string {
	t.Helper()
	var out []string
	for _, v := range Validate(task) {
		out = append(out, v.Field)
	}
	return out
}

func TestValidate_ValidNativeTask(t *testing.T) {
	assert.Empty(t, Validate(validNativeTask()))
	assert.NoError(t, Check(validNativeTask()))
}

func TestValidate_TitleRules(t *testing.T) {
	task := validNativeTask()
	task.Title = "   "
	assert.Equal(t, []string{"title"}, fields(t, task))

	task.Title = strings.Repeat("x", MaxTitleLength+1)
	assert.Equal(t, []string{"title"}, fields(t, task))
}

func TestValidate_StatusMustBelongToOrigin(t *testing.T) {
	task := validNativeTask()
	task.Status = StatusReview
	assert.Empty(t, Validate(task))

	task.Origin = OriginTrackerA
	task.ExternalRef = "https://tracker.example/browse/PROJ-1"
	assert.Equal(t, []string{"status"}, fields(t, task))
}

func TestValidate_ExternalRefMatchesOrigin(t *testing.T) {
	task := validNativeTask()
	task.ExternalRef = "https://tracker.example/browse/PROJ-1"
	assert.Equal(t, []string{"external_ref"}, fields(t, task))

	tracker := validNativeTask()
	tracker.Origin = OriginTrackerB
	assert.Equal(t, []string{"external_ref"}, fields(t, tracker))

	// Drafts have not been assigned a reference yet
	tracker.ID = ""
	assert.Empty(t, ValidateDraft(tracker))
}

func TestValidate_NativeHasNoSyncedAt(t *testing.T) {
	task := validNativeTask()
	now := time.Now()
	task.SyncedAt = &now
	assert.Equal(t, []string{"synced_at"}, fields(t, task))
}

func TestValidate_DatesAndEffort(t *testing.T) {
	task := validNativeTask()
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task.StartDate = &start
	task.DueDate = &due
	task.EstimatedEffort = -1
	assert.ElementsMatch(t, []string{"start_date", "estimated_effort"}, fields(t, task))
}

func TestValidate_UnknownPriorityAndOrigin(t *testing.T) {
	task := validNativeTask()
	task.Priority = "critical"
	task.Origin = "spreadsheet"
	assert.ElementsMatch(t, []string{"priority", "origin"}, fields(t, task))

	err := Check(task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "priority")
}

func TestClampStatus(t *testing.T) {
	assert.Equal(t, StatusInProgress, ClampStatus(OriginTrackerA, StatusReview, StatusTodo))
	assert.Equal(t, StatusDone, ClampStatus(OriginTrackerA, StatusDone, StatusTodo))
	assert.Equal(t, StatusTodo, ClampStatus(OriginTrackerB, Status("blocked"), StatusTodo))
	assert.Equal(t, StatusReview, ClampStatus(OriginNative, StatusReview, StatusTodo))

	for _, o := range Origins {
		for _, s := range []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone, "archived", ""} {
			assert.True(t, o.Supports(ClampStatus(o, s, StatusTodo)), "origin %s status %q", o, s)
		}
	}
}

func TestParseStatus_Aliases(t *testing.T) {
	cases := map[string]Status{
		"pending":     StatusTodo,
		"To Do":       StatusTodo,
		"in progress": StatusInProgress,
		"completed":   StatusDone,
		" review ":    StatusReview,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStatus("blocked")
	assert.False(t, ok)
}

func TestTaskPatch_KindsAndApply(t *testing.T) {
	title := "Renamed"
	subtasks := []Subtask{{ID: "s1", Title: "Sketch"}}
	p := TaskPatch{Title: &title, Subtasks: &subtasks}
	p.Status = new(Status)
	*p.Status = StatusDone

	assert.Equal(t, []Capability{CapUpdateStatus, CapUpdateFields, CapMutateSubtasks}, p.Kinds())
	assert.False(t, p.IsEmpty())
	assert.True(t, TaskPatch{}.IsEmpty())

	orig := validNativeTask()
	orig.Tags = []string{"a"}
	out := p.ApplyTo(orig)
	assert.Equal(t, "Renamed", out.Title)
	assert.Equal(t, StatusDone, out.Status)
	assert.Len(t, out.Subtasks, 1)
	assert.Equal(t, "Write release notes", orig.Title)

	out.Tags[0] = "changed"
	assert.Equal(t, "a", orig.Tags[0])
}

func TestTaskPatch_ClearDueDate(t *testing.T) {
	task := validNativeTask()
	due := time.Now()
	task.DueDate = &due

	out := TaskPatch{ClearDueDate: true}.ApplyTo(task)
	assert.Nil(t, out.DueDate)
	assert.NotNil(t, task.DueDate)
}
