package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

// rawPatch decodes body the way the handler receives it
func rawPatch(t *testing.T, body string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestParsePatch_Fields(t *testing.T) {
	p, err := ParsePatch(rawPatch(t, `{
		"title": "  Ship it  ",
		"status": "In Progress",
		"priority": "HIGH",
		"start_date": "2024-05-01",
		"due_date": "2024-05-03T17:00:00Z",
		"estimated_effort": 1.5,
		"tags": ["a", "b"],
		"assignees": null,
		"subtasks": [{"title": "step", "completed": true}]
	}`))
	require.NoError(t, err)

	require.NotNil(t, p.Title)
	assert.Equal(t, "Ship it", *p.Title)
	require.NotNil(t, p.Status)
	assert.Equal(t, models.StatusInProgress, *p.Status)
	require.NotNil(t, p.Priority)
	assert.Equal(t, models.PriorityHigh, *p.Priority)
	require.NotNil(t, p.StartDate)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *p.StartDate)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, 17, p.DueDate.Hour())
	require.NotNil(t, p.EstimatedEffort)
	assert.Equal(t, 1.5, *p.EstimatedEffort)
	require.NotNil(t, p.Tags)
	assert.Equal(t, []string{"a", "b"}, *p.Tags)
	require.NotNil(t, p.Assignees)
	assert.Empty(t, *p.Assignees)
	require.NotNil(t, p.Subtasks)
	require.Len(t, *p.Subtasks, 1)
	assert.True(t, (*p.Subtasks)[0].Completed)

	assert.Nil(t, p.Description)
	assert.Nil(t, p.Comments)
	assert.ElementsMatch(t,
		[]models.Capability{models.CapUpdateStatus, models.CapUpdateFields, models.CapMutateSubtasks},
		p.Kinds())
}

func TestParsePatch_NullClearsDates(t *testing.T) {
	p, err := ParsePatch(rawPatch(t, `{"due_date": null, "start_date": null}`))
	require.NoError(t, err)
	assert.True(t, p.ClearDueDate)
	assert.True(t, p.ClearStartDate)
	assert.Nil(t, p.DueDate)
	assert.False(t, p.IsEmpty())
}

func TestParsePatch_EmptyBody(t *testing.T) {
	p, err := ParsePatch(rawPatch(t, `{}`))
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}

func TestParsePatch_CollectsViolations(t *testing.T) {
	_, err := ParsePatch(rawPatch(t, `{
		"title": 42,
		"status": "archived",
		"priority": "someday",
		"due_date": "next week",
		"estimated_effort": -1,
		"tags": [1, 2],
		"subtasks": "none"
	}`))
	require.Error(t, err)

	var valErr *apierrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := make([]string, len(valErr.Violations))
	for i, v := range valErr.Violations {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t,
		[]string{"title", "status", "priority", "due_date", "estimated_effort", "tags", "subtasks"},
		fields)
}

func TestCreateTaskRequest_ToDraft(t *testing.T) {
	draft := CreateTaskRequest{Title: "  Write  ", Status: "done"}.ToDraft()
	assert.Equal(t, "Write", draft.Title)
	assert.Equal(t, models.StatusDone, draft.Status)

	draft = CreateTaskRequest{Title: "X", Status: "archived"}.ToDraft()
	assert.Equal(t, models.Status("archived"), draft.Status)

	draft = CreateTaskRequest{Title: "X"}.ToDraft()
	assert.Empty(t, draft.Status)
}

func TestToTaskDTO_NonNilCollections(t *testing.T) {
	out := ToTaskDTO(models.Task{ID: "t1", Title: "A", Origin: models.OriginNative})
	assert.NotNil(t, out.Tags)
	assert.NotNil(t, out.Assignees)
	assert.NotNil(t, out.Subtasks)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tags":[]`)
	assert.NotContains(t, string(b), `"created_at"`)
}
