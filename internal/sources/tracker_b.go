package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

const pageBaseURL = "https://notion.so/"

var trackerBStatuses = map[string]models.Status{
	"not started": models.StatusTodo,
	"to do":       models.StatusTodo,
	"backlog":     models.StatusTodo,
	"in progress": models.StatusInProgress,
	"doing":       models.StatusInProgress,
	"done":        models.StatusDone,
	"complete":    models.StatusDone,
	"completed":   models.StatusDone,
	"archived":    models.StatusDone,
}

var trackerBLabels = map[models.Status]string{
	models.StatusTodo:       "Not started",
	models.StatusInProgress: "In progress",
	models.StatusDone:       "Done",
}

var trackerBPriorities = map[string]models.Priority{
	"urgent":   models.PriorityUrgent,
	"critical": models.PriorityUrgent,
	"p0":       models.PriorityUrgent,
	"high":     models.PriorityHigh,
	"p1":       models.PriorityHigh,
	"medium":   models.PriorityMedium,
	"normal":   models.PriorityMedium,
	"p2":       models.PriorityMedium,
	"low":      models.PriorityLow,
	"p3":       models.PriorityLow,
}

var trackerBFields = fieldNames{
	status:    "status",
	title:     "title",
	effort:    "estimateHours",
	assignees: "assignees",
	project:   "databaseName",
	priority: map[models.Priority]string{
		models.PriorityUrgent: "Urgent",
		models.PriorityHigh:   "High",
		models.PriorityMedium: "Medium",
		models.PriorityLow:    "Low",
	},
	effortOut:    func(hours float64) any { return hours },
	assigneesOut: func(a []string) any { return nonNil(a) },
}

// Page is a database page as mirrored by the integration backend.
type Page struct {
	ID            string    `json:"_id"`
	PageID        string    `json:"pageId"`
	Title         string    `json:"title"`
	Description   flexText  `json:"description"`
	Status        flexName  `json:"status"`
	Priority      flexName  `json:"priority"`
	Assignees     []string  `json:"assignees"`
	Labels        []string  `json:"labels"`
	DatabaseName  string    `json:"databaseName"`
	StartDate     flexTime  `json:"startDate"`
	DueDate       flexTime  `json:"dueDate"`
	EstimateHours flexFloat `json:"estimateHours"`
	CreatedAt     flexTime  `json:"createdAt"`
	UpdatedAt     flexTime  `json:"updatedAt"`
	LastSyncedAt  flexTime  `json:"lastSyncedAt"`
}

// TrackerBAdapter mirrors database pages from a document workspace through
// the integration backend.
type TrackerBAdapter struct {
	trackerBase
}

func NewTrackerBAdapter(workspaceID string, opts TrackerOptions) *TrackerBAdapter {
	return &TrackerBAdapter{
		trackerBase: newTrackerBase(models.OriginTrackerB, workspaceID, opts, trackerBStatuses, trackerBLabels),
	}
}

func (a *TrackerBAdapter) basePath() string {
	return "/notion/workspace/" + url.PathEscape(a.workspaceID)
}

func (a *TrackerBAdapter) Fetch(ctx context.Context) ([]models.Task, error) {
	var raw []json.RawMessage
	if err := a.client.do(ctx, "fetch", "", http.MethodGet, a.basePath()+"/tasks", nil, &raw); err != nil {
		return nil, err
	}
	return a.canonicalAll(raw), nil
}

func (a *TrackerBAdapter) Dispatch(ctx context.Context, taskID string, patch models.TaskPatch) (Ack, error) {
	if err := RequireCapabilities(a, patch.Kinds()...); err != nil {
		return Ack{}, err
	}
	body := a.fieldsBody(patch, trackerBFields)
	if len(body) == 0 {
		return Ack{TaskID: taskID, AcceptedAt: a.now()}, nil
	}
	path := a.basePath() + "/tasks/" + url.PathEscape(taskID)
	if err := a.client.do(ctx, "update", taskID, http.MethodPut, path, body, nil); err != nil {
		return Ack{}, err
	}
	return Ack{TaskID: taskID, AcceptedAt: a.now()}, nil
}

// Import mirrors pages by id, or a whole database when Query names one.
func (a *TrackerBAdapter) Import(ctx context.Context, req ImportRequest) ([]models.Task, error) {
	if req.Empty() {
		return nil, apierrors.NewValidationError([]apierrors.Violation{
			{Field: "query", Message: "page ids or a database id is required"},
		})
	}
	body := map[string]any{}
	if len(req.ExternalIDs) > 0 {
		body["pageIds"] = req.ExternalIDs
	} else {
		body["databaseId"] = req.Query
	}
	var raw []json.RawMessage
	if err := a.client.do(ctx, "import", "", http.MethodPost, a.basePath()+"/import", body, &raw); err != nil {
		return nil, err
	}
	tasks := a.canonicalAll(raw)
	a.log.Info("pages imported", "count", len(tasks))
	return tasks, nil
}

func (a *TrackerBAdapter) canonicalAll(raw []json.RawMessage) []models.Task {
	fetchedAt := a.now()
	pages := decodeItems[Page](raw, a.log, a.origin)
	tasks := make([]models.Task, len(pages))
	for i, p := range pages {
		tasks[i] = a.ToCanonical(p, fetchedAt)
	}
	return tasks
}

// ToCanonical converts a page. Missing or unknown values fall back to
// defaults, so every page converts.
func (a *TrackerBAdapter) ToCanonical(p Page, fetchedAt time.Time) models.Task {
	id := p.ID
	if id == "" {
		id = p.PageID
	}
	pageID := p.PageID
	if pageID == "" {
		pageID = id
	}

	t := models.Task{
		ID:              id,
		Title:           a.title(p.Title, ""),
		Description:     truncateRunes(string(p.Description), models.MaxDescriptionLength),
		Status:          a.StatusFor(string(p.Status)),
		Priority:        priorityFor(trackerBPriorities, string(p.Priority)),
		StartDate:       p.StartDate.Ptr(),
		DueDate:         p.DueDate.Ptr(),
		EstimatedEffort: max(float64(p.EstimateHours), 0),
		Assignees:       nonNil(p.Assignees),
		Tags:            nonNil(p.Labels),
		Project:         p.DatabaseName,
		Origin:          models.OriginTrackerB,
		ExternalRef:     pageBaseURL + strings.ReplaceAll(pageID, "-", ""),
		SyncedAt:        a.syncedAt(p.LastSyncedAt, fetchedAt),
		CreatedAt:       p.CreatedAt.Time,
		UpdatedAt:       p.UpdatedAt.Time,
		Subtasks:        []models.Subtask{},
		Comments:        []models.Comment{},
		Attachments:     []models.Attachment{},
	}
	if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
		t.StartDate = nil
	}
	return t
}
