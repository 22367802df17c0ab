package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

var trackerAStatuses = map[string]models.Status{
	"to do":                    models.StatusTodo,
	"todo":                     models.StatusTodo,
	"open":                     models.StatusTodo,
	"backlog":                  models.StatusTodo,
	"selected for development": models.StatusTodo,
	"in progress":              models.StatusInProgress,
	"in development":           models.StatusInProgress,
	"in review":                models.StatusInProgress,
	"code review":              models.StatusInProgress,
	"done":                     models.StatusDone,
	"closed":                   models.StatusDone,
	"resolved":                 models.StatusDone,
}

var trackerALabels = map[models.Status]string{
	models.StatusTodo:       "To Do",
	models.StatusInProgress: "In Progress",
	models.StatusDone:       "Done",
}

var trackerAPriorities = map[string]models.Priority{
	"highest":  models.PriorityUrgent,
	"blocker":  models.PriorityUrgent,
	"critical": models.PriorityUrgent,
	"high":     models.PriorityHigh,
	"medium":   models.PriorityMedium,
	"low":      models.PriorityLow,
	"lowest":   models.PriorityLow,
	"trivial":  models.PriorityLow,
}

var trackerAFields = fieldNames{
	status:    "status",
	title:     "summary",
	effort:    "timeOriginalEstimate",
	assignees: "assignee",
	project:   "projectKey",
	priority: map[models.Priority]string{
		models.PriorityUrgent: "Highest",
		models.PriorityHigh:   "High",
		models.PriorityMedium: "Medium",
		models.PriorityLow:    "Low",
	},
	// estimates are kept in seconds upstream
	effortOut: func(hours float64) any { return int64(hours * 3600) },
	assigneesOut: func(a []string) any {
		if len(a) == 0 {
			return nil
		}
		return a[0]
	},
}

// Issue is an issue as mirrored by the integration backend.
type Issue struct {
	ID                   string            `json:"_id"`
	IssueKey             string            `json:"issueKey"`
	Summary              string            `json:"summary"`
	Description          flexText          `json:"description"`
	Status               flexName          `json:"status"`
	Priority             flexName          `json:"priority"`
	IssueType            flexName          `json:"issueType"`
	Assignee             flexName          `json:"assignee"`
	Labels               []string          `json:"labels"`
	ProjectKey           string            `json:"jiraProjectKey"`
	StartDate            flexTime          `json:"startDate"`
	DueDate              flexTime          `json:"dueDate"`
	TimeOriginalEstimate flexFloat         `json:"timeOriginalEstimate"`
	Subtasks             []IssueSubtask    `json:"subtasks"`
	Comments             []IssueComment    `json:"comments"`
	Attachments          []IssueAttachment `json:"attachments"`
	CreatedAt            flexTime          `json:"createdAt"`
	UpdatedAt            flexTime          `json:"updatedAt"`
	LastSyncedAt         flexTime          `json:"lastSyncedAt"`
}

type IssueSubtask struct {
	Key     string   `json:"key"`
	Summary string   `json:"summary"`
	Status  flexName `json:"status"`
}

type IssueComment struct {
	ID        string   `json:"id"`
	Author    flexName `json:"author"`
	Body      flexText `json:"body"`
	CreatedAt flexTime `json:"created"`
}

type IssueAttachment struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	URL      string    `json:"content"`
	MimeType string    `json:"mimeType"`
	Size     flexFloat `json:"size"`
}

// TrackerAAdapter mirrors issues from an issue tracker through the
// integration backend.
type TrackerAAdapter struct {
	trackerBase
	browseURL string
}

func NewTrackerAAdapter(workspaceID string, opts TrackerOptions) *TrackerAAdapter {
	browse := strings.TrimRight(opts.BrowseURL, "/")
	if browse == "" {
		browse = strings.TrimRight(opts.BaseURL, "/")
	}
	return &TrackerAAdapter{
		trackerBase: newTrackerBase(models.OriginTrackerA, workspaceID, opts, trackerAStatuses, trackerALabels),
		browseURL:   browse,
	}
}

func (a *TrackerAAdapter) basePath() string {
	return "/jira/workspace/" + url.PathEscape(a.workspaceID)
}

func (a *TrackerAAdapter) Fetch(ctx context.Context) ([]models.Task, error) {
	var raw []json.RawMessage
	if err := a.client.do(ctx, "fetch", "", http.MethodGet, a.basePath()+"/issues", nil, &raw); err != nil {
		return nil, err
	}
	return a.canonicalAll(raw), nil
}

func (a *TrackerAAdapter) Dispatch(ctx context.Context, taskID string, patch models.TaskPatch) (Ack, error) {
	if err := RequireCapabilities(a, patch.Kinds()...); err != nil {
		return Ack{}, err
	}
	body := a.fieldsBody(patch, trackerAFields)
	if len(body) == 0 {
		return Ack{TaskID: taskID, AcceptedAt: a.now()}, nil
	}
	path := a.basePath() + "/issues/" + url.PathEscape(taskID)
	if err := a.client.do(ctx, "update", taskID, http.MethodPut, path, body, nil); err != nil {
		return Ack{}, err
	}
	return Ack{TaskID: taskID, AcceptedAt: a.now()}, nil
}

// Import mirrors issues by key, or by query expression when no keys are given.
func (a *TrackerAAdapter) Import(ctx context.Context, req ImportRequest) ([]models.Task, error) {
	if req.Empty() {
		return nil, apierrors.NewValidationError([]apierrors.Violation{
			{Field: "query", Message: "issue keys or a query expression is required"},
		})
	}
	body := map[string]any{}
	if len(req.ExternalIDs) > 0 {
		body["issueKeys"] = req.ExternalIDs
	} else {
		body["jql"] = req.Query
	}
	var raw []json.RawMessage
	if err := a.client.do(ctx, "import", "", http.MethodPost, a.basePath()+"/import", body, &raw); err != nil {
		return nil, err
	}
	tasks := a.canonicalAll(raw)
	a.log.Info("issues imported", "count", len(tasks))
	return tasks, nil
}

func (a *TrackerAAdapter) canonicalAll(raw []json.RawMessage) []models.Task {
	fetchedAt := a.now()
	issues := decodeItems[Issue](raw, a.log, a.origin)
	tasks := make([]models.Task, len(issues))
	for i, issue := range issues {
		tasks[i] = a.ToCanonical(issue, fetchedAt)
	}
	return tasks
}

// ToCanonical converts an issue. Missing or unknown values fall back to
// defaults, so every issue converts.
func (a *TrackerAAdapter) ToCanonical(issue Issue, fetchedAt time.Time) models.Task {
	id := issue.ID
	if id == "" {
		id = issue.IssueKey
	}
	key := issue.IssueKey
	if key == "" {
		key = id
	}

	t := models.Task{
		ID:              id,
		Title:           a.title(issue.Summary, issue.IssueKey),
		Description:     truncateRunes(string(issue.Description), models.MaxDescriptionLength),
		Status:          a.StatusFor(string(issue.Status)),
		Priority:        priorityFor(trackerAPriorities, string(issue.Priority)),
		StartDate:       issue.StartDate.Ptr(),
		DueDate:         issue.DueDate.Ptr(),
		EstimatedEffort: max(float64(issue.TimeOriginalEstimate)/3600, 0),
		Assignees:       []string{},
		Tags:            nonNil(issue.Labels),
		Project:         issue.ProjectKey,
		Origin:          models.OriginTrackerA,
		ExternalRef:     fmt.Sprintf("%s/browse/%s", a.browseURL, key),
		SyncedAt:        a.syncedAt(issue.LastSyncedAt, fetchedAt),
		CreatedAt:       issue.CreatedAt.Time,
		UpdatedAt:       issue.UpdatedAt.Time,
		Subtasks:        []models.Subtask{},
		Comments:        []models.Comment{},
		Attachments:     []models.Attachment{},
	}
	if issue.Assignee != "" {
		t.Assignees = []string{string(issue.Assignee)}
	}
	if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
		t.StartDate = nil
	}
	for _, st := range issue.Subtasks {
		t.Subtasks = append(t.Subtasks, models.Subtask{
			ID:        st.Key,
			Title:     a.title(st.Summary, st.Key),
			Completed: a.StatusFor(string(st.Status)) == models.StatusDone,
		})
	}
	for _, c := range issue.Comments {
		t.Comments = append(t.Comments, models.Comment{
			ID:        c.ID,
			Author:    string(c.Author),
			Content:   string(c.Body),
			CreatedAt: c.CreatedAt.Time,
		})
	}
	for _, at := range issue.Attachments {
		if at.URL == "" {
			continue
		}
		t.Attachments = append(t.Attachments, models.Attachment{
			ID:       at.ID,
			Name:     at.Filename,
			URL:      at.URL,
			MimeType: at.MimeType,
			Size:     int64(at.Size),
		})
	}
	return t
}
