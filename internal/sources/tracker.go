package sources

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
)

var trackerCapabilities = models.NewCapabilitySet(
	models.CapUpdateStatus,
	models.CapUpdateFields,
	models.CapImport,
)

// trackerBase carries what the two tracker adapters share: tasks are created
// and deleted upstream only, and sub-collections are read-only mirrors.
type trackerBase struct {
	origin      models.Origin
	workspaceID string
	client      *trackerClient
	log         *slog.Logger
	now         func() time.Time

	statusMap   map[string]models.Status
	statusLabel map[models.Status]string
}

func newTrackerBase(origin models.Origin, workspaceID string, opts TrackerOptions,
	statusMap map[string]models.Status, statusLabel map[models.Status]string) trackerBase {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return trackerBase{
		origin:      origin,
		workspaceID: workspaceID,
		client:      newTrackerClient(origin, opts),
		log:         log.With("origin", origin, "workspace_id", workspaceID),
		now:         now,
		statusMap:   statusMap,
		statusLabel: statusLabel,
	}
}

func (b *trackerBase) Origin() models.Origin              { return b.origin }
func (b *trackerBase) Capabilities() models.CapabilitySet { return trackerCapabilities }
func (b *trackerBase) Columns() []models.Column           { return models.ColumnsFor(b.origin) }
func (b *trackerBase) DefaultStatus() models.Status       { return models.StatusTodo }

func (b *trackerBase) Create(context.Context, models.Task) (models.Task, error) {
	return models.Task{}, b.unsupported(models.CapCreate)
}

func (b *trackerBase) Delete(context.Context, string) error {
	return b.unsupported(models.CapDelete)
}

func (b *trackerBase) unsupported(kind models.Capability) error {
	return &apierrors.CapabilityError{Origin: string(b.origin), Kind: string(kind)}
}

// StatusFor maps an upstream status label onto the canonical set. Labels
// missing from the table go to the default status.
func (b *trackerBase) StatusFor(label string) models.Status {
	if st, ok := b.statusMap[strings.ToLower(strings.TrimSpace(label))]; ok {
		return st
	}
	return b.DefaultStatus()
}

// upstreamStatus maps a canonical status to the upstream label, clamping
// statuses this origin does not support.
func (b *trackerBase) upstreamStatus(s models.Status) string {
	st := models.ClampStatus(b.origin, s, b.DefaultStatus())
	return b.statusLabel[st]
}

func (b *trackerBase) title(primary, fallback string) string {
	t := strings.TrimSpace(primary)
	if t == "" {
		t = strings.TrimSpace(fallback)
	}
	if t == "" {
		t = "(untitled)"
	}
	return truncateRunes(t, models.MaxTitleLength)
}

func (b *trackerBase) syncedAt(upstream flexTime, fetchedAt time.Time) *time.Time {
	if p := upstream.Ptr(); p != nil {
		return p
	}
	t := fetchedAt
	return &t
}

// fieldsBody renders the field-level part of a patch in the upstream's naming.
func (b *trackerBase) fieldsBody(p models.TaskPatch, names fieldNames) map[string]any {
	body := map[string]any{}
	if p.Status != nil {
		body[names.status] = b.upstreamStatus(*p.Status)
	}
	if p.Title != nil {
		body[names.title] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Priority != nil {
		body["priority"] = names.priority[*p.Priority]
	}
	if p.ClearStartDate {
		body["startDate"] = nil
	} else if p.StartDate != nil {
		body["startDate"] = p.StartDate.UTC().Format(time.RFC3339)
	}
	if p.ClearDueDate {
		body["dueDate"] = nil
	} else if p.DueDate != nil {
		body["dueDate"] = p.DueDate.UTC().Format(time.RFC3339)
	}
	if p.EstimatedEffort != nil {
		body[names.effort] = names.effortOut(*p.EstimatedEffort)
	}
	if p.Tags != nil {
		body["labels"] = nonNil(*p.Tags)
	}
	if p.Assignees != nil {
		body[names.assignees] = names.assigneesOut(*p.Assignees)
	}
	if p.Project != nil {
		body[names.project] = *p.Project
	}
	return body
}

// fieldNames are the upstream's names for canonical fields that differ between trackers.
type fieldNames struct {
	status       string
	title        string
	effort       string
	assignees    string
	project      string
	priority     map[models.Priority]string
	effortOut    func(hours float64) any
	assigneesOut func([]string) any
}

// priorityFor maps upstream priority names; unknown ones are medium.
func priorityFor(table map[string]models.Priority, name string) models.Priority {
	if p, ok := table[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return models.PriorityMedium
}
