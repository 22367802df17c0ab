package projections

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

type SortField string

const (
	SortNone      SortField = ""
	SortTitle     SortField = "title"
	SortStatus    SortField = "status"
	SortPriority  SortField = "priority"
	SortDueDate   SortField = "dueDate"
	SortStartDate SortField = "startDate"
	SortEffort    SortField = "estimatedEffort"
	SortAssignee  SortField = "assignee"
	SortCreatedAt SortField = "createdAt"
)

type GroupBy string

const (
	GroupNone     GroupBy = ""
	GroupStatus   GroupBy = "status"
	GroupPriority GroupBy = "priority"
	GroupAssignee GroupBy = "assignee"
	GroupProject  GroupBy = "project"
)

const (
	allTasksGroup  = "All Tasks"
	unassigned     = "Unassigned"
	noProjectGroup = "No Project"
)

type ListOptions struct {
	Filter
	Sort       SortField `form:"sort"`
	Descending bool      `form:"desc"`
	Group      GroupBy   `form:"group"`
	// Offset and Limit page through the grouped, sorted sequence. A zero
	// Limit returns everything from Offset on.
	Offset int `form:"-"`
	Limit  int `form:"-"`
}

// ValidSort reports whether f is a known sort field.
func ValidSort(f SortField) bool {
	switch f {
	case SortNone, SortTitle, SortStatus, SortPriority, SortDueDate, SortStartDate, SortEffort, SortAssignee, SortCreatedAt:
		return true
	}
	return false
}

// ValidGroup reports whether g is a known grouping.
func ValidGroup(g GroupBy) bool {
	switch g {
	case GroupNone, GroupStatus, GroupPriority, GroupAssignee, GroupProject:
		return true
	}
	return false
}

type ListGroup struct {
	Key   string        `json:"key"`
	Tasks []models.Task `json:"tasks"`
}

type ListView struct {
	Groups []ListGroup `json:"groups"`
	// Total counts the filtered tasks before paging.
	Total int `json:"total"`
}

// List groups the filtered tasks, then sorts each group by the chosen field.
// The sort is stable, so ties keep snapshot order. Missing dates sort last in
// either direction.
func List(tasks []models.Task, opts ListOptions) ListView {
	filtered := opts.Filter.apply(tasks)

	keys, members := group(filtered, opts.Group)
	for _, k := range keys {
		sortTasks(members[k], opts.Sort, opts.Descending)
	}

	view := ListView{Groups: []ListGroup{}, Total: len(filtered)}
	skip, remaining := max(opts.Offset, 0), opts.Limit
	for _, k := range keys {
		page := members[k]
		if skip >= len(page) {
			skip -= len(page)
			continue
		}
		page = page[skip:]
		skip = 0
		if opts.Limit > 0 {
			if remaining <= 0 {
				break
			}
			if len(page) > remaining {
				page = page[:remaining]
			}
			remaining -= len(page)
		}
		view.Groups = append(view.Groups, ListGroup{Key: k, Tasks: page})
	}
	return view
}

func group(tasks []models.Task, by GroupBy) ([]string, map[string][]models.Task) {
	members := map[string][]models.Task{}
	var keys []string
	for _, t := range tasks {
		k := groupKey(t, by)
		if _, seen := members[k]; !seen {
			keys = append(keys, k)
		}
		members[k] = append(members[k], t)
	}

	switch by {
	case GroupStatus:
		slices.SortFunc(keys, func(a, b string) int {
			return cmp.Compare(models.Status(a).Ordinal(), models.Status(b).Ordinal())
		})
	case GroupPriority:
		// most urgent first
		slices.SortFunc(keys, func(a, b string) int {
			return cmp.Compare(models.Priority(b).Rank(), models.Priority(a).Rank())
		})
	case GroupAssignee:
		slices.SortFunc(keys, fallbackLast(unassigned))
	case GroupProject:
		slices.SortFunc(keys, fallbackLast(noProjectGroup))
	}
	return keys, members
}

func groupKey(t models.Task, by GroupBy) string {
	switch by {
	case GroupStatus:
		return string(t.Status)
	case GroupPriority:
		return string(t.Priority)
	case GroupAssignee:
		if len(t.Assignees) > 0 && t.Assignees[0] != "" {
			return t.Assignees[0]
		}
		return unassigned
	case GroupProject:
		if t.Project != "" {
			return t.Project
		}
		return noProjectGroup
	default:
		return allTasksGroup
	}
}

func fallbackLast(fallback string) func(a, b string) int {
	return func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == fallback:
			return 1
		case b == fallback:
			return -1
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}
}

func sortTasks(tasks []models.Task, field SortField, desc bool) {
	if field == SortNone {
		return
	}
	dir := 1
	if desc {
		dir = -1
	}
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		switch field {
		case SortDueDate:
			return compareDates(a.DueDate, b.DueDate, dir)
		case SortStartDate:
			return compareDates(a.StartDate, b.StartDate, dir)
		case SortCreatedAt:
			return dir * a.CreatedAt.Compare(b.CreatedAt)
		case SortTitle:
			return dir * strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortStatus:
			return dir * cmp.Compare(a.Status.Ordinal(), b.Status.Ordinal())
		case SortPriority:
			return dir * cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		case SortEffort:
			return dir * cmp.Compare(a.EstimatedEffort, b.EstimatedEffort)
		case SortAssignee:
			return dir * strings.Compare(firstAssignee(a), firstAssignee(b))
		}
		return 0
	})
}

// compareDates orders by date with nil last regardless of direction.
func compareDates(a, b *time.Time, dir int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return dir * a.Compare(*b)
}

func firstAssignee(t models.Task) string {
	if len(t.Assignees) == 0 {
		return ""
	}
	return strings.ToLower(t.Assignees[0])
}
