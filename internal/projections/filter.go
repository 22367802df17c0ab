// Package projections turns a task snapshot into the read models of the
// board, list, calendar and timeline views.
//
// Projections are pure: they never modify their input and are recomputed
// from scratch for every store version. A task that a projection cannot
// place is left out of that projection only.
package projections

import (
	"slices"
	"strings"

	"github.com/yukikurage/task-sync/internal/models"
)

// Filter narrows the tasks a projection sees.
type Filter struct {
	// Search matches title or description, case-insensitively.
	Search string `form:"search"`
	// Assignee keeps tasks assigned to this person.
	Assignee string `form:"assignee"`
}

func (f Filter) apply(tasks []models.Task) []models.Task {
	query := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Title), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		if f.Assignee != "" && !slices.Contains(t.Assignees, f.Assignee) {
			continue
		}
		out = append(out, t)
	}
	return out
}
