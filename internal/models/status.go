package models

import "strings"

// Status is a canonical lifecycle state. Each origin supports a subset.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// AllStatuses is the full canonical set in lifecycle order.
var AllStatuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// trackerStatuses has no review state: upstream trackers do not model one.
var trackerStatuses = []Status{StatusTodo, StatusInProgress, StatusDone}

var statusAliases = map[string]Status{
	"todo":        StatusTodo,
	"to-do":       StatusTodo,
	"to do":       StatusTodo,
	"pending":     StatusTodo,
	"in-progress": StatusInProgress,
	"in progress": StatusInProgress,
	"in_progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"review":      StatusReview,
	"in review":   StatusReview,
	"done":        StatusDone,
	"completed":   StatusDone,
}

// ParseStatus normalizes a canonical status label, including the legacy
// pending/completed spellings used by tracker boards.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Ordinal is the position of s in the lifecycle, or -1 if s is not canonical.
func (s Status) Ordinal() int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// StatusesFor returns the statuses an origin supports, in lifecycle order.
func StatusesFor(o Origin) []Status {
	if o.IsTracker() {
		return trackerStatuses
	}
	if o == OriginNative {
		return AllStatuses
	}
	return nil
}

// Supports reports whether status belongs to the origin's status set.
func (o Origin) Supports(s Status) bool {
	for _, st := range StatusesFor(o) {
		if st == s {
			return true
		}
	}
	return false
}

// Column is a board column; its ID is the status it collects.
type Column struct {
	ID    Status `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
	WIP   int    `json:"wip,omitempty"`
}

// ColumnsFor returns the declared board columns of an origin.
func ColumnsFor(o Origin) []Column {
	if o.IsTracker() {
		return []Column{
			{ID: StatusTodo, Name: "To Do", Color: "bg-gray-500", Order: 1},
			{ID: StatusInProgress, Name: "In Progress", Color: "bg-blue-500", Order: 2},
			{ID: StatusDone, Name: "Done", Color: "bg-green-500", Order: 3},
		}
	}
	if o == OriginNative {
		return []Column{
			{ID: StatusTodo, Name: "To Do", Color: "bg-gray-400", Order: 1},
			{ID: StatusInProgress, Name: "In Progress", Color: "bg-accent", Order: 2, WIP: 3},
			{ID: StatusReview, Name: "Review", Color: "bg-yellow-500", Order: 3},
			{ID: StatusDone, Name: "Done", Color: "bg-green-500", Order: 4},
		}
	}
	return nil
}

// ClampStatus maps a requested status onto the origin's supported set.
// A supported status is returned unchanged. A canonical but unsupported status
// goes to the supported status with the nearest ordinal, preferring the lower
// one on a tie. Anything else goes to fallback.
func ClampStatus(o Origin, requested Status, fallback Status) Status {
	if o.Supports(requested) {
		return requested
	}
	want := requested.Ordinal()
	if want < 0 {
		return fallback
	}
	best, bestDist := fallback, -1
	for _, st := range StatusesFor(o) {
		d := st.Ordinal() - want
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = st, d
		}
	}
	return best
}
