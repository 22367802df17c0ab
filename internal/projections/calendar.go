package projections

import (
	"slices"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

const dayLayout = "2006-01-02"

type CalendarOptions struct {
	Filter
	// Location decides which calendar day a due time falls on. Nil means UTC.
	Location *time.Location
	// From and To bound the due times shown, as [From, To). Nil is unbounded.
	From *time.Time
	To   *time.Time
}

type CalendarDay struct {
	Date  string        `json:"date"`
	Tasks []models.Task `json:"tasks"`
}

type CalendarView struct {
	Days []CalendarDay `json:"days"`
}

// Calendar buckets tasks by the calendar day of their due date, earliest day
// first. Tasks without a due date are not shown.
func Calendar(tasks []models.Task, opts CalendarOptions) CalendarView {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	buckets := map[string][]models.Task{}
	var order []string

	for _, t := range opts.Filter.apply(tasks) {
		if t.DueDate == nil || t.DueDate.IsZero() {
			continue
		}
		due := *t.DueDate
		if opts.From != nil && due.Before(*opts.From) {
			continue
		}
		if opts.To != nil && !due.Before(*opts.To) {
			continue
		}
		key := due.In(loc).Format(dayLayout)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], t)
	}
	// the day layout sorts lexically
	slices.Sort(order)

	view := CalendarView{Days: make([]CalendarDay, 0, len(order))}
	for _, key := range order {
		view.Days = append(view.Days, CalendarDay{Date: key, Tasks: buckets[key]})
	}
	return view
}
