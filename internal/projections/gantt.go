package projections

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

const (
	// HoursPerDay is the nominal working day used to turn effort into duration.
	HoursPerDay = 8
	day         = 24 * time.Hour
)

type GanttOptions struct {
	Filter
	// RangeStart and RangeEnd bound the visible window. Either defaults to
	// the extent of the positioned tasks.
	RangeStart *time.Time
	RangeEnd   *time.Time
	// Now places the today marker. The zero time omits it.
	Now time.Time
}

type GanttBar struct {
	TaskID  string        `json:"task_id"`
	Title   string        `json:"title"`
	Status  models.Status `json:"status"`
	StartAt time.Time     `json:"start_at"`
	EndAt   time.Time     `json:"end_at"`
	// Derived is set when one end of the span was computed from effort.
	Derived bool `json:"derived"`
	// Clipped is set when the span reaches past the visible window.
	Clipped bool    `json:"clipped"`
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
}

type GanttGroup struct {
	Name string     `json:"name"`
	Bars []GanttBar `json:"bars"`
}

type GanttView struct {
	RangeStart time.Time    `json:"range_start"`
	RangeEnd   time.Time    `json:"range_end"`
	TotalDays  float64      `json:"total_days"`
	Groups     []GanttGroup `json:"groups"`
	// Today is the marker position, nil when now is outside the window.
	Today *float64 `json:"today,omitempty"`
}

type span struct {
	task       models.Task
	start, end time.Time
	derived    bool
}

// Span returns the timeline extent of a task. A missing start is derived as
// due minus the effort in nominal days, a missing due as start plus that
// duration, with a minimum of one day. ok is false when the task has no
// dates or its dates are inverted.
func Span(t models.Task) (start, end time.Time, derived, ok bool) {
	duration := effortDuration(t.EstimatedEffort)
	switch {
	case t.StartDate != nil && t.DueDate != nil:
		if t.StartDate.After(*t.DueDate) {
			return time.Time{}, time.Time{}, false, false
		}
		return *t.StartDate, *t.DueDate, false, true
	case t.DueDate != nil:
		return t.DueDate.Add(-duration), *t.DueDate, true, true
	case t.StartDate != nil:
		return *t.StartDate, t.StartDate.Add(duration), true, true
	}
	return time.Time{}, time.Time{}, false, false
}

func effortDuration(hours float64) time.Duration {
	days := 1.0
	if hours > 0 && !math.IsInf(hours, 0) {
		days = max(1, math.Ceil(hours/HoursPerDay))
	}
	return time.Duration(days) * day
}

// Gantt positions each task's span inside the visible window as fractions of
// the window. Spans are clipped to the window; tasks entirely outside it or
// without usable dates are left out.
func Gantt(tasks []models.Task, opts GanttOptions) GanttView {
	var spans []span
	for _, t := range opts.Filter.apply(tasks) {
		start, end, derived, ok := Span(t)
		if !ok {
			continue
		}
		spans = append(spans, span{task: t, start: start, end: end, derived: derived})
	}

	view := GanttView{Groups: []GanttGroup{}}
	lo, hi, ok := visibleRange(spans, opts)
	if !ok {
		return view
	}
	view.RangeStart, view.RangeEnd = lo, hi
	total := hi.Sub(lo)
	view.TotalDays = total.Hours() / 24

	members := map[string][]GanttBar{}
	var names []string
	for _, sp := range spans {
		if sp.end.Before(lo) || sp.start.After(hi) {
			continue
		}
		from, to := sp.start, sp.end
		if from.Before(lo) {
			from = lo
		}
		if to.After(hi) {
			to = hi
		}
		bar := GanttBar{
			TaskID:  sp.task.ID,
			Title:   sp.task.Title,
			Status:  sp.task.Status,
			StartAt: sp.start,
			EndAt:   sp.end,
			Derived: sp.derived,
			Clipped: sp.start.Before(lo) || sp.end.After(hi),
			Left:    fraction(from.Sub(lo), total),
			Width:   fraction(to.Sub(from), total),
		}
		name := barGroup(sp.task)
		if _, seen := members[name]; !seen {
			names = append(names, name)
		}
		members[name] = append(members[name], bar)
	}

	slices.SortFunc(names, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
	for _, name := range names {
		view.Groups = append(view.Groups, GanttGroup{Name: name, Bars: members[name]})
	}

	if !opts.Now.IsZero() && !opts.Now.Before(lo) && !opts.Now.After(hi) {
		today := fraction(opts.Now.Sub(lo), total)
		view.Today = &today
	}
	return view
}

// visibleRange resolves the window. A window derived from the tasks is at
// least one day long; an explicit empty or inverted window shows nothing.
func visibleRange(spans []span, opts GanttOptions) (time.Time, time.Time, bool) {
	var lo, hi time.Time
	for i, sp := range spans {
		if i == 0 || sp.start.Before(lo) {
			lo = sp.start
		}
		if i == 0 || sp.end.After(hi) {
			hi = sp.end
		}
	}
	if opts.RangeStart != nil {
		lo = *opts.RangeStart
	}
	if opts.RangeEnd != nil {
		hi = *opts.RangeEnd
	}
	if opts.RangeStart == nil && opts.RangeEnd == nil {
		if len(spans) == 0 {
			return time.Time{}, time.Time{}, false
		}
		if !hi.After(lo) {
			hi = lo.Add(day)
		}
	}
	if !hi.After(lo) {
		return time.Time{}, time.Time{}, false
	}
	return lo, hi, true
}

func fraction(d, total time.Duration) float64 {
	f := float64(d) / float64(total)
	return min(max(f, 0), 1)
}

func barGroup(t models.Task) string {
	if t.Project != "" {
		return t.Project
	}
	return string(t.Status)
}
