package projections

import (
	"slices"

	"github.com/yukikurage/task-sync/internal/models"
)

type BoardColumn struct {
	models.Column
	Tasks []models.Task `json:"tasks"`
	// OverWIP is set when the column holds more tasks than its WIP limit.
	OverWIP bool `json:"over_wip"`
}

type BoardView struct {
	Columns []BoardColumn `json:"columns"`
	Total   int           `json:"total"`
}

// Board groups tasks by status into columns, ordered by column order. Tasks
// keep their snapshot order within a column; tasks whose status has no
// column are left out.
func Board(tasks []models.Task, columns []models.Column, filter Filter) BoardView {
	cols := slices.Clone(columns)
	slices.SortStableFunc(cols, func(a, b models.Column) int { return a.Order - b.Order })

	view := BoardView{Columns: make([]BoardColumn, len(cols))}
	index := make(map[models.Status]int, len(cols))
	for i, c := range cols {
		view.Columns[i] = BoardColumn{Column: c, Tasks: []models.Task{}}
		if _, dup := index[c.ID]; !dup {
			index[c.ID] = i
		}
	}

	for _, t := range filter.apply(tasks) {
		i, ok := index[t.Status]
		if !ok {
			continue
		}
		view.Columns[i].Tasks = append(view.Columns[i].Tasks, t)
		view.Total++
	}
	for i := range view.Columns {
		c := &view.Columns[i]
		c.OverWIP = c.WIP > 0 && len(c.Tasks) > c.WIP
	}
	return view
}
