package handlers

import (
	"net/http"
	"time"
	// calendar time zones must resolve without a system zoneinfo database
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/projections"
	"github.com/yukikurage/task-sync/internal/utils"
)

// ViewHandler renders the projections of a store snapshot
type ViewHandler struct {
	now func() time.Time
}

func NewViewHandler() *ViewHandler {
	return &ViewHandler{now: time.Now}
}

// Board groups the tasks into the origin's columns
func (h *ViewHandler) Board(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var filter projections.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters")
		return
	}

	tasks, version := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"board":   projections.Board(tasks, s.Columns(), filter),
		"version": version,
	})
}

// List returns the grouped and sorted tasks, paginated
func (h *ViewHandler) List(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var opts projections.ListOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters")
		return
	}
	if !projections.ValidSort(opts.Sort) {
		apierrors.BadRequest(c, "Invalid sort field")
		return
	}
	if !projections.ValidGroup(opts.Group) {
		apierrors.BadRequest(c, "Invalid grouping")
		return
	}

	params := utils.GetPaginationParams(c)
	opts.Offset = params.Offset
	opts.Limit = params.Limit

	tasks, version := s.Snapshot()
	view := projections.List(tasks, opts)
	c.JSON(http.StatusOK, gin.H{
		"groups":     view.Groups,
		"pagination": utils.NewPaginationResponse(params, view.Total),
		"version":    version,
	})
}

// Calendar buckets tasks by due day in the ?tz time zone
func (h *ViewHandler) Calendar(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var filter projections.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters")
		return
	}
	opts := projections.CalendarOptions{Filter: filter, Location: time.UTC}

	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			apierrors.BadRequest(c, "Invalid time zone")
			return
		}
		opts.Location = loc
	}

	var err error
	if opts.From, err = queryDate(c, "from", opts.Location); err != nil {
		apierrors.BadRequest(c, "Invalid from date")
		return
	}
	if opts.To, err = queryDate(c, "to", opts.Location); err != nil {
		apierrors.BadRequest(c, "Invalid to date")
		return
	}

	tasks, version := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"calendar": projections.Calendar(tasks, opts),
		"version":  version,
	})
}

// Gantt positions tasks on a timeline bounded by ?start and ?end
func (h *ViewHandler) Gantt(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var filter projections.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters")
		return
	}
	opts := projections.GanttOptions{Filter: filter, Now: h.now()}

	var err error
	if opts.RangeStart, err = queryDate(c, "start", time.UTC); err != nil {
		apierrors.BadRequest(c, "Invalid start date")
		return
	}
	if opts.RangeEnd, err = queryDate(c, "end", time.UTC); err != nil {
		apierrors.BadRequest(c, "Invalid end date")
		return
	}

	tasks, version := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"gantt":   projections.Gantt(tasks, opts),
		"version": version,
	})
}

// queryDate parses an optional RFC3339 timestamp or a plain date in loc
func queryDate(c *gin.Context, key string, loc *time.Location) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
