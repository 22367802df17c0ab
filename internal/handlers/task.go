package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/constants"
	"github.com/yukikurage/task-sync/internal/dto"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/sources"
	"github.com/yukikurage/task-sync/internal/store"
)

type TaskHandler struct {
	taskService *services.TaskService
	log         *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

// currentStore returns the store resolved by RequireStore
func currentStore(c *gin.Context) (*store.Store, bool) {
	s, ok := middleware.GetStore(c)
	if !ok {
		apierrors.InternalError(c, "Store not found in context")
		return nil, false
	}
	return s, true
}

func snapshotResponse(s *store.Store) dto.SnapshotResponse {
	tasks, version := s.Snapshot()
	return dto.SnapshotResponse{
		Origin:       s.Origin(),
		Version:      version,
		Capabilities: s.Capabilities().List(),
		Columns:      s.Columns(),
		Tasks:        dto.ToTaskDTOs(tasks),
	}
}

// ListTasks returns the current collection of an origin
func (h *TaskHandler) ListTasks(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(s))
}

// LoadTasks refetches the collection from the origin
func (h *TaskHandler) LoadTasks(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}
	if err := s.Load(c.Request.Context()); err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(s))
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}
	task, found := s.Get(c.Param("id"))
	if !found {
		apierrors.NotFound(c, "Task not found")
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// CreateTask creates a task at the origin
func (h *TaskHandler) CreateTask(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := s.Create(c.Request.Context(), req.ToDraft())
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(task))
}

// UpdateTask applies a partial update optimistically. The response carries
// the local state right away with 202; with ?wait=true it waits for the
// origin and reports the outcome.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	patch, err := dto.ParsePatch(rawReq)
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	id := c.Param("id")
	pending, err := s.Mutate(c.Request.Context(), id, patch)
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	status, resp, ok := h.awaitMutation(c, s, id, pending)
	if !ok {
		return
	}
	c.JSON(status, resp)
}

// MoveTask changes the status of a task. Statuses the origin does not model
// are clamped to the nearest supported one.
func (h *TaskHandler) MoveTask(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var req dto.MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	id := c.Param("id")
	res, err := s.MoveStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	status, resp, ok := h.awaitMutation(c, s, id, res.Pending)
	if !ok {
		return
	}
	c.JSON(status, gin.H{
		"task":      resp.Task,
		"version":   resp.Version,
		"dispatch":  resp.Dispatch,
		"requested": res.Requested,
		"applied":   res.Applied,
		"clamped":   res.Clamped,
	})
}

// awaitMutation builds the response of an accepted mutation. Without wait it
// reports the optimistic state as pending. With wait a failed dispatch is
// answered as an error, after which the store reconciles on its own.
func (h *TaskHandler) awaitMutation(c *gin.Context, s *store.Store, id string, pending *store.Pending) (int, dto.MutationResponse, bool) {
	status := http.StatusAccepted
	outcome := dto.DispatchPending

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		if err := pending.Wait(c.Request.Context()); err != nil {
			h.log.Warn("dispatch failed", "origin", s.Origin(), "task_id", id, "error", err)
			apierrors.RespondWithSyncError(c, err)
			return 0, dto.MutationResponse{}, false
		}
		status = http.StatusOK
		outcome = dto.DispatchConfirmed
	}

	task, found := s.Get(id)
	if !found {
		apierrors.NotFound(c, "Task not found")
		return 0, dto.MutationResponse{}, false
	}
	return status, dto.MutationResponse{
		Task:     dto.ToTaskDTO(task),
		Version:  s.Version(),
		Dispatch: outcome,
	}, true
}

// BulkUpdateTasks applies one patch to many tasks and reports each failure
func (h *TaskHandler) BulkUpdateTasks(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if len(req.TaskIDs) > constants.MaxBulkTaskIDs {
		apierrors.BadRequest(c, "Too many task IDs")
		return
	}

	patch, err := dto.ParsePatch(req.Patch)
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}
	if patch.IsEmpty() {
		apierrors.BadRequest(c, "Patch must change at least one field")
		return
	}

	result := s.BulkMutate(c.Request.Context(), req.TaskIDs, patch)
	if result.Failed == nil {
		result.Failed = []store.BulkFailure{}
	}
	if result.Succeeded == nil {
		result.Succeeded = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
		"failed_ids": result.FailedIDs(),
		"version":    s.Version(),
	})
}

// DeleteTask deletes a task at the origin
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	if err := s.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// ImportTasks mirrors tracker items into the collection
func (h *TaskHandler) ImportTasks(c *gin.Context) {
	s, ok := currentStore(c)
	if !ok {
		return
	}

	var req dto.ImportTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	added, err := s.Import(c.Request.Context(), sources.ImportRequest{
		ExternalIDs: req.ExternalIDs,
		Query:       req.Query,
	})
	if err != nil {
		apierrors.RespondWithSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": added,
		"version":  s.Version(),
	})
}

// GenerateTasks creates native tasks extracted from text using AI
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	ws, ok := middleware.GetWorkspace(c)
	if !ok {
		apierrors.InternalError(c, "Workspace not found in context")
		return
	}

	var req dto.GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.taskService.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		WorkspaceID: ws.ID,
		Text:        req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAIServiceNotConfigured):
			apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")
		case errors.Is(err, services.ErrTextTooLong):
			apierrors.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrAINoTasksGenerated),
			errors.Is(err, services.ErrAINoValidTasks),
			errors.Is(err, services.ErrAITooManyTasks):
			apierrors.RespondWithError(c, http.StatusUnprocessableEntity,
				apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, err.Error()))
		default:
			h.log.Error("task generation failed", "workspace_id", ws.ID, "error", err)
			apierrors.RespondWithSyncError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tasks":   dto.ToTaskDTOs(result.Created),
		"skipped": result.Skipped,
	})
}
