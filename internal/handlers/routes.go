package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/store"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Workspaces *services.WorkspaceService
	Tasks      *services.TaskService
	Registry   *store.Registry
	Origins    OriginChecker
	Logger     *slog.Logger
}

// RegisterRoutes mounts the health check and the API on r. Session
// middleware must already be installed.
func RegisterRoutes(r *gin.Engine, d Dependencies) {
	taskHandler := NewTaskHandler(d.Tasks, d.Logger)
	viewHandler := NewViewHandler()
	wsHandler := NewWorkspaceHandler(d.Workspaces, d.Registry, d.Origins)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Sync API is running",
		})
	})

	api := r.Group("/api")
	api.Use(middleware.RequireAuth())

	workspaces := api.Group("/workspaces")
	{
		workspaces.POST("", wsHandler.CreateWorkspace)
		workspaces.GET("", wsHandler.ListWorkspaces)
	}

	ws := workspaces.Group("/:workspace_id")
	ws.Use(middleware.RequireWorkspaceAccess(d.Workspaces))
	{
		ws.GET("", wsHandler.GetWorkspace)
		ws.POST("/integrations/:origin/open", wsHandler.OpenIntegration)
		ws.POST("/integrations/:origin/close", middleware.RequireWorkspaceOwner(), wsHandler.CloseIntegration)
		ws.POST("/tasks/generate", taskHandler.GenerateTasks)
	}

	origin := ws.Group("/origins/:origin")
	origin.Use(middleware.RequireStore(d.Registry))
	{
		origin.GET("/tasks", taskHandler.ListTasks)
		origin.POST("/load", taskHandler.LoadTasks)
		origin.POST("/tasks", taskHandler.CreateTask)
		origin.POST("/tasks/bulk", taskHandler.BulkUpdateTasks)
		origin.GET("/tasks/:id", taskHandler.GetTask)
		origin.PATCH("/tasks/:id", taskHandler.UpdateTask)
		origin.POST("/tasks/:id/move", taskHandler.MoveTask)
		origin.DELETE("/tasks/:id", taskHandler.DeleteTask)
		origin.POST("/import", taskHandler.ImportTasks)

		origin.GET("/views/board", viewHandler.Board)
		origin.GET("/views/list", viewHandler.List)
		origin.GET("/views/calendar", viewHandler.Calendar)
		origin.GET("/views/gantt", viewHandler.Gantt)
	}
}
