package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/constants"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/logging"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/sources"
	"github.com/yukikurage/task-sync/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUserHeader = "X-Test-User"

// fakeTracker is an in-memory integration backend for the issue tracker origin.
type fakeTracker struct {
	mu      sync.Mutex
	issues  []map[string]any
	failIDs map[string]bool
	puts    []map[string]any
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues: []map[string]any{
			{"_id": "i-1", "issueKey": "PROJ-1", "summary": "Fix login", "status": "To Do", "priority": "High", "dueDate": "2024-05-10"},
			{"_id": "i-2", "issueKey": "PROJ-2", "summary": "Ship release", "status": "In Progress", "priority": "Low"},
		},
		failIDs: map[string]bool{},
	}
}

func (f *fakeTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	var body map[string]any
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/issues"):
		writeEnvelope(w, f.issues)
	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/issues/"):
		id := path.Base(r.URL.Path)
		if f.failIDs[id] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"success": false, "message": "backend unavailable"}`)
			return
		}
		f.puts = append(f.puts, body)
		for _, issue := range f.issues {
			if issue["_id"] == id {
				for k, v := range body {
					issue[k] = v
				}
			}
		}
		writeEnvelope(w, nil)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/import"):
		var imported []map[string]any
		keys, _ := body["issueKeys"].([]any)
		for _, k := range keys {
			key, _ := k.(string)
			issue := map[string]any{"_id": "imp-" + key, "issueKey": key, "summary": "Imported " + key, "status": "Backlog"}
			imported = append(imported, issue)
			f.issues = append(f.issues, issue)
		}
		writeEnvelope(w, imported)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTracker) fail(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIDs[id] = true
}

func (f *fakeTracker) updates() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.puts...)
}

func writeEnvelope(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

type fakeGenerator struct {
	tasks []services.GeneratedTask
	err   error
}

func (g *fakeGenerator) GenerateTasksFromText(context.Context, string) ([]services.GeneratedTask, error) {
	return g.tasks, g.err
}

type handlerEnv struct {
	t          *testing.T
	db         *gorm.DB
	router     *gin.Engine
	registry   *store.Registry
	tracker    *fakeTracker
	generator  *fakeGenerator
	workspaces *services.WorkspaceService
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.Nop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, log))

	tracker := newFakeTracker()
	srv := httptest.NewServer(tracker)

	cfg := &config.Config{
		TrackerA:       config.TrackerConfig{BaseURL: srv.URL, BrowseURL: "https://acme.atlassian.net"},
		TrackerTimeout: time.Second,
	}
	factory := sources.NewFactory(cfg, repository.NewTaskRepository(db), log)
	registry := store.NewRegistry(factory, 0, log)
	generator := &fakeGenerator{}
	workspaces := services.NewWorkspaceService(repository.NewWorkspaceRepository(db))

	r := gin.New()
	r.Use(sessions.Sessions("task_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(func(c *gin.Context) {
		if raw := c.GetHeader(testUserHeader); raw != "" {
			id, _ := strconv.ParseUint(raw, 10, 64)
			sessions.Default(c).Set(constants.SessionKeyUserID, id)
		}
		c.Next()
	})
	RegisterRoutes(r, Dependencies{
		Workspaces: workspaces,
		Tasks:      services.NewTaskService(registry, generator, log),
		Registry:   registry,
		Origins:    factory,
		Logger:     log,
	})

	t.Cleanup(func() {
		registry.Shutdown()
		srv.Close()
		sqlDB.Close()
	})

	return &handlerEnv{
		t:          t,
		db:         db,
		router:     r,
		registry:   registry,
		tracker:    tracker,
		generator:  generator,
		workspaces: workspaces,
	}
}

func (e *handlerEnv) createUser(username string) *models.User {
	e.t.Helper()
	user := &models.User{Username: username}
	require.NoError(e.t, e.db.Create(user).Error)
	return user
}

func (e *handlerEnv) createWorkspace(name string, owner *models.User) *models.Workspace {
	e.t.Helper()
	ws, err := e.workspaces.CreateWorkspace(name, owner.ID)
	require.NoError(e.t, err)
	return ws
}

func (e *handlerEnv) addMember(ws *models.Workspace, user *models.User) {
	e.t.Helper()
	require.NoError(e.t, e.db.Create(&models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        models.RoleMember,
		JoinedAt:    time.Now(),
	}).Error)
}

// request performs an API call as userID; zero means unauthenticated.
func (e *handlerEnv) request(method, url string, body any, userID uint64) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(userID, 10))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// drain waits for the background work of a store, so that the database and
// the tracker backend reflect every accepted mutation.
func (e *handlerEnv) drain(workspaceID uint64, origin models.Origin) {
	e.t.Helper()
	s, err := e.registry.Store(context.Background(), workspaceID, origin)
	require.NoError(e.t, err)
	s.Drain()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
