package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/task-sync/internal/constants"
)

func TestSessionUserID(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  uint64
		ok    bool
	}{
		{"uint64", uint64(7), 7, true},
		{"int", 7, 7, true},
		{"int64", int64(7), 7, true},
		{"whole float", float64(7), 7, true},
		{"string", "7", 7, true},
		{"missing", nil, 0, false},
		{"zero", uint64(0), 0, false},
		{"negative", -1, 0, false},
		{"fractional", 7.5, 0, false},
		{"garbage", "seven", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sessionUserID(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(sessionValue any) *gin.Engine {
		r := gin.New()
		r.Use(sessions.Sessions("task_session", cookie.NewStore([]byte("test-secret"))))
		r.Use(func(c *gin.Context) {
			if sessionValue != nil {
				sessions.Default(c).Set(constants.SessionKeyUserID, sessionValue)
			}
			c.Next()
		})
		r.GET("/me", RequireAuth(), func(c *gin.Context) {
			id, ok := GetUserID(c)
			assert.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"id": id})
		})
		return r
	}

	w := httptest.NewRecorder()
	newRouter("42").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 42}`, w.Body.String())

	w = httptest.NewRecorder()
	newRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
