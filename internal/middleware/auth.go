package middleware

import (
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/constants"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
)

// RequireAuth admits requests whose session carries a user id. Sessions are
// issued by the account service sharing the session store.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(constants.SessionKeyUserID))
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint64)
	return id, ok
}

// sessionUserID accepts the encodings other session writers use for the id.
// Zero is never a valid user.
func sessionUserID(v any) (uint64, bool) {
	var id uint64
	switch v := v.(type) {
	case uint64:
		id = v
	case uint:
		id = uint64(v)
	case int:
		if v < 0 {
			return 0, false
		}
		id = uint64(v)
	case int64:
		if v < 0 {
			return 0, false
		}
		id = uint64(v)
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, false
		}
		id = uint64(v)
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	default:
		return 0, false
	}
	return id, id != 0
}
