package constants

// SessionKeyUserID is the session value holding the authenticated user
const SessionKeyUserID = "user_id"

// Context keys
const (
	ContextKeyUserID          = "user_id"
	ContextKeyWorkspace       = "workspace"
	ContextKeyWorkspaceMember = "workspace_member"
	ContextKeyStore           = "store"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Limits
const (
	MaxAIGeneratedTasks = 20
	MaxBulkTaskIDs      = 100
	MaxGenerateTextLen  = 10000
)
