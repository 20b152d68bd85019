package constants

// ContextKeyUserID is the key under which the authenticated user ID is
// stored in both the session and the request context.
const ContextKeyUserID = "user_id"

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "devtrack_session"

// Pagination bounds for list endpoints.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NotificationListLimit caps how many notifications the inbox endpoint returns.
const NotificationListLimit = 20
