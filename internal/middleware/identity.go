package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/model"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
)

// CurrentUser returns the user stored by Authenticate, or nil on routes
// that are not behind it.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// currentUserID is the rate limiter's view of the caller.  Anonymous
// callers share the "anon" identity.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
