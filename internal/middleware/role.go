package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

// RequireMinRole rejects callers below min in the role ordering.  It must
// run after Authenticate.
func RequireMinRole(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := service.RequireMinRole(CurrentUser(c), min); err != nil {
				return deny(c, err)
			}
			return next(c)
		}
	}
}
