package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

// Authenticator resolves a bearer access token to the active user it was
// issued for.  *service.SessionAuthority implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// Authenticate returns an Echo middleware that requires a valid Bearer
// access token.  The resolved user is stored in the context and can be read
// with CurrentUser.  The user row is loaded on every request so a role
// change or deletion takes effect immediately.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := auth.Authenticate(c.Request().Context(), bearerToken(c))
			if err != nil {
				return deny(c, err)
			}
			c.Set(userKey, u)
			c.Set(userIDKey, u.ID)
			return next(c)
		}
	}
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// deny writes the response for a failed authentication or authorization
// check.
func deny(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	case service.KindForbidden:
		status = http.StatusForbidden
	default:
		c.Logger().Errorf("authenticate: %v", err)
	}
	return c.JSON(status, echo.Map{"error": service.ReasonOf(err)})
}
