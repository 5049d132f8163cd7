// Package router registers the HTTP routes of the API on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/handler"
	"github.com/iliyamo/club-membership/internal/middleware"
	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the /v1/auth routes.  Register, login and refresh
// are public; the rest act on the caller's own account and require an
// active MEMBER or above.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth middleware.Authenticator) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	member := []echo.MiddlewareFunc{middleware.Authenticate(auth), middleware.RequireMinRole(model.RoleMember)}
	g.POST("/logout", a.Logout, member...)
	g.DELETE("/me", a.DeleteMe, member...)
	g.PATCH("/edit", a.Edit, member...)
	g.PATCH("/password", a.ChangePassword, member...)
}

// RegisterUsers registers the member-facing /v1/users routes.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, auth middleware.Authenticator) {
	g := e.Group("/v1/users", middleware.Authenticate(auth), middleware.RequireMinRole(model.RoleMember))
	g.GET("/profile", u.Profile)
	g.GET("/all", u.Directory)
}

// Deps bundles the services and settings every route group needs.
type Deps struct {
	DB       handler.Pinger
	Sessions *service.SessionAuthority
	Accounts *service.Accounts
	Ledger   *service.Ledger
	Cookie   handler.CookieConfig
}

// Register wires every route group onto e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.DB)
	RegisterAuth(e, handler.NewAuthHandler(d.Sessions, d.Accounts, d.Cookie), d.Sessions)
	RegisterUsers(e, handler.NewUserHandler(d.Accounts), d.Sessions)
	RegisterAdmin(e, handler.NewAdminHandler(d.Accounts), d.Sessions)
	RegisterDues(e, handler.NewDuesHandler(d.Ledger), d.Sessions)
}
