package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/handler"
	"github.com/iliyamo/club-membership/internal/middleware"
	"github.com/iliyamo/club-membership/internal/model"
)

// RegisterAdmin registers the member administration routes under
// /v1/admin.  All routes require ADMIN or above.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, auth middleware.Authenticator) {
	g := e.Group("/v1/admin", middleware.Authenticate(auth), middleware.RequireMinRole(model.RoleAdmin))

	// ---- Guests ----
	g.GET("/guest/pending", a.ListPending)
	g.POST("/guest/:id/approve", a.Approve)
	g.POST("/guest/:id/reject", a.Reject)

	// ---- Members ----
	g.PATCH("/member/:id/set_role", a.SetRole)
	g.GET("/users/all", a.ListActive)
	g.GET("/users/deleted", a.ListDeleted)
	g.GET("/users/:id/search", a.Details)
	g.DELETE("/users/:id", a.DeleteUser) // SUPERADMIN only, checked by the service

	// ---- Audit ----
	g.GET("/logs", a.Logs)
}
