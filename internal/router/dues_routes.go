package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/handler"
	"github.com/iliyamo/club-membership/internal/middleware"
	"github.com/iliyamo/club-membership/internal/model"
)

// RegisterDues registers the member dues view under /v1/dues and the admin
// ledger under /v1/admin/dues.
func RegisterDues(e *echo.Echo, d *handler.DuesHandler, auth middleware.Authenticator) {
	me := e.Group("/v1/dues", middleware.Authenticate(auth), middleware.RequireMinRole(model.RoleMember))
	me.GET("/me", d.Me)
	me.GET("/me/payments", d.MyPayments)

	g := e.Group("/v1/admin/dues", middleware.Authenticate(auth), middleware.RequireMinRole(model.RoleAdmin))
	g.POST("/charges", d.CreateCharge)
	g.GET("/charges", d.ListCharges)
	g.POST("/payments", d.RecordPayment)
	g.GET("/payments", d.Payments)
	g.GET("/status", d.Status)

	// ---- Exports ----
	g.GET("/export", d.ExportStatus)
	g.GET("/payments/export", d.ExportPayments)
	g.GET("/export.xlsx", d.ExportWorkbook)
}
