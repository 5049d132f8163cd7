package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

// AdminHandler serves the member administration endpoints under
// /v1/admin.  Every route requires ADMIN or above; DeleteUser additionally
// requires SUPERADMIN, which the service enforces.
type AdminHandler struct {
	Accounts *service.Accounts
}

func NewAdminHandler(a *service.Accounts) *AdminHandler { return &AdminHandler{Accounts: a} }

type setRoleReq struct {
	Role string `json:"role"`
}

type pendingItem struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

type memberItem struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	StudentID string     `json:"student_id"`
	Phone     string     `json:"phone"`
	Grade     int        `json:"grade"`
	Role      model.Role `json:"role"`
}

type deletedItem struct {
	memberItem
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
}

type snapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	StudentID string     `json:"student_id"`
	Role      model.Role `json:"role"`
}

func toMember(u model.User) memberItem {
	return memberItem{
		ID: u.ID, Email: u.Email, Name: u.Name, StudentID: u.StudentID,
		Phone: u.Phone, Grade: u.Grade, Role: u.Role,
	}
}

func toSnapshot(u *model.User) snapshot {
	return snapshot{ID: u.ID, Name: u.Name, Email: u.Email, StudentID: u.StudentID, Role: u.Role}
}

// ListPending lists GUESTs waiting for approval.
func (h *AdminHandler) ListPending(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Accounts.ListPending(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]pendingItem, 0, len(users))
	for _, u := range users {
		out = append(out, pendingItem{ID: u.ID, Email: u.Email, Name: u.Name, StudentID: u.StudentID})
	}
	return list(c, out)
}

func (h *AdminHandler) Approve(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Approve(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{
		"id": u.ID, "name": u.Name, "email": u.Email,
		"before_role": model.RoleGuest, "after_role": model.RoleMember,
	}})
}

func (h *AdminHandler) Reject(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Reject(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toSnapshot(u)})
}

func (h *AdminHandler) SetRole(c echo.Context) error {
	var req setRoleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.SetRole(ctx, currentUser(c), c.Param("id"), req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{
		"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role,
	}})
}

// DeleteUser soft deletes any non-SUPERADMIN user.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.DeleteByAdmin(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toSnapshot(u)})
}

func (h *AdminHandler) ListActive(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Accounts.ListActive(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]memberItem, 0, len(users))
	for _, u := range users {
		out = append(out, toMember(u))
	}
	return list(c, out)
}

func (h *AdminHandler) ListDeleted(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Accounts.ListDeleted(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]deletedItem, 0, len(users))
	for _, u := range users {
		out = append(out, deletedItem{memberItem: toMember(u), IsDeleted: u.IsDeleted, DeletedAt: u.DeletedAt})
	}
	return list(c, out)
}

// Details returns the full record of one active user.
func (h *AdminHandler) Details(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.GetDetails(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": u})
}

// Logs returns the newest audit entries.  ?limit= defaults to 50 and is
// capped at 200.
func (h *AdminHandler) Logs(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		limit = n
	}
	limit = service.ClampLogLimit(limit)

	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Accounts.ListLogs(ctx, limit)
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []model.AdminLogEntry{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": entries,
		"meta": echo.Map{"limit": limit, "count": len(entries)},
	})
}
