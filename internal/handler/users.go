package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/service"
)

// UserHandler serves the member-facing /v1/users endpoints.
type UserHandler struct {
	Accounts *service.Accounts
}

func NewUserHandler(a *service.Accounts) *UserHandler { return &UserHandler{Accounts: a} }

type profileResp struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	StudentID string `json:"student_id"`
	Grade     int    `json:"grade"`
	Phone     string `json:"phone"`
}

type directoryEntry struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Grade     int    `json:"grade"`
}

// Profile returns the caller's own record.
func (h *UserHandler) Profile(c echo.Context) error {
	u := currentUser(c)
	return c.JSON(http.StatusOK, profileResp{
		Name: u.Name, Email: u.Email, StudentID: u.StudentID, Grade: u.Grade, Phone: u.Phone,
	})
}

// Directory lists active MEMBERs with the fields members may see of each
// other.
func (h *UserHandler) Directory(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Accounts.MemberDirectory(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]directoryEntry, 0, len(users))
	for _, u := range users {
		out = append(out, directoryEntry{Name: u.Name, StudentID: u.StudentID, Grade: u.Grade})
	}
	return c.JSON(http.StatusOK, out)
}
