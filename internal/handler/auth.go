package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

// AuthHandler serves registration, the session endpoints and the
// self-service account changes under /v1/auth.
type AuthHandler struct {
	Sessions *service.SessionAuthority
	Accounts *service.Accounts
	Cookie   CookieConfig
}

func NewAuthHandler(s *service.SessionAuthority, a *service.Accounts, cc CookieConfig) *AuthHandler {
	return &AuthHandler{Sessions: s, Accounts: a, Cookie: cc}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type deleteMeReq struct {
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type profileData struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	StudentID string     `json:"student_id"`
	Phone     string     `json:"phone"`
	Grade     int        `json:"grade"`
	Role      model.Role `json:"role"`
}

// Register creates a pending GUEST account.  Login stays closed until an
// admin approves it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Register(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": u.ID, "email": u.Email})
}

// Login returns an access token and sets the refresh cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	h.Cookie.set(c, sess.RefreshToken, h.Sessions.RefreshTTL())
	return c.JSON(http.StatusOK, tokenResp{AccessToken: sess.AccessToken, TokenType: "bearer"})
}

// Refresh rotates the refresh cookie and returns a new access token.  A
// rejected cookie is cleared so the browser stops sending it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := ""
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		token = ck.Value
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		if token != "" && service.KindOf(err) == service.KindUnauthorized {
			h.Cookie.clear(c)
		}
		return respondError(c, err)
	}
	h.Cookie.set(c, sess.RefreshToken, h.Sessions.RefreshTTL())
	return c.JSON(http.StatusOK, tokenResp{AccessToken: sess.AccessToken, TokenType: "bearer"})
}

// Logout revokes every refresh token of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.Logout(ctx, currentUser(c).ID); err != nil {
		return respondError(c, err)
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}

// DeleteMe retires the caller's account after re-checking the password.
func (h *AuthHandler) DeleteMe(c echo.Context) error {
	var req deleteMeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	already, err := h.Accounts.DeleteSelf(ctx, currentUser(c).ID, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	if already {
		return c.JSON(http.StatusOK, echo.Map{"message": "User already deleted"})
	}
	h.Cookie.clear(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted"})
}

// Edit applies a partial profile change confirmed by the current password.
func (h *AuthHandler) Edit(c echo.Context) error {
	var req service.ProfileInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.UpdateProfile(ctx, currentUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated",
		"data": profileData{
			ID: u.ID, Email: u.Email, Name: u.Name, StudentID: u.StudentID,
			Phone: u.Phone, Grade: u.Grade, Role: u.Role,
		},
	})
}

// ChangePassword replaces the password and ends every session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req service.PasswordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, currentUser(c), req); err != nil {
		return respondError(c, err)
	}
	h.Cookie.clear(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated. Please log in again."})
}
