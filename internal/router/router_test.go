package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/database/dbtest"
	"github.com/iliyamo/club-membership/internal/handler"
	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
	"github.com/iliyamo/club-membership/internal/utils"
)

const password = "correct-horse"

type testApp struct {
	e     *echo.Echo
	store *service.Store
	n     int
}

func newApp(t *testing.T) *testApp {
	t.Helper()
	db := dbtest.New(t)
	store := service.NewStore(db, database.SQLite)
	tokens, err := utils.NewTokenCodec(utils.TokenConfig{
		AccessSecret: "access-secret", RefreshSecret: "refresh-secret",
		AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	e := echo.New()
	Register(e, Deps{
		DB:       db,
		Sessions: service.NewSessionAuthority(store, tokens, nil),
		Accounts: service.NewAccounts(store, nil, nil, bcrypt.MinCost),
		Ledger:   service.NewLedger(store, nil, nil, nil),
		Cookie:   handler.CookieConfig{SameSite: "lax"},
	})
	return &testApp{e: e, store: store}
}

func (a *testApp) seed(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	a.n++
	u := &model.User{
		Email: email, PasswordHash: hash, Name: "user " + email,
		StudentID: fmt.Sprintf("2026%04d", a.n), Phone: "010", Grade: 1, Role: role,
	}
	require.NoError(t, a.store.Users.Insert(context.Background(), u))
	return u
}

func (a *testApp) call(t *testing.T, method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	rec := a.call(t, http.MethodPost, "/v1/auth/login", "", echo.Map{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bearer", body.TokenType)
	return body.AccessToken, refreshCookie(rec)
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == handler.RefreshCookie {
			return c
		}
	}
	return nil
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rec := a.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegisterApproveLoginRefreshFlow(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, "admin@x.com", model.RoleAdmin)
	adminToken, _ := a.login(t, admin.Email)

	rec := a.call(t, http.MethodPost, "/v1/auth/register", "", echo.Map{
		"email": "New@X.com", "password": password, "name": "Kim",
		"student_id": "R0001", "phone": "010-1", "grade": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg struct{ ID, Email string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "new@x.com", reg.Email)

	rec = a.call(t, http.MethodPost, "/v1/auth/register", "", echo.Map{
		"email": "new@x.com", "password": password, "name": "Kim",
		"student_id": "R0002", "phone": "010-1", "grade": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.call(t, http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "new@x.com", "password": password})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "pending approval", errorOf(t, rec))

	rec = a.call(t, http.MethodGet, "/v1/admin/guest/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = a.call(t, http.MethodPost, "/v1/admin/guest/"+reg.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"after_role":"MEMBER"`)

	_, first := a.login(t, "new@x.com")
	require.NotNil(t, first)
	assert.True(t, first.HttpOnly)
	assert.Equal(t, "/", first.Path)
	assert.Equal(t, 3600, first.MaxAge)

	rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", nil, first)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := refreshCookie(rec)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	// replaying the rotated cookie is refused and the cookie is cleared
	rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", nil, first)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "refresh token revoked", errorOf(t, rec))
	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing refresh token", errorOf(t, rec))
	assert.Nil(t, refreshCookie(rec))
}

func TestAuthAndRoleGates(t *testing.T) {
	a := newApp(t)
	a.seed(t, "m@x.com", model.RoleMember)
	member, _ := a.login(t, "m@x.com")

	rec := a.call(t, http.MethodGet, "/v1/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	assert.Equal(t, "not authenticated", errorOf(t, rec))

	rec = a.call(t, http.MethodGet, "/v1/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.call(t, http.MethodGet, "/v1/users/profile", member, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"user m@x.com","email":"m@x.com","student_id":"20260001","grade":1,"phone":"010"}`, rec.Body.String())

	for _, path := range []string{"/v1/admin/guest/pending", "/v1/admin/logs", "/v1/admin/dues/charges"} {
		rec = a.call(t, http.MethodGet, path, member, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	a := newApp(t)
	a.seed(t, "m@x.com", model.RoleMember)
	token, cookie := a.login(t, "m@x.com")

	rec := a.call(t, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, refreshCookie(rec))

	rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelfServiceEndpoints(t *testing.T) {
	a := newApp(t)
	a.seed(t, "m@x.com", model.RoleMember)
	token, _ := a.login(t, "m@x.com")

	rec := a.call(t, http.MethodPatch, "/v1/auth/edit", token, echo.Map{"current_password": password})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No changes provided", errorOf(t, rec))

	rec = a.call(t, http.MethodPatch, "/v1/auth/edit", token, echo.Map{"current_password": password, "grade": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"grade":3`)

	rec = a.call(t, http.MethodPatch, "/v1/auth/password", token, echo.Map{
		"current_password": password, "new_password": "another-pass", "confirm_password": "another-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Please log in again")

	rec = a.call(t, http.MethodDelete, "/v1/auth/me", token, echo.Map{"password": "another-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "User deleted")

	// the account is gone, so the access token no longer resolves
	rec = a.call(t, http.MethodGet, "/v1/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user not found", errorOf(t, rec))
}

func TestAdminMemberManagement(t *testing.T) {
	a := newApp(t)
	super := a.seed(t, "s@x.com", model.RoleSuperadmin)
	admin := a.seed(t, "a@x.com", model.RoleAdmin)
	m := a.seed(t, "m@x.com", model.RoleMember)
	superToken, _ := a.login(t, super.Email)
	adminToken, _ := a.login(t, admin.Email)

	rec := a.call(t, http.MethodPatch, "/v1/admin/member/"+m.ID+"/set_role", adminToken, echo.Map{"role": "ADMIN"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only SUPERADMIN can promote to ADMIN", errorOf(t, rec))

	rec = a.call(t, http.MethodPatch, "/v1/admin/member/"+m.ID+"/set_role", superToken, echo.Map{"role": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.call(t, http.MethodDelete, "/v1/admin/users/"+admin.ID, adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.call(t, http.MethodDelete, "/v1/admin/users/"+admin.ID, superToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "cannot delete the last ADMIN", errorOf(t, rec))

	rec = a.call(t, http.MethodDelete, "/v1/admin/users/"+m.ID, superToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"MEMBER"`)

	rec = a.call(t, http.MethodGet, "/v1/admin/users/"+m.ID+"/search", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.call(t, http.MethodGet, "/v1/admin/users/"+admin.ID+"/search", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.call(t, http.MethodGet, "/v1/admin/users/deleted", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = a.call(t, http.MethodGet, "/v1/admin/logs?limit=999", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Data []model.AdminLogEntry `json:"data"`
		Meta struct{ Limit, Count int }
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Equal(t, 200, logs.Meta.Limit)
	require.Equal(t, 1, logs.Meta.Count)
	assert.Equal(t, model.ActionDeleteUser, logs.Data[0].Action)
	assert.Equal(t, super.ID, logs.Data[0].Actor.ID)

	rec = a.call(t, http.MethodGet, "/v1/admin/logs?limit=x", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuesEndpoints(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, "a@x.com", model.RoleAdmin)
	m := a.seed(t, "m@x.com", model.RoleMember)
	adminToken, _ := a.login(t, admin.Email)
	memberToken, _ := a.login(t, m.Email)

	rec := a.call(t, http.MethodGet, "/v1/dues/me", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current_amount":0,"paid_amount":0,"status":"NO_CHARGE","arrears_total":0}`, rec.Body.String())

	rec = a.call(t, http.MethodPost, "/v1/admin/dues/charges", adminToken, echo.Map{"period": "2026-13", "amount": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "month must be between 01 and 12", errorOf(t, rec))

	rec = a.call(t, http.MethodPost, "/v1/admin/dues/charges", adminToken, echo.Map{"period": "2026-01", "amount": 10000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.call(t, http.MethodPost, "/v1/admin/dues/charges", adminToken, echo.Map{"period": "2026-01", "amount": 10000})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.call(t, http.MethodPost, "/v1/admin/dues/payments", adminToken, echo.Map{
		"user_id": m.ID, "period": "2026-01", "amount": 7000, "method": "CASH", "memo": "first half",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.call(t, http.MethodPost, "/v1/admin/dues/payments", adminToken, echo.Map{
		"user_id": m.ID, "period": "2026-02", "amount": 7000,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.call(t, http.MethodGet, "/v1/dues/me?period=2026-01", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current_period":"2026-01","current_amount":10000,"paid_amount":7000,"status":"PARTIAL","arrears_total":3000}`, rec.Body.String())

	rec = a.call(t, http.MethodGet, "/v1/dues/me/payments", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"memo":"first half"`)

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/status", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/status?period=2026-01", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []model.MemberDues
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/status?period=2030-01", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/payments?period=2026-01", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"period":"2026-01"`)
}

func TestDuesExports(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, "a@x.com", model.RoleAdmin)
	token, _ := a.login(t, admin.Email)
	rec := a.call(t, http.MethodPost, "/v1/admin/dues/charges", token, echo.Map{"period": "2026-01", "amount": 500})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/export?period=2026-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="dues_status_2026-01.csv"`, rec.Header().Get(echo.HeaderContentDisposition))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffperiod,name,student_id,status,amount_due,paid_amount\n"))
	assert.Contains(t, body, "2026-01,user a@x.com,20260001,UNPAID,500,0")

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/payments/export?period=2030-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\ufeffperiod,payment_id,user_id,amount,method,memo,created_by,created_at\n", rec.Body.String())

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/export?period=bad", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.call(t, http.MethodGet, "/v1/admin/dues/export.xlsx?period=2026-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="dues_status_2026-01.xlsx"`, rec.Header().Get(echo.HeaderContentDisposition))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	sheetRows, err := f.GetRows("dues_status")
	require.NoError(t, err)
	assert.Len(t, sheetRows, 2)
}
