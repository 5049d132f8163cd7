package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/repository"
	"github.com/iliyamo/club-membership/internal/utils"
)

// Session is what a successful login or refresh hands to the transport:
// an access token for the response body and a refresh token for the
// cookie.
type Session struct {
	UserID       string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// SessionAuthority issues, rotates and revokes tokens.  The per-user
// refresh_token_version is the only state; a refresh token is valid only
// while its rtv claim equals that counter.
type SessionAuthority struct {
	store  *Store
	tokens *utils.TokenCodec
	log    Logger
}

func NewSessionAuthority(store *Store, tokens *utils.TokenCodec, log Logger) *SessionAuthority {
	if log == nil {
		log = nopLogger{}
	}
	return &SessionAuthority{store: store, tokens: tokens, log: log}
}

// RefreshTTL is the cookie lifetime matching issued refresh tokens.
func (s *SessionAuthority) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// Login checks credentials against active users.  Unknown email and wrong
// password fail identically.  The refresh version is not changed.
func (s *SessionAuthority) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.Users.GetActiveByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storage(err)
	}
	if u == nil || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, unauthorized("invalid credentials")
	}
	if u.Role == model.RoleGuest {
		return nil, forbidden("pending approval")
	}
	sess, err := s.issue(u.ID, u.RefreshTokenVersion)
	if err != nil {
		return nil, err
	}
	s.log.Infof("login user=%s role=%s", u.ID, u.Role)
	return sess, nil
}

// Refresh exchanges a refresh token for a new pair and moves the user's
// version forward by one, so the presented token can never be used again.
// The version check and the increment are one guarded UPDATE: of two
// concurrent calls with the same token only one succeeds.
func (s *SessionAuthority) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, unauthorized("missing refresh token")
	}
	sub, rtv, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, unauthorized("invalid refresh token")
	}
	if _, err := uuid.Parse(sub); err != nil {
		return nil, unauthorized("invalid refresh token")
	}

	u, err := s.store.Users.GetActiveByID(ctx, sub)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorized("user not found")
	}
	if err != nil {
		return nil, storage(err)
	}
	if rtv != u.RefreshTokenVersion {
		s.log.Warnf("refresh replay user=%s token_rtv=%d current=%d", u.ID, rtv, u.RefreshTokenVersion)
		return nil, unauthorized("refresh token revoked")
	}

	next, err := s.store.Users.RotateRefreshVersion(ctx, u.ID, rtv)
	if errors.Is(err, repository.ErrConflict) {
		return nil, unauthorized("refresh token revoked")
	}
	if err != nil {
		return nil, storage(err)
	}
	return s.issue(u.ID, next)
}

// Logout revokes every outstanding refresh token of the user.
func (s *SessionAuthority) Logout(ctx context.Context, userID string) error {
	if err := s.store.Users.BumpRefreshVersion(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized("user not found")
		}
		return storage(err)
	}
	s.log.Infof("logout user=%s", userID)
	return nil
}

// Authenticate resolves a bearer access token to an active user.
func (s *SessionAuthority) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, unauthorized("not authenticated")
	}
	sub, err := s.tokens.DecodeAccess(accessToken)
	if err != nil {
		return nil, unauthorized("could not validate credentials")
	}
	if _, err := uuid.Parse(sub); err != nil {
		return nil, unauthorized("could not validate credentials")
	}
	u, err := s.store.Users.GetActiveByID(ctx, sub)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorized("user not found")
	}
	if err != nil {
		return nil, storage(err)
	}
	return u, nil
}

// RequireMinRole fails with Forbidden unless u holds min or above.
func RequireMinRole(u *model.User, min model.Role) error {
	if u == nil {
		return unauthorized("not authenticated")
	}
	if !u.Role.AtLeast(min) {
		return forbidden("requires role >= " + min.String())
	}
	return nil
}

func (s *SessionAuthority) issue(userID string, rtv int) (*Session, error) {
	access, err := s.tokens.CreateAccess(userID, 0)
	if err != nil {
		return nil, storage(err)
	}
	refresh, err := s.tokens.CreateRefresh(userID, rtv, 0)
	if err != nil {
		return nil, storage(err)
	}
	return &Session{
		UserID:       userID,
		AccessToken:  access.Token,
		AccessExp:    access.Exp,
		RefreshToken: refresh.Token,
		RefreshExp:   refresh.Exp,
	}, nil
}
