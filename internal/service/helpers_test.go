package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/database/dbtest"
	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/queue"
	"github.com/iliyamo/club-membership/internal/utils"
)

const testPassword = "correct-horse"

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
	fail   bool
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker down")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []queue.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type env struct {
	store    *Store
	tokens   *utils.TokenCodec
	sessions *SessionAuthority
	accounts *Accounts
	ledger   *Ledger
	events   *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	store := NewStore(db, database.SQLite)
	tokens, err := utils.NewTokenCodec(utils.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	rec := &recorder{}
	return &env{
		store:    store,
		tokens:   tokens,
		sessions: NewSessionAuthority(store, tokens, nil),
		accounts: NewAccounts(store, rec, nil, bcrypt.MinCost),
		ledger:   NewLedger(store, nil, rec, nil),
		events:   rec,
	}
}

var seq int

// seed inserts an active user with testPassword directly through the repo.
func (e *env) seed(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	seq++
	u := &model.User{
		Email: email, PasswordHash: hash, Name: "user " + email,
		StudentID: fmt.Sprintf("2026%04d", seq),
		Phone:     "010-1234-5678", Grade: 2, Role: role,
	}
	require.NoError(t, e.store.Users.Insert(context.Background(), u))
	return u
}

func (e *env) reload(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := e.store.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *env) logCount(t *testing.T) int {
	t.Helper()
	entries, err := e.store.Logs.ListRecent(context.Background(), 200)
	require.NoError(t, err)
	return len(entries)
}

func requireKind(t *testing.T, err error, k Kind, reason string) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "unclassified error: %v", err)
	require.Equal(t, k, se.Kind, se.Error())
	if reason != "" {
		require.Equal(t, reason, se.Reason)
	}
}
