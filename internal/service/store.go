package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/repository"
)

// Logger is the slice of gommon's logger the services use.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Store groups the repositories over one connection pool.  A Store
// returned inside WithTx is bound to that transaction.
type Store struct {
	db    *sql.DB
	Users *repository.UserRepo
	Logs  *repository.AdminLogRepo
	Dues  *repository.DuesRepo
}

func NewStore(db *sql.DB, d database.Dialect) *Store {
	return &Store{
		db:    db,
		Users: repository.NewUserRepo(db, d),
		Logs:  repository.NewAdminLogRepo(db, d),
		Dues:  repository.NewDuesRepo(db, d),
	}
}

// WithTx runs fn as one unit of work.  Any error returned by fn, or a
// panic, rolls the whole transaction back, audit rows included.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.db == nil {
		return errors.New("nested transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage(err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
	}()

	bound := &Store{
		Users: s.Users.WithTx(tx),
		Logs:  s.Logs.WithTx(tx),
		Dues:  s.Dues.WithTx(tx),
	}
	if err := fn(bound); err != nil {
		return storage(err)
	}
	if err := tx.Commit(); err != nil {
		return storage(err)
	}
	committed = true
	return nil
}
