package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/model"
)

const userCols = "id,email,password_hash,name,student_id,phone,grade,role,is_deleted,deleted_at,refresh_token_version,created_at,updated_at"

type UserRepo struct {
	q Querier
	d database.Dialect
}

func NewUserRepo(q Querier, d database.Dialect) *UserRepo { return &UserRepo{q: q, d: d} }

// WithTx returns a copy of the repo bound to tx.
func (r *UserRepo) WithTx(tx *sql.Tx) *UserRepo { return &UserRepo{q: tx, d: r.d} }

// NormalizeEmail is the canonical form stored and queried.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func scanUser(s scanner) (*model.User, error) {
	var (
		u         model.User
		role      string
		deletedAt sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.StudentID, &u.Phone, &u.Grade,
		&role, &u.IsDeleted, &deletedAt, &u.RefreshTokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	u.DeletedAt = nullTime(deletedAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *UserRepo) one(ctx context.Context, where string, args ...any) (*model.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userCols+" FROM users WHERE "+where+" LIMIT 1"), args...))
}

func (r *UserRepo) list(ctx context.Context, where, order string, args ...any) ([]model.User, error) {
	rows, err := r.q.QueryContext(ctx,
		r.d.Rebind("SELECT "+userCols+" FROM users WHERE "+where+" ORDER BY "+order), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Insert stores a new active user.  ID and timestamps are filled in when
// empty; a taken active email or student id yields ErrDuplicate.
func (r *UserRepo) Insert(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO users (id,email,password_hash,name,student_id,phone,grade,role,is_deleted,refresh_token_version,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`),
		u.ID, u.Email, u.PasswordHash, u.Name, u.StudentID, u.Phone, u.Grade, string(u.Role), false,
		u.RefreshTokenVersion, u.CreatedAt, u.UpdatedAt)
	if r.d.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Reactivate turns a soft-deleted row back into a GUEST with fresh
// registration data.  The refresh token version is left as is.
func (r *UserRepo) Reactivate(ctx context.Context, u *model.User) error {
	u.UpdatedAt = now()
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET password_hash=?, name=?, student_id=?, phone=?, grade=?, role=?, is_deleted=?, deleted_at=NULL, updated_at=?
		 WHERE id=? AND is_deleted`),
		u.PasswordHash, u.Name, u.StudentID, u.Phone, u.Grade, string(model.RoleGuest), false, u.UpdatedAt, u.ID)
	if err != nil {
		if r.d.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	u.Role, u.IsDeleted, u.DeletedAt = model.RoleGuest, false, nil
	return nil
}

// GetByID returns the user in any state.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, "id=?", id)
}

func (r *UserRepo) GetActiveByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, "id=? AND NOT is_deleted", id)
}

func (r *UserRepo) GetActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, "email=? AND NOT is_deleted", NormalizeEmail(email))
}

// GetDeletedByEmail returns the most recently retired row for email.
func (r *UserRepo) GetDeletedByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, "email=? AND is_deleted ORDER BY deleted_at DESC", NormalizeEmail(email))
}

func (r *UserRepo) GetActiveByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	return r.one(ctx, "student_id=? AND NOT is_deleted", studentID)
}

// LockActiveByID reads an active user and holds its row lock until the
// surrounding transaction ends.
func (r *UserRepo) LockActiveByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userCols+" FROM users WHERE id=? AND NOT is_deleted"+r.d.ForUpdate()), id))
}

func (r *UserRepo) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return r.list(ctx, "role=? AND NOT is_deleted", "student_id ASC", string(role))
}

func (r *UserRepo) ListActive(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "NOT is_deleted", "student_id ASC")
}

func (r *UserRepo) ListDeleted(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "is_deleted", "deleted_at DESC")
}

// ListMembersForDues returns the active users a charge applies to:
// MEMBER, ADMIN and SUPERADMIN, ordered by student id.
func (r *UserRepo) ListMembersForDues(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "role IN (?,?,?) AND NOT is_deleted", "student_id ASC",
		string(model.RoleMember), string(model.RoleAdmin), string(model.RoleSuperadmin))
}

// CountActiveAdminsForUpdate counts active ADMIN rows while locking them in
// id order, so a concurrent demotion or deletion has to wait for this
// transaction.  Callers take this lock before locking their target row.
// Aggregates cannot be combined with FOR UPDATE on Postgres, hence the
// row-wise count.
func (r *UserRepo) CountActiveAdminsForUpdate(ctx context.Context) (int, error) {
	rows, err := r.q.QueryContext(ctx,
		r.d.Rebind("SELECT id FROM users WHERE role=? AND NOT is_deleted ORDER BY id"+r.d.ForUpdate()), string(model.RoleAdmin))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		n++
	}
	return n, rows.Err()
}

// SetRole changes the role of an active user.
func (r *UserRepo) SetRole(ctx context.Context, id string, role model.Role) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		"UPDATE users SET role=?, updated_at=? WHERE id=? AND NOT is_deleted"),
		string(role), now(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SoftDelete retires an active user: role DELETED, deleted_at set and the
// refresh token version bumped so outstanding refresh tokens die with it.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	ts := now()
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET role=?, is_deleted=?, deleted_at=?, refresh_token_version=refresh_token_version+1, updated_at=?
		 WHERE id=? AND NOT is_deleted`),
		string(model.RoleDeleted), true, ts, ts, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ProfilePatch holds the optional fields of a profile edit; nil means
// unchanged.
type ProfilePatch struct {
	Name  *string
	Phone *string
	Grade *int
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Grade == nil
}

// UpdateProfile applies the non-nil fields of p.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p ProfilePatch) error {
	if p.Empty() {
		return nil
	}
	sets := []string{}
	args := []any{}
	if p.Name != nil {
		sets, args = append(sets, "name=?"), append(args, *p.Name)
	}
	if p.Phone != nil {
		sets, args = append(sets, "phone=?"), append(args, *p.Phone)
	}
	if p.Grade != nil {
		sets, args = append(sets, "grade=?"), append(args, *p.Grade)
	}
	sets, args = append(sets, "updated_at=?"), append(args, now(), id)
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=? AND NOT is_deleted"), args...)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdatePassword stores a new digest and bumps the refresh token version.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET password_hash=?, refresh_token_version=refresh_token_version+1, updated_at=?
		 WHERE id=? AND NOT is_deleted`),
		hash, now(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// BumpRefreshVersion invalidates every refresh token issued so far.
func (r *UserRepo) BumpRefreshVersion(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		"UPDATE users SET refresh_token_version=refresh_token_version+1 WHERE id=? AND NOT is_deleted"), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RotateRefreshVersion moves the version from expected to expected+1 in a
// single guarded update.  ErrConflict means another call already moved it
// (or the user was retired meanwhile).
func (r *UserRepo) RotateRefreshVersion(ctx context.Context, id string, expected int) (int, error) {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET refresh_token_version=refresh_token_version+1
		 WHERE id=? AND refresh_token_version=? AND NOT is_deleted`), id, expected)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrConflict
	}
	return expected + 1, nil
}

// ExistsSuperadmin reports whether any active SUPERADMIN exists.
func (r *UserRepo) ExistsSuperadmin(ctx context.Context) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, r.d.Rebind(
		"SELECT COUNT(*) FROM users WHERE role=? AND NOT is_deleted"), string(model.RoleSuperadmin)).Scan(&n)
	return n > 0, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
