package service

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/queue"
	"github.com/iliyamo/club-membership/internal/repository"
	"github.com/iliyamo/club-membership/internal/utils"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// Accounts owns registration, self service and the admin lifecycle
// transitions.  Every admin transition runs in one transaction together
// with its audit row.
type Accounts struct {
	store  *Store
	events EventPublisher
	log    Logger
	cost   int
}

func NewAccounts(store *Store, events EventPublisher, log Logger, bcryptCost int) *Accounts {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Accounts{store: store, events: events, log: log, cost: bcryptCost}
}

// RegisterInput is the self-registration form.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Phone     string `json:"phone"`
	Grade     int    `json:"grade"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 64)),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.StudentID, validation.Required, validation.Length(1, 20)),
		validation.Field(&in.Phone, validation.Required, validation.Length(1, 30)),
		validation.Field(&in.Grade, validation.Required, validation.Min(1)),
	)
}

// Register creates a GUEST.  An email that only matches a retired row
// reactivates that row instead of inserting a new one.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	in.Name, in.StudentID, in.Phone = strings.TrimSpace(in.Name), strings.TrimSpace(in.StudentID), strings.TrimSpace(in.Phone)
	if err := in.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	hash, err := utils.HashPassword(in.Password, a.cost)
	if err != nil {
		return nil, storage(err)
	}

	var (
		out         *model.User
		reactivated bool
	)
	err = a.store.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.Users.GetActiveByEmail(ctx, in.Email); err == nil {
			return conflict("Email already registered")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		deleted, err := tx.Users.GetDeletedByEmail(ctx, in.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		// retired rows are never active, so any active holder is someone else
		if _, err := tx.Users.GetActiveByStudentID(ctx, in.StudentID); err == nil {
			return conflict("Student ID already in use")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		u := &model.User{
			Email:        in.Email,
			PasswordHash: hash,
			Name:         in.Name,
			StudentID:    in.StudentID,
			Phone:        in.Phone,
			Grade:        in.Grade,
			Role:         model.RoleGuest,
		}
		if deleted != nil {
			u.ID = deleted.ID
			u.RefreshTokenVersion = deleted.RefreshTokenVersion
			u.CreatedAt = deleted.CreatedAt
			err = tx.Users.Reactivate(ctx, u)
			reactivated = true
		} else {
			err = tx.Users.Insert(ctx, u)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("Email already registered")
		}
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("register user=%s reactivated=%t", out.ID, reactivated)
	return out, nil
}

// Profile returns the active user with id.
func (a *Accounts) Profile(ctx context.Context, id string) (*model.User, error) {
	return a.activeUser(ctx, id)
}

// ProfileInput is a partial profile edit confirmed by the current password.
type ProfileInput struct {
	CurrentPassword string  `json:"current_password"`
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	Grade           *int    `json:"grade"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&in.Phone, validation.NilOrNotEmpty, validation.Length(1, 30)),
		validation.Field(&in.Grade, validation.NilOrNotEmpty, validation.Min(1)),
	)
}

// UpdateProfile applies the provided fields for u.
func (a *Accounts) UpdateProfile(ctx context.Context, u *model.User, in ProfileInput) (*model.User, error) {
	patch := repository.ProfilePatch{Name: in.Name, Phone: in.Phone, Grade: in.Grade}
	if patch.Empty() {
		return nil, invalid("No changes provided")
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return nil, unauthorized("Invalid password")
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	if err := a.store.Users.UpdateProfile(ctx, u.ID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, storage(err)
	}
	return a.activeUser(ctx, u.ID)
}

// PasswordInput is the change-password form.
type PasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword replaces the password of u and revokes every refresh
// token issued before.
func (a *Accounts) ChangePassword(ctx context.Context, u *model.User, in PasswordInput) error {
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return unauthorized("Invalid password")
	}
	if in.NewPassword != in.ConfirmPassword {
		return invalid("Passwords do not match")
	}
	if utils.VerifyPassword(u.PasswordHash, in.NewPassword) {
		return invalid("New password must be different")
	}
	if err := validation.Validate(in.NewPassword, validation.Required, validation.Length(8, 64)); err != nil {
		return invalid("new_password: " + err.Error())
	}
	hash, err := utils.HashPassword(in.NewPassword, a.cost)
	if err != nil {
		return storage(err)
	}
	if err := a.store.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("User not found")
		}
		return storage(err)
	}
	a.log.Infof("password changed user=%s", u.ID)
	return nil
}

// DeleteSelf retires the caller's own account after re-checking the
// password.  Admins cannot leave this way.  Deleting an already retired
// account reports success without touching it; the bool tells which case
// happened.
func (a *Accounts) DeleteSelf(ctx context.Context, userID, password string) (alreadyDeleted bool, err error) {
	var role model.Role
	err = a.store.WithTx(ctx, func(tx *Store) error {
		u, err := tx.Users.GetByID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("User not found")
		}
		if err != nil {
			return err
		}
		if !utils.VerifyPassword(u.PasswordHash, password) {
			return unauthorized("Invalid password")
		}
		if u.Role == model.RoleAdmin || u.Role == model.RoleSuperadmin {
			return forbidden("Admin users cannot delete")
		}
		if u.IsDeleted {
			alreadyDeleted = true
			return nil
		}
		role = u.Role
		if err := tx.Users.SoftDelete(ctx, u.ID); err != nil {
			return err
		}
		return tx.Logs.Insert(ctx, auditRow(u.ID, u.ID, model.ActionDeleteUser, role, model.RoleDeleted))
	})
	if err != nil || alreadyDeleted {
		return alreadyDeleted, err
	}
	a.log.Infof("self delete user=%s", userID)
	emit(ctx, a.events, a.log, queue.Event{
		Kind: queue.EventUserSelfDeleted, ActorID: userID, TargetUserID: userID,
		BeforeRole: role.String(), AfterRole: model.RoleDeleted.String(),
	})
	return false, nil
}

// Approve promotes a pending GUEST to MEMBER.
func (a *Accounts) Approve(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	if !validID(targetID) {
		return nil, notFound("User not found")
	}
	var target *model.User
	err := a.store.WithTx(ctx, func(tx *Store) error {
		u, err := lockTarget(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if u.Role != model.RoleGuest {
			return conflict("User already approved")
		}
		if err := tx.Users.SetRole(ctx, u.ID, model.RoleMember); err != nil {
			return err
		}
		if err := tx.Logs.Insert(ctx, auditRow(actor.ID, u.ID, model.ActionApproveUser, model.RoleGuest, model.RoleMember)); err != nil {
			return err
		}
		u.Role = model.RoleMember
		target = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("approve actor=%s target=%s", actor.ID, target.ID)
	a.emitRole(ctx, queue.EventUserApproved, actor.ID, target.ID, model.RoleGuest, model.RoleMember)
	return target, nil
}

// Reject retires a pending GUEST.  The returned user is the snapshot
// taken before the change.
func (a *Accounts) Reject(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	if !validID(targetID) {
		return nil, notFound("User not found")
	}
	var snapshot *model.User
	err := a.store.WithTx(ctx, func(tx *Store) error {
		u, err := lockTarget(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if u.ID == actor.ID {
			return forbidden("Cannot reject yourself")
		}
		if u.Role != model.RoleGuest {
			return conflict("User already " + u.Role.String())
		}
		if err := tx.Logs.Insert(ctx, auditRow(actor.ID, u.ID, model.ActionRejectUser, u.Role, model.RoleDeleted)); err != nil {
			return err
		}
		if err := tx.Users.SoftDelete(ctx, u.ID); err != nil {
			return err
		}
		snapshot = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("reject actor=%s target=%s", actor.ID, snapshot.ID)
	a.emitRole(ctx, queue.EventUserRejected, actor.ID, snapshot.ID, model.RoleGuest, model.RoleDeleted)
	return snapshot, nil
}

// SetRole moves an active user between MEMBER and ADMIN.  The guards run
// in a fixed order so the same request always reports the same rule.  The
// admin rows are locked before the target so concurrent demotions queue
// behind each other and each sees the other's outcome.
func (a *Accounts) SetRole(ctx context.Context, actor *model.User, targetID, roleName string) (*model.User, error) {
	newRole, ok := model.ParseRole(roleName)
	if !ok || newRole == model.RoleGuest {
		return nil, invalid("role must be MEMBER or ADMIN")
	}
	if !validID(targetID) {
		return nil, notFound("User not found")
	}
	var (
		target *model.User
		before model.Role
	)
	err := a.store.WithTx(ctx, func(tx *Store) error {
		admins, err := tx.Users.CountActiveAdminsForUpdate(ctx)
		if err != nil {
			return err
		}
		u, err := lockTarget(ctx, tx, targetID)
		if err != nil {
			return err
		}
		switch {
		case u.Role == newRole:
			return conflict("User already " + u.Role.String())
		case u.ID == actor.ID:
			return forbidden("Cannot change your own role")
		case newRole == model.RoleSuperadmin:
			return forbidden("Cannot promote to SUPERADMIN")
		case u.Role == model.RoleSuperadmin:
			return forbidden("Cannot change SUPERADMIN role")
		case u.Role == model.RoleGuest:
			return forbidden("Cannot change role of a pending user")
		case newRole == model.RoleAdmin && actor.Role != model.RoleSuperadmin:
			return forbidden("Only SUPERADMIN can promote to ADMIN")
		case u.Role == model.RoleAdmin && admins <= 1:
			return forbidden("Cannot demote the last ADMIN")
		}
		before = u.Role
		if err := tx.Users.SetRole(ctx, u.ID, newRole); err != nil {
			return err
		}
		if err := tx.Logs.Insert(ctx, auditRow(actor.ID, u.ID, model.ActionSetRole, before, newRole)); err != nil {
			return err
		}
		u.Role = newRole
		target = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("set role actor=%s target=%s %s->%s", actor.ID, target.ID, before, newRole)
	a.emitRole(ctx, queue.EventRoleChanged, actor.ID, target.ID, before, newRole)
	return target, nil
}

// DeleteByAdmin retires any non-SUPERADMIN user.  Only a SUPERADMIN may
// call it, and the last ADMIN is protected the same way as in SetRole.
func (a *Accounts) DeleteByAdmin(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	if err := RequireMinRole(actor, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	if !validID(targetID) {
		return nil, notFound("User not found")
	}
	var snapshot *model.User
	err := a.store.WithTx(ctx, func(tx *Store) error {
		admins, err := tx.Users.CountActiveAdminsForUpdate(ctx)
		if err != nil {
			return err
		}
		u, err := lockTarget(ctx, tx, targetID)
		if err != nil {
			return err
		}
		switch {
		case u.ID == actor.ID:
			return forbidden("Cannot delete yourself")
		case u.Role == model.RoleSuperadmin:
			return forbidden("Cannot delete SUPERADMIN user")
		case u.Role == model.RoleAdmin && admins <= 1:
			return forbidden("cannot delete the last ADMIN")
		}
		if err := tx.Logs.Insert(ctx, auditRow(actor.ID, u.ID, model.ActionDeleteUser, u.Role, model.RoleDeleted)); err != nil {
			return err
		}
		if err := tx.Users.SoftDelete(ctx, u.ID); err != nil {
			return err
		}
		snapshot = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("admin delete actor=%s target=%s role=%s", actor.ID, snapshot.ID, snapshot.Role)
	a.emitRole(ctx, queue.EventUserDeleted, actor.ID, snapshot.ID, snapshot.Role, model.RoleDeleted)
	return snapshot, nil
}

// ListPending returns active GUESTs awaiting approval.
func (a *Accounts) ListPending(ctx context.Context) ([]model.User, error) {
	users, err := a.store.Users.ListByRole(ctx, model.RoleGuest)
	return users, storage(err)
}

// ListActive returns every active user ordered by student id.
func (a *Accounts) ListActive(ctx context.Context) ([]model.User, error) {
	users, err := a.store.Users.ListActive(ctx)
	return users, storage(err)
}

// ListDeleted returns retired users, most recently deleted first.
func (a *Accounts) ListDeleted(ctx context.Context) ([]model.User, error) {
	users, err := a.store.Users.ListDeleted(ctx)
	return users, storage(err)
}

// MemberDirectory is the member-visible roster: active MEMBERs by student
// id.
func (a *Accounts) MemberDirectory(ctx context.Context) ([]model.User, error) {
	users, err := a.store.Users.ListByRole(ctx, model.RoleMember)
	return users, storage(err)
}

// GetDetails returns the full record of an active user.
func (a *Accounts) GetDetails(ctx context.Context, id string) (*model.User, error) {
	return a.activeUser(ctx, id)
}

// ClampLogLimit maps a requested page size into [1,200].  Zero or less
// means the default page.
func ClampLogLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLogLimit
	case limit > maxLogLimit:
		return maxLogLimit
	}
	return limit
}

// ListLogs returns recent audit entries, newest first.
func (a *Accounts) ListLogs(ctx context.Context, limit int) ([]model.AdminLogEntry, error) {
	entries, err := a.store.Logs.ListRecent(ctx, ClampLogLimit(limit))
	return entries, storage(err)
}

// BootstrapInput describes the initial SUPERADMIN.
type BootstrapInput struct {
	Email     string
	Password  string
	Name      string
	StudentID string
	Phone     string
	Grade     int
}

// BootstrapSuperadmin creates the SUPERADMIN unless one already exists.
// It refuses to take over an email held by another active user.
func (a *Accounts) BootstrapSuperadmin(ctx context.Context, in BootstrapInput) (*model.User, bool, error) {
	if err := validation.Validate(in.Password, validation.Required, validation.Length(8, 64)); err != nil {
		return nil, false, invalid("password: " + err.Error())
	}
	hash, err := utils.HashPassword(in.Password, a.cost)
	if err != nil {
		return nil, false, storage(err)
	}
	var (
		out     *model.User
		created bool
	)
	err = a.store.WithTx(ctx, func(tx *Store) error {
		exists, err := tx.Users.ExistsSuperadmin(ctx)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if _, err := tx.Users.GetActiveByEmail(ctx, in.Email); err == nil {
			return conflict("Email already used by a non-SUPERADMIN user")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		u := &model.User{
			Email: in.Email, PasswordHash: hash, Name: in.Name, StudentID: in.StudentID,
			Phone: in.Phone, Grade: in.Grade, Role: model.RoleSuperadmin,
		}
		if err := tx.Users.Insert(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("Student ID already in use")
			}
			return err
		}
		out, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		a.log.Infof("superadmin created user=%s", out.ID)
	}
	return out, created, nil
}

func (a *Accounts) activeUser(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, notFound("User not found")
	}
	u, err := a.store.Users.GetActiveByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, storage(err)
	}
	return u, nil
}

func (a *Accounts) emitRole(ctx context.Context, kind queue.EventKind, actorID, targetID string, before, after model.Role) {
	emit(ctx, a.events, a.log, queue.Event{
		Kind: kind, ActorID: actorID, TargetUserID: targetID,
		BeforeRole: before.String(), AfterRole: after.String(),
	})
}

func lockTarget(ctx context.Context, tx *Store, id string) (*model.User, error) {
	u, err := tx.Users.LockActiveByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("User not found")
	}
	return u, err
}

func auditRow(actorID, targetID string, action model.AdminAction, before, after model.Role) *model.AdminActionLog {
	b, af := before.String(), after.String()
	return &model.AdminActionLog{
		ActorID:      actorID,
		TargetUserID: &targetID,
		Action:       action,
		BeforeRole:   &b,
		AfterRole:    &af,
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
