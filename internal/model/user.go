package model

import "time"

// User represents a row of the `users` table.
//
// Fields:
//
//	ID                  – UUID primary key.
//	Email               – unique among active rows only.
//	PasswordHash        – bcrypt digest.
//	StudentID           – unique among active rows only.
//	Role                – GUEST..SUPERADMIN while active, DELETED once soft deleted.
//	IsDeleted/DeletedAt – soft delete marker; rows are never physically removed.
//	RefreshTokenVersion – monotonic counter embedded in refresh tokens (rtv).
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Name                string     `json:"name"`
	StudentID           string     `json:"student_id"`
	Phone               string     `json:"phone"`
	Grade               int        `json:"grade"`
	Role                Role       `json:"role"`
	IsDeleted           bool       `json:"is_deleted"`
	DeletedAt           *time.Time `json:"deleted_at"`
	RefreshTokenVersion int        `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Active reports whether the user is not soft deleted.
func (u *User) Active() bool { return u != nil && !u.IsDeleted }
