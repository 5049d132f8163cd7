// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver specific error text.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row in the scope the
// method works on (for most user lookups, active rows only).
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update hits a unique key,
// such as an active email, an active student id or a charge period.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a guarded update matched no row because the
// state it expected has already moved on, e.g. a stale refresh token
// version.
var ErrConflict = errors.New("conflict")
