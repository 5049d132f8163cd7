package model

import "strings"

// Role is the authorization level stored in users.role.  The four active
// roles form a total order; DELETED sits outside the ordering and only ever
// appears together with users.is_deleted = true.
type Role string

const (
	RoleGuest      Role = "GUEST"
	RoleMember     Role = "MEMBER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperadmin Role = "SUPERADMIN"
	RoleDeleted    Role = "DELETED"
)

// roleLevel is the ordering table.  DELETED is intentionally absent.
var roleLevel = map[Role]int{
	RoleGuest:      0,
	RoleMember:     1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// Level returns the ordinal of an active role and false for DELETED or
// unknown values.
func (r Role) Level() (int, bool) {
	l, ok := roleLevel[r]
	return l, ok
}

// AtLeast reports whether r meets the minimum role min.  DELETED and unknown
// roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleLevel[r]
	if !ok {
		return false
	}
	want, ok := roleLevel[min]
	if !ok {
		return false
	}
	return have >= want
}

// IsActive reports whether r is one of the four ordered roles.
func (r Role) IsActive() bool {
	_, ok := roleLevel[r]
	return ok
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes s and returns the matching active role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsActive()
}
