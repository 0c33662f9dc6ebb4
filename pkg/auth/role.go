// Package auth implements password sessions, per-user roles and the guard
// that resolves both for a request.
package auth

import (
	"fmt"
	"strings"
)

// Role is an access tier.
type Role string

// Roles. RoleNone marks an authenticated user with no role row.
const (
	RoleNone       Role = ""
	RoleViewer     Role = "VIEWER"
	RoleEditor     Role = "EDITOR"
	RoleSuperadmin Role = "SUPERADMIN"
)

// Roles lists every assignable role, lowest first.
var Roles = []Role{RoleViewer, RoleEditor, RoleSuperadmin}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleViewer:
		return RoleViewer, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleSuperadmin:
		return RoleSuperadmin, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) rank() int {
	switch r {
	case RoleSuperadmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	case RoleNone:
		return 0
	default:
		return 0
	}
}

// AtLeast reports whether r grants everything floor grants. No role never
// satisfies a minimum.
func (r Role) AtLeast(floor Role) bool {
	if r == RoleNone {
		return false
	}

	return r.rank() >= floor.rank()
}

// Permission is an action guarded by role.
type Permission string

// Permissions.
const (
	PermReadContent  Permission = "content:read"
	PermWriteContent Permission = "content:write"
	PermManageUsers  Permission = "users:manage"
	PermViewActivity Permission = "activity:view"
	PermManageMedia  Permission = "media:write"
)

// Can reports whether r grants p.
func (r Role) Can(p Permission) bool {
	switch r {
	case RoleSuperadmin:
		return true
	case RoleEditor:
		switch p {
		case PermReadContent, PermWriteContent, PermManageMedia:
			return true
		case PermManageUsers, PermViewActivity:
			return false
		}
	case RoleViewer:
		switch p {
		case PermReadContent:
			return true
		case PermWriteContent, PermManageMedia, PermManageUsers, PermViewActivity:
			return false
		}
	case RoleNone:
		return false
	}

	return false
}

// String returns the role name, or "none".
func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}

	return string(r)
}
