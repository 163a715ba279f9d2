// Package rbac holds the issue authorization policy. Every mutation path
// asks these predicates rather than comparing roles or owners itself.
package rbac

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
	// RoleUnknown stands for any stored value outside the enumeration.
	RoleUnknown Role = ""
)

// ParseRole maps a stored role string onto the closed enumeration. Matching
// is exact: anything else, including other spellings of a known role,
// becomes RoleUnknown, which no predicate allows.
func ParseRole(role string) Role {
	switch Role(role) {
	case RoleAdmin:
		return RoleAdmin
	case RoleMember:
		return RoleMember
	case RoleViewer:
		return RoleViewer
	default:
		return RoleUnknown
	}
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember || r == RoleViewer
}

// Actor is the subject of an authorization decision.
type Actor struct {
	ID   string
	Role Role
}

// CanCreate reports whether the actor may open new issues.
func CanCreate(a *Actor) bool {
	if a == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// CanEdit reports whether the actor may change an issue owned by ownerID.
func CanEdit(a *Actor, ownerID string) bool {
	if a == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleMember:
		return owns(a, ownerID)
	default:
		return false
	}
}

// CanDelete reports whether the actor may remove an issue owned by ownerID.
// VIEWER is denied here too, so a VIEWER who was demoted after opening an
// issue cannot remove it.
func CanDelete(a *Actor, ownerID string) bool {
	if a == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleMember:
		return owns(a, ownerID)
	default:
		return false
	}
}

// CanComment reports whether the actor may add comments.
func CanComment(a *Actor) bool {
	return a != nil && a.Role.Valid()
}

// CanManageUsers reports whether the actor may change other users' roles.
func CanManageUsers(a *Actor) bool {
	return a != nil && a.Role == RoleAdmin
}

func owns(a *Actor, ownerID string) bool {
	return a.ID != "" && a.ID == ownerID
}
