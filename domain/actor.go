package domain

import "strings"

// Role is the authorization role of an actor
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole maps a role name to a Role. Anything unrecognised is an employee.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleEmployee
	}
}

// ActorContext identifies who performs an operation and in which tenant
type ActorContext struct {
	UserID   uint `json:"user_id"`
	TenantID uint `json:"tenant_id"`
	Role     Role `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role
func (a ActorContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Label is the actor name recorded in audit entries
func (a ActorContext) Label() string {
	if a.IsAdmin() {
		return "admin"
	}
	return "employee"
}
