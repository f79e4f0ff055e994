// Package tenant resolves the tenant, location and acting user of every request.
//
// The resolved values are carried on the request context only between the HTTP
// middleware and the handler. Handlers read them once and pass the tenant id and
// actor explicitly to use cases; nothing below the HTTP layer reads tenant state
// from the context.
package tenant

import (
	"regexp"

	"github.com/google/uuid"
)

// Role is the actor's role inside the tenant.
type Role string

// Built-in roles. Tenants may use additional role names in their transition rules.
const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleSalesRep  Role = "sales_rep"
	RoleFieldTech Role = "field_tech"
	RoleOffice    Role = "office"
	RoleSystem    Role = "system"
)

var roleRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// Valid reports whether r is a well-formed role name.
func (r Role) Valid() bool {
	return roleRegex.MatchString(string(r))
}

// CanApprove reports whether the role may decide manager approvals.
func (r Role) CanApprove() bool {
	switch r {
	case RoleManager, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// CanAdminister reports whether the role may manage tenant configuration such as
// transition rules and the outbox.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Actor is the user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Context is the resolved scope of a request.
type Context struct {
	TenantID   uuid.UUID
	LocationID *uuid.UUID
	Actor      Actor
}
