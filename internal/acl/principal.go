package acl

import "context"

// RoleBinding says where a principal's permissions come from.  It is one
// of StaticRole or DynamicRoles.
type RoleBinding interface {
	binding()
}

// StaticRole resolves permissions from the compile-time RolePermissions
// table.
type StaticRole struct {
	Name string
}

// DynamicRoles resolves permissions from the tenant's role store.  An empty
// RoleIDs means "load the user's roles from user_roles".
type DynamicRoles struct {
	RoleIDs []int64
}

func (StaticRole) binding()   {}
func (DynamicRoles) binding() {}

// Principal is the authenticated subject of a permission check.
type Principal struct {
	UserID int64

	// Role is the primary role name.  It drives the super-admin bypass and
	// branch scoping regardless of the binding.
	Role string

	// Binding selects the permission source.  Nil means StaticRole{Role}.
	Binding RoleBinding

	// BranchID is required for branch roles.
	BranchID *int64
}

// IsSuperAdmin reports whether p bypasses all checks.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

func (p *Principal) binding() RoleBinding {
	if p.Binding != nil {
		return p.Binding
	}
	return StaticRole{Name: p.Role}
}

// principalKey is unexported to avoid context-key collisions.
type principalKey struct{}

// WithPrincipal returns a new context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
