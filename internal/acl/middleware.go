// internal/acl/middleware.go
//
// Chi middleware helpers that enforce RBAC.
//
// Guards read the principal placed in the context by auth.Middleware and,
// for dynamic-role principals, the tenant session factory placed there by
// tenant.Middleware.  Static principals never open a transaction.

package acl

import (
	"errors"
	"net/http"

	"github.com/yanizio/campus/internal/api/response"
	"github.com/yanizio/campus/internal/session"
)

// RequirePermissions admits principals holding every code.
func (e *Engine) RequirePermissions(codes ...string) func(http.Handler) http.Handler {
	return e.guard(All, codes)
}

// RequireAnyPermission admits principals holding at least one code.
func (e *Engine) RequireAnyPermission(codes ...string) func(http.Handler) http.Handler {
	if len(codes) == 0 {
		panic("acl.RequireAnyPermission: at least one permission code must be supplied")
	}
	return e.guard(Any, codes)
}

func (e *Engine) guard(mode Mode, codes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				unauthorized(w)
				return
			}
			src := NewSessionSource(session.FromContext(r.Context()))
			if err := e.Authorize(r.Context(), src, p, mode, codes...); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the current principal's primary role is ANY of the
// supplied names.  Super administrators always pass.
func RequireRole(names ...string) func(http.Handler) http.Handler {
	if len(names) == 0 {
		panic("acl.RequireRole: at least one role name must be supplied")
	}
	allowSet := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowSet[n] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				unauthorized(w)
				return
			}
			if _, ok := allowSet[p.Role]; ok || p.IsSuperAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			response.Error(w, http.StatusForbidden, "forbidden", "role not permitted", nil)
		})
	}
}

// BranchScoped stores the principal's Scope in the context.  Branch roles
// without a branch are rejected with 403.
func BranchScoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil {
			unauthorized(w)
			return
		}
		s, err := ScopeFor(p)
		if err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), s)))
	})
}

// WriteError maps acl errors to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var pd *PermissionDeniedError
	switch {
	case errors.As(err, &pd):
		response.Error(w, http.StatusForbidden, "permission_denied", pd.Error(),
			map[string]any{"mode": pd.Mode.String(), "permissions": pd.Missing})
	case errors.Is(err, ErrNoBranch):
		response.Error(w, http.StatusForbidden, "no_branch", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "internal_error",
			http.StatusText(http.StatusInternalServerError), nil)
	}
}

func unauthorized(w http.ResponseWriter) {
	response.Error(w, http.StatusUnauthorized, "unauthenticated",
		http.StatusText(http.StatusUnauthorized), nil)
}
