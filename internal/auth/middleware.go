// internal/auth/middleware.go
//
// Bearer-token middleware.
//
// Context
// -------
// Runs after tenant.Middleware.  On success the request context carries the
// verified Claims and the acl.Principal built from them.  Tokens issued for
// a specific tenant (`tid` set) are refused on every other tenant; tokens
// without `tid` are accepted only for super administrators.
//
// Notes
// -----
// • Failures answer 401 with a WWW-Authenticate challenge.

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/acl"
	"github.com/yanizio/campus/internal/api/response"
	"github.com/yanizio/campus/internal/tenant"
)

// ErrWrongTenant is returned when a token's tenant differs from the request's.
var ErrWrongTenant = errors.New("auth: token issued for another tenant")

// Principal converts verified claims into an acl principal.  A non-empty
// RoleIDs selects dynamic roles.
func Principal(c *Claims) *acl.Principal {
	p := &acl.Principal{UserID: c.UserID, Role: c.Role, BranchID: c.BranchID}
	if len(c.RoleIDs) > 0 {
		p.Binding = acl.DynamicRoles{RoleIDs: append([]int64(nil), c.RoleIDs...)}
	}
	return p
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// checkTenant enforces the tid binding against the resolved tenant.
func checkTenant(c *Claims, t *tenant.Tenant) error {
	switch {
	case t == nil:
		return nil
	case c.TenantID == 0 && c.Role == acl.RoleSuperAdmin:
		return nil
	case c.TenantID != t.ID:
		return fmt.Errorf("%w: token tid %d, request tenant %d", ErrWrongTenant, c.TenantID, t.ID)
	}
	return nil
}

// Middleware authenticates requests with v.
func Middleware(v *Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.L()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := v.Verify(tok)
			if err != nil {
				log.Debug("token rejected", zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}
			if err := checkTenant(claims, tenant.FromContext(r.Context())); err != nil {
				log.Info("token tenant mismatch", zap.Int64("user_id", claims.UserID), zap.Error(err))
				unauthorized(w, "token not valid for this tenant")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = acl.WithPrincipal(ctx, Principal(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="campus"`)
	response.Error(w, http.StatusUnauthorized, "unauthenticated", msg, nil)
}
