// internal/tenant/middleware.go
//
// Tenant-binding middleware.
//
// Every tenant-scoped route passes through `Middleware`, which resolves the
// tenant, obtains its session factory from the pool manager, and stores
// both in the request context.  Handlers further down read them with
// `FromContext` and `session.FromContext`.  Resolution failures are
// answered here and never reach a handler.

package tenant

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/api/response"
	"github.com/yanizio/campus/internal/session"
)

// Middleware binds the request to its tenant.
// A nil logger falls back to zap.L().
func Middleware(res *Resolver, pools *Manager, headers Headers, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.L()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			t, err := res.Resolve(ctx, IdentityFromRequest(r, headers))
			if err != nil {
				WriteError(log, w, r, err)
				return
			}

			f, err := pools.SessionFactory(ctx, t)
			if err != nil {
				WriteError(log, w, r, err)
				return
			}

			ctx = WithTenant(ctx, t)
			ctx = session.WithFactory(ctx, f)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteError maps tenant errors to HTTP responses.  Unexpected errors are
// logged on log.
func WriteError(log *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotIdentified):
		response.Error(w, http.StatusBadRequest, "tenant_not_identified",
			"tenant could not be identified from host or headers", nil)
	case errors.Is(err, ErrTenantInactive):
		response.Error(w, http.StatusForbidden, "tenant_inactive",
			"tenant is inactive", nil)
	case errors.Is(err, ErrPoolCreation):
		response.Error(w, http.StatusInternalServerError, "tenant_unavailable",
			"tenant database is unavailable", nil)
	default:
		log.Error("tenant resolution failed",
			zap.String("host", r.Host), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal_error",
			http.StatusText(http.StatusInternalServerError), nil)
	}
}
