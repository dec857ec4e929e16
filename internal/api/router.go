// internal/api/router.go
//
// HTTP surface.
//
// Context
// -------
// Three route groups hang off one chi router:
//
//   - operational: `/healthz` and `/metrics`, no tenant, no auth.
//   - tenant:      `/api/v1/...` behind tenant.Middleware then
//     auth.Middleware.  Each request runs against its school's own
//     database through the scoped session factory in the context.
//   - admin:       `/api/v1/admin/...` on the control plane.  Bearer auth
//     plus `system.tenants.manage`; no tenant binding.
//
// Notes
// -----
// • Global middleware order: request id, access log, panic recovery,
//   security headers.  ForceHTTPS wraps the whole router when enabled.

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/acl"
	"github.com/yanizio/campus/internal/auth"
	"github.com/yanizio/campus/internal/middleware"
	"github.com/yanizio/campus/internal/provision"
	"github.com/yanizio/campus/internal/tenant"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// TenantAdmin is the control-plane tenant surface.  *tenant.Directory
// satisfies it.
type TenantAdmin interface {
	List(ctx context.Context, f meta.Filter) ([]meta.Record, error)
	Get(ctx context.Context, id int64) (*meta.Record, error)
	Update(ctx context.Context, id int64, p meta.Patch) (*meta.Record, error)
	ClosePool(id int64) error
}

// Provisioner creates tenants.  *provision.Pipeline satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Job, error)
}

// Checker is one health dependency.
type Checker struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps wires the router.
type Deps struct {
	Resolver    *tenant.Resolver
	Pools       *tenant.Manager
	Headers     tenant.Headers
	Verifier    *auth.Verifier
	Engine      *acl.Engine
	Tenants     TenantAdmin
	Provisioner Provisioner
	Health      []Checker
	ForceHTTPS  bool
	Logger      *zap.Logger
}

// NewRouter builds the handler tree.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.L()
	}
	if d.Engine == nil {
		d.Engine = acl.NewEngine(d.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Security)

	r.Get("/healthz", healthz(d.Health))
	r.Handle("/metrics", promhttp.Handler())

	authn := auth.Middleware(d.Verifier, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			a := &adminHandlers{tenants: d.Tenants, prov: d.Provisioner, log: d.Logger}
			r.Use(authn)
			r.Use(d.Engine.RequirePermissions(acl.SystemTenantsManage))
			r.Get("/tenants", a.list)
			r.Post("/tenants", a.provision)
			r.Get("/tenants/{id}", a.get)
			r.Patch("/tenants/{id}", a.update)
			r.Delete("/tenants/{id}/pool", a.closePool)
		})

		r.Group(func(r chi.Router) {
			t := &tenantHandlers{engine: d.Engine, log: d.Logger}
			r.Use(tenant.Middleware(d.Resolver, d.Pools, d.Headers, d.Logger))
			r.Get("/tenant", t.current)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me/permissions", t.myPermissions)
				r.With(
					d.Engine.RequireAnyPermission(acl.StudentsView, acl.TeachersView),
					acl.BranchScoped,
				).Get("/branch/profile", t.branchProfile)
			})
		})
	})

	if d.ForceHTTPS {
		return middleware.ForceHTTPS(r)
	}
	return r
}
