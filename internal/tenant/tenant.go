// internal/tenant/tenant.go
//
// Resolved tenant view.
//
// Context
// -------
// `Tenant` is what the resolver hands to the rest of the request: the
// routing-relevant fields of one `schools` row, sourced either from the
// metadata cache or from the registry.  It is a value snapshot; handlers
// must treat it as immutable.  The encrypted password travels with it so
// the pool manager can open the tenant's database on first use, but it is
// never serialised to API clients.
//
// Notes
// -----
//   - Plan limits, contact fields, and timestamps live on meta.Record only;
//     request handling never needs them.
package tenant

import (
	"github.com/yanizio/campus/internal/cache"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// Tenant groups the per-school fields needed to route and connect.
type Tenant struct {
	ID                  int64  `json:"id"`
	Subdomain           string `json:"subdomain"`
	Name                string `json:"name"`
	Code                string `json:"code"`
	DBHost              string `json:"-"`
	DBPort              int    `json:"-"`
	DBName              string `json:"-"`
	DBUser              string `json:"-"`
	DBPasswordEncrypted string `json:"-"`
	IsActive            bool   `json:"is_active"`
}

// Tags returns the session tags for this tenant.
func (t *Tenant) Tags() session.Tags {
	return session.Tags{TenantID: t.ID, TenantName: t.Name, Subdomain: t.Subdomain}
}

func fromSnapshot(s *cache.Snapshot) *Tenant {
	return &Tenant{
		ID:                  s.ID,
		Subdomain:           s.Subdomain,
		Name:                s.Name,
		Code:                s.Code,
		DBHost:              s.DBHost,
		DBPort:              s.DBPort,
		DBName:              s.DBName,
		DBUser:              s.DBUser,
		DBPasswordEncrypted: s.DBPasswordEncrypted,
		IsActive:            s.IsActive,
	}
}

// FromRecord converts a registry row.
func FromRecord(r *meta.Record) *Tenant {
	return fromSnapshot(cache.SnapshotFromRecord(r))
}
