// internal/tenant/directory.go
//
// Tenant administration.
//
// Context
// -------
// Directory is the control-plane view of tenants used by the admin API and
// the CLI: list, fetch, update, deactivate, and pool maintenance.  Every
// mutation keeps the runtime state honest:
//
//   - the metadata cache entries for the tenant are invalidated so the next
//     request reads the new row, and
//   - a change of the active flag closes the tenant's pool so no request
//     keeps using a connection opened before the change.
//
// The read, the write, and the reload of an update share one control-plane
// transaction.  Cache invalidation and the pool close run only after it
// commits.
//
// Notes
// -----
//   - Deactivation is terminal for routing but the row is kept; there is no
//     delete.
package tenant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/cache"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// Directory is safe for concurrent use.
type Directory struct {
	reg      *meta.Registry
	sessions *session.Factory
	cache    *cache.TenantCache
	pools    *Manager
	log      *zap.Logger
}

// NewDirectory wires a Directory.  sessions must be bound to the same
// control-plane pool as reg.  A nil logger falls back to zap.L().
func NewDirectory(reg *meta.Registry, sessions *session.Factory, c *cache.TenantCache, pools *Manager, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.L()
	}
	return &Directory{reg: reg, sessions: sessions, cache: c, pools: pools, log: log}
}

// List returns tenants matching f.
func (d *Directory) List(ctx context.Context, f meta.Filter) ([]meta.Record, error) {
	return d.reg.List(ctx, f)
}

// Get returns one tenant, active or not.
func (d *Directory) Get(ctx context.Context, id int64) (*meta.Record, error) {
	return d.reg.ByID(ctx, id)
}

// Update applies p and returns the stored row.
func (d *Directory) Update(ctx context.Context, id int64, p meta.Patch) (*meta.Record, error) {
	var before, after *meta.Record
	err := d.sessions.Run(ctx, func(s *session.Session) error {
		reg := d.reg.With(s.Tx)

		var err error
		if before, err = reg.ByID(ctx, id); err != nil {
			return err
		}
		if err = reg.Update(ctx, id, p); err != nil {
			return err
		}
		if after, err = reg.ByID(ctx, id); err != nil {
			return fmt.Errorf("reload tenant %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.cache.Invalidate(ctx, before.Subdomain, id)
	if before.IsActive != after.IsActive {
		if err := d.pools.Close(id); err != nil {
			d.log.Warn("tenant pool close failed", zap.Int64("tenant_id", id), zap.Error(err))
		}
		d.log.Info("tenant active flag changed",
			zap.Int64("tenant_id", id), zap.Bool("active", after.IsActive))
	}
	return after, nil
}

// Deactivate disables routing to the tenant.
func (d *Directory) Deactivate(ctx context.Context, id int64) (*meta.Record, error) {
	off := false
	return d.Update(ctx, id, meta.Patch{IsActive: &off})
}

// ClosePool drains the tenant's pool for maintenance or credential
// rotation.  The next request reopens it.
func (d *Directory) ClosePool(id int64) error {
	return d.pools.Close(id)
}
