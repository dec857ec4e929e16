// internal/tenant/resolver.go
//
// Request to tenant resolution.
//
// Context
// -------
// `Resolve` turns an Identity into a *Tenant in four steps:
//
//  1. Candidate subdomain from the host (or the override header on
//     loopback hosts).  Cache by subdomain, then registry by subdomain,
//     populating the cache on a registry hit.
//  2. When step 1 yields nothing, the tenant-id header: cache by id, then
//     registry by id, populating the cache on a hit.
//  3. Still nothing: ErrTenantNotIdentified.
//  4. Resolved but inactive: ErrTenantInactive.
//
// A registry failure other than "not found" is returned wrapped; it is an
// infrastructure fault, not an identification failure.
//
// Notes
// -----
//   - Concurrent cold-cache lookups for one subdomain each query the
//     registry.  The query is a single indexed read.
//   - A registry hit populates both cache keys so the other lookup path is
//     warm too.
//   - Oxford commas, two spaces after periods.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/cache"
	"github.com/yanizio/campus/internal/metrics"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// Lookup is the registry surface the resolver needs.  *meta.Registry
// satisfies it.
type Lookup interface {
	BySubdomain(ctx context.Context, subdomain string) (*meta.Record, error)
	ByID(ctx context.Context, id int64) (*meta.Record, error)
}

// Resolver is safe for concurrent use.
type Resolver struct {
	cache *cache.TenantCache
	reg   Lookup
	log   *zap.Logger
}

// NewResolver wires a resolver.  A nil logger falls back to zap.L().
func NewResolver(c *cache.TenantCache, reg Lookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.L()
	}
	return &Resolver{cache: c, reg: reg, log: log}
}

// Resolve implements the algorithm in the file header.
func (r *Resolver) Resolve(ctx context.Context, in Identity) (*Tenant, error) {
	t, err := r.resolve(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrTenantNotIdentified):
			metrics.TenantResolveErrorsTotal.WithLabelValues("not_identified").Inc()
		default:
			metrics.TenantResolveErrorsTotal.WithLabelValues("registry").Inc()
		}
		return nil, err
	}
	if !t.IsActive {
		metrics.TenantResolveErrorsTotal.WithLabelValues("inactive").Inc()
		return nil, ErrTenantInactive
	}
	return t, nil
}

func (r *Resolver) resolve(ctx context.Context, in Identity) (*Tenant, error) {
	if sub := in.CandidateSubdomain(); sub != "" {
		t, err := r.bySubdomain(ctx, sub)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, meta.ErrNotFound) {
			return nil, err
		}
	}

	if id, ok := in.CandidateID(); ok {
		t, err := r.byID(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, meta.ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrTenantNotIdentified
}

func (r *Resolver) bySubdomain(ctx context.Context, sub string) (*Tenant, error) {
	if s, ok := r.cache.GetBySubdomain(ctx, sub); ok {
		return fromSnapshot(s), nil
	}
	rec, err := r.reg.BySubdomain(ctx, sub)
	if err != nil {
		if errors.Is(err, meta.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve subdomain %q: %w", sub, err)
	}
	r.populate(ctx, rec)
	return FromRecord(rec), nil
}

func (r *Resolver) byID(ctx context.Context, id int64) (*Tenant, error) {
	if s, ok := r.cache.GetByID(ctx, id); ok {
		return fromSnapshot(s), nil
	}
	rec, err := r.reg.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, meta.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve id %d: %w", id, err)
	}
	r.populate(ctx, rec)
	return FromRecord(rec), nil
}

func (r *Resolver) populate(ctx context.Context, rec *meta.Record) {
	snap := cache.SnapshotFromRecord(rec)
	r.cache.SetBySubdomain(ctx, rec.Subdomain, snap)
	r.cache.SetByID(ctx, rec.ID, snap)
	r.log.Debug("tenant cache populated",
		zap.Int64("tenant_id", rec.ID), zap.String("subdomain", rec.Subdomain))
}
