// internal/cache/tenant.go
//
// Tenant metadata cache.
//
// Context
// -------
// The resolver consults this cache before the control-plane registry on
// every request.  A tenant is stored twice, once under its subdomain and
// once under its id, as a JSON `Snapshot` with a TTL (default one hour).
//
// The cache is an accelerator, never a dependency:
//
//   - Get* returns "absent" on any store or decode failure (fail open).
//   - Set* and Invalidate log a warning and carry on.
//   - Every store call runs under a short timeout so a slow Redis cannot
//     stall request handling.
//
// Decoding is typed and validated; a snapshot lacking its identity or
// database coordinates is treated as a miss and the request falls through
// to the registry.
//
// Notes
// -----
//   - Writers are expected to invalidate on tenant updates; otherwise
//     staleness is bounded by the TTL.
//   - Oxford commas, two spaces after periods.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/metrics"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// Static defaults.
const (
	DefaultTTL       = time.Hour
	DefaultOpTimeout = 250 * time.Millisecond
)

var errIncomplete = errors.New("snapshot missing required fields")

// Snapshot is the cached projection of a tenant record.
type Snapshot struct {
	ID                  int64  `json:"id"`
	Subdomain           string `json:"subdomain"`
	Name                string `json:"name"`
	Code                string `json:"code"`
	DBHost              string `json:"db_host"`
	DBPort              int    `json:"db_port"`
	DBName              string `json:"db_name"`
	DBUser              string `json:"db_user"`
	DBPasswordEncrypted string `json:"db_password_encrypted"`
	IsActive            bool   `json:"is_active"`
}

// Validate reports whether s carries enough to open a pool.
func (s *Snapshot) Validate() error {
	if s.ID == 0 || s.Subdomain == "" || s.DBHost == "" || s.DBName == "" || s.DBUser == "" {
		return errIncomplete
	}
	return nil
}

// SnapshotFromRecord projects a registry row.
func SnapshotFromRecord(r *meta.Record) *Snapshot {
	return &Snapshot{
		ID:                  r.ID,
		Subdomain:           r.Subdomain,
		Name:                r.Name,
		Code:                r.Code,
		DBHost:              r.DBHost,
		DBPort:              r.DBPort,
		DBName:              r.DBName,
		DBUser:              r.DBUser,
		DBPasswordEncrypted: r.DBPasswordEncrypted,
		IsActive:            r.IsActive,
	}
}

// TenantCache is safe for concurrent use.
type TenantCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	log       *zap.Logger
}

// Option tweaks a TenantCache.
type Option func(*TenantCache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option { return func(c *TenantCache) { c.ttl = d } }

// WithOpTimeout overrides DefaultOpTimeout.
func WithOpTimeout(d time.Duration) Option { return func(c *TenantCache) { c.opTimeout = d } }

// WithLogger sets the logger; zap.L() is used otherwise.
func WithLogger(l *zap.Logger) Option { return func(c *TenantCache) { c.log = l } }

// NewTenantCache wraps store.
func NewTenantCache(store Store, opts ...Option) *TenantCache {
	c := &TenantCache{
		store:     store,
		ttl:       DefaultTTL,
		opTimeout: DefaultOpTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.L()
	}
	return c
}

// GetBySubdomain returns the cached snapshot for subdomain.
func (c *TenantCache) GetBySubdomain(ctx context.Context, subdomain string) (*Snapshot, bool) {
	return c.get(ctx, "subdomain", SubdomainKey(subdomain))
}

// GetByID returns the cached snapshot for id.
func (c *TenantCache) GetByID(ctx context.Context, id int64) (*Snapshot, bool) {
	return c.get(ctx, "id", IDKey(id))
}

// SetBySubdomain stores s under its subdomain key.
func (c *TenantCache) SetBySubdomain(ctx context.Context, subdomain string, s *Snapshot) {
	c.set(ctx, SubdomainKey(subdomain), s)
}

// SetByID stores s under its id key.
func (c *TenantCache) SetByID(ctx context.Context, id int64, s *Snapshot) {
	c.set(ctx, IDKey(id), s)
}

// Invalidate drops both keys of a tenant.
func (c *TenantCache) Invalidate(ctx context.Context, subdomain string, id int64) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.Delete(ctx, SubdomainKey(subdomain), IDKey(id)); err != nil {
		metrics.TenantCacheErrorsTotal.WithLabelValues("invalidate").Inc()
		c.log.Warn("tenant cache invalidate failed",
			zap.String("subdomain", subdomain), zap.Int64("tenant_id", id), zap.Error(err))
	}
}

func (c *TenantCache) get(ctx context.Context, kind, key string) (*Snapshot, bool) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.TenantCacheErrorsTotal.WithLabelValues("get").Inc()
		metrics.TenantCacheRequestsTotal.WithLabelValues(kind, "error").Inc()
		c.log.Warn("tenant cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.TenantCacheRequestsTotal.WithLabelValues(kind, "miss").Inc()
		return nil, false
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		err = errors.Join(errIncomplete, err)
		c.discard(ctx, key, err)
		metrics.TenantCacheRequestsTotal.WithLabelValues(kind, "invalid").Inc()
		return nil, false
	}
	if err := s.Validate(); err != nil {
		c.discard(ctx, key, err)
		metrics.TenantCacheRequestsTotal.WithLabelValues(kind, "invalid").Inc()
		return nil, false
	}
	metrics.TenantCacheRequestsTotal.WithLabelValues(kind, "hit").Inc()
	return &s, true
}

func (c *TenantCache) set(ctx context.Context, key string, s *Snapshot) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.log.Warn("tenant cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		metrics.TenantCacheErrorsTotal.WithLabelValues("set").Inc()
		c.log.Warn("tenant cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// discard drops an undecodable entry so the next request repopulates it.
func (c *TenantCache) discard(ctx context.Context, key string, cause error) {
	c.log.Warn("tenant cache entry rejected", zap.String("key", key), zap.Error(cause))
	if err := c.store.Delete(ctx, key); err != nil {
		metrics.TenantCacheErrorsTotal.WithLabelValues("invalidate").Inc()
	}
}

func (c *TenantCache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
