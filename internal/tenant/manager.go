// internal/tenant/manager.go
//
// Per-tenant connection pool manager.
//
// Context
// -------
// Manager owns one pool per tenant id, created lazily on the first request
// that needs it and reused afterwards.  Pools live in a sync.Map so lookups
// for different tenants never contend.  Creation for one id is coalesced
// through a singleflight.Group: concurrent first requests share one open
// attempt and one resulting pool.
//
// Failure semantics
// -----------------
// A failed open returns *PoolCreationError and leaves nothing behind; the
// next request tries again.  The open runs on a context detached from the
// first caller's cancellation (bounded by ConnectTimeout) so one impatient
// client cannot fail the creation for everyone waiting on it.
//
// Notes
// -----
//   - CloseAll is idempotent and leaves the Manager usable; a later request
//     opens a fresh pool.
//   - The background evictor only runs when IdleTTL or MaxPools is set.
//   - Oxford commas, two spaces after periods.
package tenant

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/campus/internal/metrics"
	"github.com/yanizio/campus/internal/session"
)

// Static defaults.
const (
	DefaultConnectTimeout = 10 * time.Second
	EvictInterval         = 5 * time.Minute
)

// ManagerOptions tunes a Manager.  Zero values disable eviction.
type ManagerOptions struct {
	ConnectTimeout time.Duration
	IdleTTL        time.Duration
	MaxPools       int
	Logger         *zap.Logger
}

// Manager is safe for concurrent use.
type Manager struct {
	open           Opener
	sfg            singleflight.Group
	m              sync.Map // int64 → *entry
	log            *zap.Logger
	connectTimeout time.Duration
	idleTTL        time.Duration
	maxPools       int

	evictTicker *time.Ticker
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewManager constructs a Manager and, when eviction is configured, starts
// the background evictor.
func NewManager(open Opener, opts ManagerOptions) *Manager {
	m := &Manager{
		open:           open,
		log:            opts.Logger,
		connectTimeout: opts.ConnectTimeout,
		idleTTL:        opts.IdleTTL,
		maxPools:       opts.MaxPools,
		stop:           make(chan struct{}),
	}
	if m.log == nil {
		m.log = zap.L()
	}
	if m.connectTimeout <= 0 {
		m.connectTimeout = DefaultConnectTimeout
	}
	if m.idleTTL > 0 || m.maxPools > 0 {
		m.evictTicker = time.NewTicker(EvictInterval)
		go m.evictLoop()
	}
	return m
}

// SessionFactory returns the session factory for t, opening its pool on
// demand.
func (m *Manager) SessionFactory(ctx context.Context, t *Tenant) (*session.Factory, error) {
	if v, ok := m.m.Load(t.ID); ok {
		ent := v.(*entry)
		ent.touch()
		// Still mapped after the touch means the evictor will keep it.
		if cur, ok := m.m.Load(t.ID); ok && cur == ent {
			return ent.factory, nil
		}
	}

	v, err, _ := m.sfg.Do(strconv.FormatInt(t.ID, 10), func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if v, ok := m.m.Load(t.ID); ok {
			ent := v.(*entry)
			ent.touch()
			return ent, nil
		}

		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.connectTimeout)
		defer cancel()

		db, err := m.open(octx, t)
		if err != nil {
			metrics.TenantPoolCreateErrorsTotal.Inc()
			m.log.Error("tenant pool creation failed",
				zap.Int64("tenant_id", t.ID), zap.String("subdomain", t.Subdomain), zap.Error(err))
			return nil, &PoolCreationError{TenantID: t.ID, Err: err}
		}

		ent := &entry{
			db:       db,
			factory:  session.NewFactory(db, t.Tags(), m.log),
			lastSeen: time.Now().UnixNano(),
		}
		m.m.Store(t.ID, ent)
		metrics.TenantPoolCreateTotal.Inc()
		metrics.ActiveTenantPools.Inc()
		m.log.Info("tenant pool online",
			zap.Int64("tenant_id", t.ID), zap.String("subdomain", t.Subdomain))
		return ent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry).factory, nil
}

// Close drains and removes one tenant's pool.  Closing an id without a
// pool is a no-op.
func (m *Manager) Close(id int64) error {
	v, ok := m.m.LoadAndDelete(id)
	if !ok {
		return nil
	}
	metrics.ActiveTenantPools.Dec()
	metrics.TenantPoolCloseTotal.Inc()
	m.log.Info("tenant pool closed", zap.Int64("tenant_id", id))
	return v.(*entry).close()
}

// CloseAll drains every pool and stops the evictor.  Errors from
// individual pools are combined.
func (m *Manager) CloseAll() error {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.evictTicker != nil {
			m.evictTicker.Stop()
		}
	})

	var err error
	m.m.Range(func(key, _ any) bool {
		err = multierr.Append(err, m.Close(key.(int64)))
		return true
	})
	return err
}

// Len reports the number of open pools.
func (m *Manager) Len() int {
	n := 0
	m.m.Range(func(_, _ any) bool { n++; return true })
	return n
}
