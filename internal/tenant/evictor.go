// evictor.go houses the eviction loop for Manager.  Every EvictInterval it
// scans the pool map and closes:
//
//   - pools idle longer than idleTTL
//   - least-recently-used pools when the map holds more than maxPools
//
// Each eviction event is logged and updates Prometheus counters.  An
// evicted tenant simply gets a fresh pool on its next request.
//
// A pool is only evicted if no request touched it after the pass read its
// lastSeen stamp.  SessionFactory touches an entry and then re-checks that
// it is still mapped, so a request either keeps the pool alive or misses it
// and opens a new one.  The one remaining window is a new pool being
// created for the same tenant between the delete and the restore; the
// older pool is then closed and a request holding it fails once.
package tenant

import (
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/metrics"
)

func (m *Manager) evictLoop() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.evictTicker.C:
			m.evictOnce(time.Now().UnixNano())
		}
	}
}

func (m *Manager) evictOnce(now int64) {
	var count int

	// ----------------------------------------------------------------
	// Idle eviction pass
	// ----------------------------------------------------------------
	m.m.Range(func(key, value any) bool {
		id, ent := key.(int64), value.(*entry)
		seen := atomic.LoadInt64(&ent.lastSeen)
		idle := time.Duration(now - seen)
		if m.idleTTL > 0 && idle > m.idleTTL && m.evict(id, ent, seen) {
			m.log.Info("tenant pool evicted",
				zap.Int64("tenant_id", id), zap.Duration("idle", idle.Truncate(time.Second)))
			return true
		}
		count++
		return true
	})

	// ----------------------------------------------------------------
	// LRU eviction pass
	// ----------------------------------------------------------------
	if m.maxPools > 0 && count > m.maxPools {
		type candidate struct {
			id  int64
			ent *entry
			at  int64
		}
		var all []candidate
		m.m.Range(func(key, value any) bool {
			ent := value.(*entry)
			all = append(all, candidate{id: key.(int64), ent: ent, at: atomic.LoadInt64(&ent.lastSeen)})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
		for i := 0; i < len(all)-m.maxPools; i++ {
			if m.evict(all[i].id, all[i].ent, all[i].at) {
				m.log.Info("tenant pool evicted (LRU pressure)", zap.Int64("tenant_id", all[i].id))
			}
		}
	}
}

// evict removes ent if its lastSeen still equals seen.  It reports whether
// the pool was closed.
func (m *Manager) evict(id int64, ent *entry, seen int64) bool {
	if atomic.LoadInt64(&ent.lastSeen) != seen || !m.m.CompareAndDelete(id, ent) {
		return false
	}
	// Touched between the check and the delete: put it back.
	if atomic.LoadInt64(&ent.lastSeen) != seen {
		if _, loaded := m.m.LoadOrStore(id, ent); !loaded {
			return false
		}
	}

	metrics.ActiveTenantPools.Dec()
	metrics.TenantPoolCloseTotal.Inc()
	if err := ent.close(); err != nil {
		m.log.Warn("tenant pool close failed", zap.Int64("tenant_id", id), zap.Error(err))
	}
	return true
}
