// internal/tenant/entry.go
//
// Pool manager entry.
//
// Context
// -------
// One entry exists per tenant id with an open pool.  It pairs the
// *sqlx.DB with the session.Factory handed to request handlers, plus a
// `lastSeen` UnixNano timestamp the evictor uses for idle and LRU
// eviction.
//
// Notes
// -----
//   - Entries are created only by Manager.SessionFactory and closed only by
//     Manager (Close, CloseAll, or the evictor).
package tenant

import (
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/campus/internal/session"
)

type entry struct {
	db       *sqlx.DB
	factory  *session.Factory
	lastSeen int64 // UnixNano
}

func (e *entry) touch() { atomic.StoreInt64(&e.lastSeen, time.Now().UnixNano()) }

func (e *entry) idle(now int64) time.Duration {
	return time.Duration(now - atomic.LoadInt64(&e.lastSeen))
}

// close drains the pool.  In-flight transactions finish first.
func (e *entry) close() error { return e.db.Close() }
