// internal/session/session.go
//
// Scoped database sessions.
//
// Context
//   Every tenant-scoped operation runs inside exactly one transaction drawn
//   from that tenant's pool.  `Factory.Run` owns the whole lifecycle:
//
//     1. Begin a transaction on the pool.
//     2. Attach `Tags` (tenant id, name, subdomain) so logs and downstream
//        helpers know which tenant the work belongs to.  Tagging happens
//        before `fn` sees the session.
//     3. Commit when `fn` returns nil.
//     4. Roll back when `fn` returns an error, panics, or the context is
//        cancelled.  A panic is re-raised after the rollback.
//
//   The connection returns to the pool on every path; callers never touch
//   Begin, Commit, or Rollback directly.  The control-plane registry uses
//   the same helper with empty tags.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Tags identify the tenant a session belongs to.
type Tags struct {
	TenantID   int64
	TenantName string
	Subdomain  string
}

// Fields renders tags as zap fields.
func (t Tags) Fields() []zap.Field {
	return []zap.Field{
		zap.Int64("tenant_id", t.TenantID),
		zap.String("tenant", t.TenantName),
		zap.String("subdomain", t.Subdomain),
	}
}

// Session is the unit of work handed to callers.  It is valid only inside
// the Run callback.
type Session struct {
	Tx   *sqlx.Tx
	Tags Tags
	Log  *zap.Logger
}

// Beginner is satisfied by *sqlx.DB.
type Beginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Factory produces sessions for one pool.
type Factory struct {
	db   Beginner
	tags Tags
	log  *zap.Logger
}

// NewFactory binds a pool to its tags.  A nil logger falls back to zap.L().
func NewFactory(db Beginner, tags Tags, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.L()
	}
	return &Factory{db: db, tags: tags, log: log}
}

// Tags returns the tags every session from this factory carries.
func (f *Factory) Tags() Tags { return f.tags }

// Run executes fn inside one transaction.  See the file header for the
// commit and rollback rules.
func (f *Factory) Run(ctx context.Context, fn func(*Session) error) (err error) {
	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session begin: %w", err)
	}

	s := &Session{
		Tx:   tx,
		Tags: f.tags,
		Log:  f.log.With(f.tags.Fields()...),
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.Log.Warn("session rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(s); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("session commit: %w", err)
	}
	committed = true
	return nil
}

type ctxKey struct{}

// WithFactory stores f in ctx for handlers further down the chain.
func WithFactory(ctx context.Context, f *Factory) context.Context {
	return context.WithValue(ctx, ctxKey{}, f)
}

// FromContext returns the factory stored by WithFactory, or nil.
func FromContext(ctx context.Context) *Factory {
	f, _ := ctx.Value(ctxKey{}).(*Factory)
	return f
}
