// internal/acl/store.go
//
// Tenant role-store queries.
//
// Context
// -------
// Tenants that manage their own roles keep them in the tenant database:
//
//	permissions      (id PK, code UNIQUE, module, resource, action, description)
//	roles            (id PK, name UNIQUE, description, is_system)
//	role_permissions (role_id, permission_id)
//	user_roles       (user_id, role_id)
//
// The engine needs answers to two questions:
//  1. Which role ids does user X hold?                → `UserRoleIDs()`
//  2. Which permission codes do role ids R grant?     → `RolePermissions()`
//
// Store accepts any sqlx.QueryerContext so it runs equally against a pool
// or inside a scoped session.  SessionSource adapts a session factory so
// guards only open a transaction when a dynamic principal actually needs
// one.
//
// Notes
// -----
// • IN lists are built with squirrel.
package acl

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/campus/internal/session"
)

// RoleSource is what the engine reads for DynamicRoles principals.
type RoleSource interface {
	UserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	RolePermissions(ctx context.Context, roleIDs []int64) ([]string, error)
}

// Store implements RoleSource over SQL.
type Store struct {
	q sqlx.QueryerContext
}

// NewStore binds a Store to q.
func NewStore(q sqlx.QueryerContext) *Store { return &Store{q: q} }

// UserRoleIDs returns the role ids bound to userID.
func (s *Store) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	const q = `SELECT role_id FROM user_roles WHERE user_id = ? ORDER BY role_id`
	ids := make([]int64, 0, 4)
	if err := sqlx.SelectContext(ctx, s.q, &ids, q, userID); err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	return ids, nil
}

// RolePermissions returns the distinct permission codes granted to any of
// roleIDs.  An empty roleIDs returns nil, nil.
func (s *Store) RolePermissions(ctx context.Context, roleIDs []int64) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	q, args, err := sq.Select("DISTINCT p.code").
		From("permissions p").
		Join("role_permissions rp ON rp.permission_id = p.id").
		Where(sq.Eq{"rp.role_id": roleIDs}).
		OrderBy("p.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("role permissions sql: %w", err)
	}
	codes := make([]string, 0, 16)
	if err := sqlx.SelectContext(ctx, s.q, &codes, q, args...); err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	return codes, nil
}

// SessionSource runs Store queries inside a scoped session of f.
type SessionSource struct {
	f *session.Factory
}

// NewSessionSource wraps f.  A nil factory yields a source that always
// errors, which the engine treats as "no permissions".
func NewSessionSource(f *session.Factory) *SessionSource { return &SessionSource{f: f} }

var errNoSession = fmt.Errorf("acl: no tenant session available")

func (s *SessionSource) UserRoleIDs(ctx context.Context, userID int64) (ids []int64, err error) {
	if s.f == nil {
		return nil, errNoSession
	}
	err = s.f.Run(ctx, func(ss *session.Session) error {
		ids, err = NewStore(ss.Tx).UserRoleIDs(ctx, userID)
		return err
	})
	return ids, err
}

func (s *SessionSource) RolePermissions(ctx context.Context, roleIDs []int64) (codes []string, err error) {
	if s.f == nil {
		return nil, errNoSession
	}
	err = s.f.Run(ctx, func(ss *session.Session) error {
		codes, err = NewStore(ss.Tx).RolePermissions(ctx, roleIDs)
		return err
	})
	return codes, err
}
