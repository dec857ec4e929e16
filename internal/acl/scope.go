package acl

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// Scope narrows queries for branch-level principals.  The zero Scope is
// unrestricted.
type Scope struct {
	BranchID   int64
	Restricted bool
}

// ScopeFor derives p's data scope.  Branch roles without an assigned branch
// fail with ErrNoBranch.
func ScopeFor(p *Principal) (Scope, error) {
	if p == nil || !IsBranchRole(p.Role) {
		return Scope{}, nil
	}
	if p.BranchID == nil || *p.BranchID <= 0 {
		return Scope{}, ErrNoBranch
	}
	return Scope{BranchID: *p.BranchID, Restricted: true}, nil
}

// Apply adds `column = BranchID` to b when the scope is restricted.
// column defaults to "branch_id".
func (s Scope) Apply(b sq.SelectBuilder, column string) sq.SelectBuilder {
	if !s.Restricted {
		return b
	}
	if column == "" {
		column = "branch_id"
	}
	return b.Where(sq.Eq{column: s.BranchID})
}

type scopeKey struct{}

// WithScope returns a new context carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope stored by WithScope.  ok is false when the
// request did not pass through BranchScoped.
func ScopeFrom(ctx context.Context) (s Scope, ok bool) {
	s, ok = ctx.Value(scopeKey{}).(Scope)
	return
}
