// internal/acl/engine.go
//
// Permission evaluation.
//
// Context
// -------
// `Engine` answers "may principal P do X?" in three flavours:
//
//   - `Check`     – every required code present (AND).
//   - `CheckAny`  – at least one required code present (OR).
//   - `Authorize` – either mode, returning *PermissionDeniedError with the
//     missing codes on failure.
//
// Effective permissions come from the principal's binding: StaticRole reads
// the compile-time table, DynamicRoles unions the tenant's role store.  A
// super administrator passes every check without either lookup.
//
// Fail-closed rules
// -----------------
// A nil principal, an unknown static role, a nil source for a dynamic
// binding, or any store error all produce the empty set.  The error is
// logged, never surfaced as a grant.
//
// Notes
// -----
//   - An empty required list passes in All mode and fails in Any mode for
//     ordinary principals.
//   - Oxford commas, two spaces after periods.
package acl

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/metrics"
)

// Set is a permission-code set.
type Set map[string]struct{}

// NewSet builds a Set from codes.
func NewSet(codes ...string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Sorted returns the codes in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Engine is stateless apart from its logger and safe for concurrent use.
type Engine struct {
	log *zap.Logger
}

// NewEngine returns an Engine.  A nil logger falls back to zap.L().
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.L()
	}
	return &Engine{log: log}
}

// PermissionsFor returns p's effective permission set.  src is consulted
// only for DynamicRoles bindings and may be nil otherwise.
func (e *Engine) PermissionsFor(ctx context.Context, src RoleSource, p *Principal) Set {
	if p == nil {
		return Set{}
	}
	if p.IsSuperAdmin() {
		return NewSet(AllPermissions...)
	}

	switch b := p.binding().(type) {
	case StaticRole:
		codes, ok := RolePermissions[b.Name]
		if !ok {
			e.log.Warn("acl unknown static role", zap.String("role", b.Name), zap.Int64("user_id", p.UserID))
			return Set{}
		}
		return NewSet(codes...)

	case DynamicRoles:
		if src == nil {
			e.log.Warn("acl dynamic roles without a role source", zap.Int64("user_id", p.UserID))
			return Set{}
		}
		ids := b.RoleIDs
		if len(ids) == 0 {
			var err error
			ids, err = src.UserRoleIDs(ctx, p.UserID)
			if err != nil {
				e.log.Error("acl user roles", zap.Int64("user_id", p.UserID), zap.Error(err))
				return Set{}
			}
		}
		codes, err := src.RolePermissions(ctx, ids)
		if err != nil {
			e.log.Error("acl role permissions", zap.Int64("user_id", p.UserID), zap.Error(err))
			return Set{}
		}
		return NewSet(codes...)
	}
	return Set{}
}

// Check reports whether p holds every code in required.
func (e *Engine) Check(ctx context.Context, src RoleSource, p *Principal, required ...string) bool {
	return e.Authorize(ctx, src, p, All, required...) == nil
}

// CheckAny reports whether p holds at least one code in required.
func (e *Engine) CheckAny(ctx context.Context, src RoleSource, p *Principal, required ...string) bool {
	return e.Authorize(ctx, src, p, Any, required...) == nil
}

// Missing returns the codes in required that p lacks, in input order.
func (e *Engine) Missing(ctx context.Context, src RoleSource, p *Principal, required ...string) []string {
	if p.IsSuperAdmin() {
		return nil
	}
	return missing(e.PermissionsFor(ctx, src, p), required)
}

// Authorize evaluates required under mode and returns nil or a
// *PermissionDeniedError.
func (e *Engine) Authorize(ctx context.Context, src RoleSource, p *Principal, mode Mode, required ...string) error {
	if p.IsSuperAdmin() {
		return nil
	}
	have := e.PermissionsFor(ctx, src, p)

	if mode == Any {
		for _, c := range required {
			if have.Has(c) {
				return nil
			}
		}
		metrics.ACLDeniedTotal.WithLabelValues(mode.String()).Inc()
		return &PermissionDeniedError{Mode: Any, Missing: append([]string(nil), required...)}
	}

	if miss := missing(have, required); len(miss) > 0 {
		metrics.ACLDeniedTotal.WithLabelValues(mode.String()).Inc()
		return &PermissionDeniedError{Mode: All, Missing: miss}
	}
	return nil
}

func missing(have Set, required []string) []string {
	var out []string
	for _, c := range required {
		if !have.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
