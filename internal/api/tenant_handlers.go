package api

import (
	"net/http"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/acl"
	"github.com/yanizio/campus/internal/api/response"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant"
)

type tenantHandlers struct {
	engine *acl.Engine
	log    *zap.Logger
}

// current returns the public view of the resolved tenant.
func (h *tenantHandlers) current(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, tenant.FromContext(r.Context()))
}

type permissionsView struct {
	UserID      int64    `json:"user_id"`
	Role        string   `json:"role"`
	SuperAdmin  bool     `json:"super_admin"`
	Permissions []string `json:"permissions"`
	BranchID    *int64   `json:"branch_id,omitempty"`
}

// myPermissions lists the caller's effective permission codes.
func (h *tenantHandlers) myPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := acl.PrincipalFrom(ctx)
	src := acl.NewSessionSource(session.FromContext(ctx))

	response.JSON(w, permissionsView{
		UserID:      p.UserID,
		Role:        p.Role,
		SuperAdmin:  p.IsSuperAdmin(),
		Permissions: h.engine.PermissionsFor(ctx, src, p).Sorted(),
		BranchID:    p.BranchID,
	})
}

type branchRow struct {
	ID       int64  `db:"id"        json:"id"`
	Name     string `db:"name"      json:"name"`
	Code     string `db:"code"      json:"code"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// branchProfile lists the branches visible to the caller.  Branch roles see
// only their own.
func (h *tenantHandlers) branchProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := acl.ScopeFrom(ctx)

	q, args, err := scope.Apply(
		sq.Select("id", "name", "code", "is_active").From("branches").OrderBy("id"),
		"id",
	).ToSql()
	if err != nil {
		h.fail(w, err)
		return
	}

	var rows []branchRow
	err = session.FromContext(ctx).Run(ctx, func(s *session.Session) error {
		return s.Tx.SelectContext(ctx, &rows, q, args...)
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []branchRow{}
	}
	response.Collection(w, rows, response.PageMeta{Count: len(rows)})
}

func (h *tenantHandlers) fail(w http.ResponseWriter, err error) {
	h.log.Error("tenant handler", zap.Error(err))
	response.Error(w, http.StatusInternalServerError, "internal_error",
		http.StatusText(http.StatusInternalServerError), nil)
}
