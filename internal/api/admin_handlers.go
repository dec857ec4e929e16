package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/api/response"
	"github.com/yanizio/campus/internal/provision"
	"github.com/yanizio/campus/internal/tenant/meta"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// provisionTimeout bounds one provisioning request, migrations included.
	provisionTimeout = 10 * time.Minute
)

var validate = validator.New()

type adminHandlers struct {
	tenants TenantAdmin
	prov    Provisioner
	log     *zap.Logger
}

func (h *adminHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := meta.Filter{Limit: defaultLimit}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(w, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "active must be true or false")
			return
		}
		f.Active = &b
	}

	recs, err := h.tenants.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	if recs == nil {
		recs = []meta.Record{}
	}
	response.Collection(w, recs, response.PageMeta{Limit: f.Limit, Offset: f.Offset, Count: len(recs)})
}

func (h *adminHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, rec)
}

func (h *adminHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p meta.Patch
	if err := decode(w, r, &p); err != nil {
		badRequest(w, "request body must be a JSON object")
		return
	}
	if err := validate.Struct(p); err != nil {
		response.Error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
		return
	}
	rec, err := h.tenants.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, rec)
}

func (h *adminHandlers) closePool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.tenants.ClosePool(id); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *adminHandlers) provision(w http.ResponseWriter, r *http.Request) {
	var req provision.Request
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "request body must be a JSON object")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), provisionTimeout)
	defer cancel()

	job, err := h.prov.Provision(ctx, req)
	switch {
	case err == nil:
		response.Created(w, job)
	case errors.Is(err, provision.ErrInvalidRequest):
		response.Error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), job)
	case errors.Is(err, provision.ErrDuplicate):
		response.Error(w, http.StatusConflict, "tenant_exists", err.Error(), job)
	default:
		h.log.Error("provisioning failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "provisioning_failed", err.Error(), job)
	}
}

func (h *adminHandlers) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, meta.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "tenant_not_found", "tenant not found", nil)
		return
	}
	h.log.Error("admin handler", zap.Error(err))
	response.Error(w, http.StatusInternalServerError, "internal_error",
		http.StatusText(http.StatusInternalServerError), nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	response.Error(w, http.StatusBadRequest, "bad_request", msg, nil)
}
