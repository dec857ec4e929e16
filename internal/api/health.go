package api

import (
	"context"
	"net/http"
	"time"

	"github.com/yanizio/campus/internal/api/response"
)

const healthTimeout = 2 * time.Second

// healthz pings every checker.  Any failure answers 503 with the
// per-dependency status.
func healthz(checks []Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				status[c.Name] = err.Error()
				healthy = false
				continue
			}
			status[c.Name] = "ok"
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "unhealthy", "dependency check failed", status)
			return
		}
		response.JSON(w, map[string]any{"status": "ok", "checks": status})
	}
}
