package server

import (
	"context"
	"net/http"
	"time"
)

// health is the liveness check. It fails with 503 when the database does not
// answer a ping.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	db := h.checkDatabase(ctx)
	status := http.StatusOK
	if !db.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, envelope{
		Success: db.Healthy,
		Data:    map[string]any{"status": map[bool]string{true: "ok", false: "degraded"}[db.Healthy], "database": db},
	})
}
