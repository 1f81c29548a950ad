package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zignal/zignalapi/internal/services/usersync"
	"github.com/zignal/zignalapi/internal/validation"
)

// identityWebhook mirrors identity provider user events into profiles.
// Deliveries must carry a valid signature; unknown event types are
// acknowledged so the provider stops retrying.
func (h *handlers) identityWebhook(w http.ResponseWriter, r *http.Request) {
	if h.userVerifier == nil {
		respondError(w, r, NotImplemented("Identity webhook"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, validation.MaxBodyBytes))
	if err != nil {
		respondError(w, r, Internal(err))
		return
	}

	if err := h.userVerifier.Verify(r.Header, raw); err != nil {
		if errors.Is(err, usersync.ErrMissingHeaders) {
			respondError(w, r, BadRequest("Missing webhook signature headers", nil))
			return
		}
		slog.WarnContext(r.Context(), "identity webhook rejected", "error", err)
		respondError(w, r, Unauthorized())
		return
	}

	var event usersync.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		respondError(w, r, BadRequest("Validation failed", map[string]string{validation.BodyField: "must be valid JSON"}))
		return
	}

	result, err := h.userSync.Apply(r.Context(), event)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !result.Handled {
		slog.InfoContext(r.Context(), "identity webhook skipped", "type", event.Type, "reason", result.Reason)
	}
	respondOK(w, map[string]any{"received": true, "event": event.Type, "handled": result.Handled})
}
