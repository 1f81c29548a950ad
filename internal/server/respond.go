package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zignal/zignalapi/internal/pagination"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondCreated(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data, Message: message})
}

func respondMessage(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

// respondPage writes one page of items with its pagination counters.
func respondPage[T any](w http.ResponseWriter, items []T, total int, page pagination.Params) {
	respondOK(w, pagination.NewResult(items, total, page))
}

// respondError maps err to its status and writes the failure envelope.
// Server-side failures are logged with the real cause.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusNotImplemented {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", apiErr.Err)
	}
	writeJSON(w, apiErr.Status, envelope{Success: false, Error: apiErr.Message, Fields: apiErr.Fields})
}
