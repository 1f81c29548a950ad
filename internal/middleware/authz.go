package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zignal/zignalapi/internal/auth"
)

// Authorizer decides whether an admin view grants an action on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, view auth.AdminView, obj, act string) (bool, error)
}

// RequireAuth rejects requests that carry no resolved session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetUserFromContext(r.Context()); !ok {
			unauthenticated(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission enforces the capability policy for resource/action.
// It implies RequireAuth.
func RequirePermission(authorizer Authorizer, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := auth.GetUserFromContext(ctx)
			if !ok {
				unauthenticated(w)
				return
			}

			allowed, err := authorizer.Authorize(ctx, principal.Admin, resource, action)
			if err != nil {
				slog.ErrorContext(ctx, "authorization check failed",
					"resource", resource, "action", action, "error", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				slog.InfoContext(ctx, "forbidden",
					"principal", principal.Subject, "resource", resource, "action", action)
				forbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "Forbidden")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
