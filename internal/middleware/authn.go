package middleware

import (
	"log/slog"
	"net/http"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/services/iam"
)

// SessionMiddleware resolves the caller's session through the IAM service.
//
// On success the principal, with its admin view already evaluated, is stored
// in the request context. Requests without a usable session continue
// unauthenticated; RequireAuth turns that into a 401 on protected routes.
func SessionMiddleware(iamService iam.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := iamService.AuthenticateRequest(ctx, iam.NewAuthRequest(r))
			if err != nil {
				slog.DebugContext(ctx, "session resolution aborted", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if principal != nil {
				view := iamService.AdminView(principal.Identity())
				ctx = auth.SetUserContext(ctx, principal.Authenticated(view))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
