package middleware

import (
	"net/http"
	"strings"

	"credentia/internal/jwtauth"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

// RequireAuth authenticates the bearer token and places the caller principal
// in the request context. Requests without a valid token get a 401.
func RequireAuth(tokens *jwtauth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			principal, err := tokens.ValidateToken(token)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx := requestcontext.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
