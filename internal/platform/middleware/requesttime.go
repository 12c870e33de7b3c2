// Package middleware provides the HTTP middleware chain for the ledger:
// request time pinning, correlation ids, structured request logging, panic
// recovery, and bearer-token authentication.
package middleware

import (
	"net/http"
	"time"

	"credentia/pkg/requestcontext"
)

// RequestTime captures the current time once per request so every timestamp
// decision within one operation agrees.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
