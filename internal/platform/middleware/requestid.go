package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"credentia/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller-supplied correlation id or mints one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
