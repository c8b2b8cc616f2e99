package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader carries the caller-supplied or generated request ID
const requestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID and echoes it in the response.
// A caller-supplied X-Request-ID is kept so decisions can be correlated
// with the agent's own logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
