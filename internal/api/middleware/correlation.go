package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const correlationHeader = "X-Correlation-ID"

// Unexported struct key: no collisions with other packages' context values.
type correlationKey struct{}

// CorrelationID tags every request with a correlation ID. A caller-supplied
// X-Correlation-ID header is honoured; otherwise a fresh UUID is minted. The
// ID travels on the request context and is echoed in the response header so
// a client can line its request up with the server's log stream.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)

		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the request's correlation ID, or "" when the
// middleware was not applied.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
