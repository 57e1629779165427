package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/util"
)

// RequestID attaches a correlation ID to every request: the client's
// X-Correlation-ID when present, a fresh UUID otherwise. The ID rides
// the request context and is echoed on the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(util.HeaderCorrelationID)
			if cid == "" {
				cid = uuid.NewString()
			}

			ctx := observability.ContextWithCorrelationID(r.Context(), cid)
			w.Header().Set(util.HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
