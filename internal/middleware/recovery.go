package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/util"
)

// Recovery converts handler panics into a 500 response instead of
// tearing down the connection.
func Recovery(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic recovered",
						observability.Any("panic", rec),
						observability.String("path", r.URL.Path),
						observability.String("stack", string(debug.Stack())),
					)
					util.WriteError(w, http.StatusInternalServerError, util.ErrorBody{
						Code:          util.CodeInternal,
						Message:       "internal server error",
						CorrelationID: observability.CorrelationIDFromContext(r.Context()),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
