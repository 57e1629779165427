package middleware

import (
	"context"
	"net/http"

	"github.com/sheetwise/gateway/internal/auth"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/util"
)

// TokenVerifier verifies an access token presented with a device ID.
type TokenVerifier interface {
	Verify(ctx context.Context, token, deviceID string) (*auth.Principal, error)
}

// Authenticate requires a valid bearer token bound to the device named
// in X-Device-ID. On success the principal is stored in the request
// context; every failure is a uniform 401.
func Authenticate(verifier TokenVerifier, logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := util.BearerToken(r)
			deviceID := r.Header.Get(util.HeaderDeviceID)

			if token == "" || deviceID == "" {
				writeAuthFailed(w, r)
				return
			}

			principal, err := verifier.Verify(r.Context(), token, deviceID)
			if err != nil {
				logger.WithContext(r.Context()).Debug("token verification failed",
					observability.String("path", r.URL.Path),
					observability.Error(err),
				)
				writeAuthFailed(w, r)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthFailed(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusUnauthorized, util.ErrorBody{
		Code:          util.CodeAuthFailed,
		Message:       "authentication required",
		CorrelationID: observability.CorrelationIDFromContext(r.Context()),
	})
}
