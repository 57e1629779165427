package middleware

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/ratelimit"
	"github.com/sheetwise/gateway/internal/util"
)

// ClassResolver maps a request to its endpoint class.
type ClassResolver func(r *http.Request) string

// PrefixClassResolver builds a ClassResolver from a path-prefix table.
// The longest matching prefix wins; unmatched paths get the default
// class.
func PrefixClassResolver(classes map[string]string) ClassResolver {
	prefixes := make([]string, 0, len(classes))
	for prefix := range classes {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})

	return func(r *http.Request) string {
		for _, prefix := range prefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return classes[prefix]
			}
		}
		return ratelimit.DefaultClass
	}
}

// RateLimit enforces per-class quotas keyed by the authenticated
// principal, falling back to the client IP for anonymous requests.
// Every response carries the X-RateLimit-* headers; rejections add
// Retry-After.
func RateLimit(limiter ratelimit.Limiter, resolve ClassResolver, logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := resolve(r)
			subject := util.ClientIP(r)
			if p, ok := PrincipalFromContext(r.Context()); ok {
				subject = p.ID
			}

			res, err := limiter.Allow(r.Context(), class, subject)
			if err != nil {
				// The limiter's fallback policy already absorbed store
				// failures; anything else is a programming error, so
				// fail open rather than block traffic.
				logger.WithContext(r.Context()).Error("rate limit check failed",
					observability.String("class", class),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			resetAt := time.Now().Add(res.ResetAfter).Unix()
			w.Header().Set(util.HeaderRateLimitLimit, strconv.Itoa(res.Limit))
			w.Header().Set(util.HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
			w.Header().Set(util.HeaderRateLimitReset, strconv.FormatInt(resetAt, 10))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(util.HeaderRetryAfter, strconv.Itoa(retryAfter))
				util.WriteError(w, http.StatusTooManyRequests, util.ErrorBody{
					Code:          util.CodeRateLimited,
					Message:       "rate limit exceeded for " + class,
					CorrelationID: observability.CorrelationIDFromContext(r.Context()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
