package util

import (
	"net"
	"net/http"
	"strings"
)

// Common header names.
const (
	HeaderAuthorization = "Authorization"
	HeaderDeviceID      = "X-Device-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderForwardedFor  = "X-Forwarded-For"
	HeaderRetryAfter    = "Retry-After"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	HeaderCache = "X-Cache"
)

// ClientIP returns the originating client address for a request. The
// leftmost X-Forwarded-For entry wins when present; otherwise the
// connection's RemoteAddr with the port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	return StripPort(r.RemoteAddr)
}

// StripPort removes the port from a host:port address.
func StripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns an empty string when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get(HeaderAuthorization)
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
