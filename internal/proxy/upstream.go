// Package proxy forwards gateway requests to downstream services,
// layering the response cache, request coalescing, and circuit breaker
// in front of the outbound HTTP call.
package proxy

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
)

// Upstream describes a downstream service the gateway fronts.
type Upstream struct {
	// Name identifies the service in logs, metrics, and circuit
	// breaker state.
	Name string

	// BaseURL is the root URL requests are forwarded to. The matched
	// route prefix is stripped before the remaining path is appended.
	BaseURL string

	// Timeout bounds a single forwarded call, connection included.
	Timeout time.Duration
}

// normalize fills zero fields with defaults.
func (u *Upstream) normalize() {
	if u.Timeout <= 0 {
		u.Timeout = defaultTimeout
	}
}

// newHTTPClient builds the outbound client for an upstream. Every
// forwarded call carries the upstream's timeout so a hung dependency
// surfaces as an error instead of a stuck handler.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConns,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}
}
