package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4312"
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set(HeaderForwardedFor, "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1", StripPort("10.0.0.1:8080"))
	assert.Equal(t, "10.0.0.1", StripPort("10.0.0.1"))
	assert.Equal(t, "::1", StripPort("[::1]:8080"))
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))

	req.Header.Set(HeaderAuthorization, "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", BearerToken(req))

	req.Header.Set(HeaderAuthorization, "bearer abc")
	assert.Equal(t, "abc", BearerToken(req))

	req.Header.Set(HeaderAuthorization, "Basic abc")
	assert.Empty(t, BearerToken(req))

	req.Header.Set(HeaderAuthorization, "Bearer ")
	assert.Empty(t, BearerToken(req))
}
