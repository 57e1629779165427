package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetwise/gateway/internal/auth"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/ratelimit"
	"github.com/sheetwise/gateway/internal/util"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var gotCID string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCID = observability.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, gotCID)
	assert.Equal(t, gotCID, rec.Header().Get(util.HeaderCorrelationID))
}

func TestRequestIDEchoesClientValue(t *testing.T) {
	var gotCID string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCID = observability.CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(util.HeaderCorrelationID, "client-cid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-cid", gotCID)
	assert.Equal(t, "client-cid", rec.Header().Get(util.HeaderCorrelationID))
}

func TestRecoveryConvertsPanic(t *testing.T) {
	h := Recovery(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var envelope util.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, util.CodeInternal, envelope.Error.Code)
}

// stubVerifier verifies a single known token/device pair.
type stubVerifier struct {
	token    string
	deviceID string
}

func (v stubVerifier) Verify(_ context.Context, token, deviceID string) (*auth.Principal, error) {
	if token == v.token && deviceID == v.deviceID {
		return &auth.Principal{ID: "user-1", Role: "user", DeviceID: deviceID}, nil
	}
	return nil, auth.ErrTokenInvalid
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	var principal *auth.Principal
	h := Authenticate(stubVerifier{token: "tok", deviceID: "dev"}, observability.NopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ = PrincipalFromContext(r.Context())
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(util.HeaderAuthorization, "Bearer tok")
	req.Header.Set(util.HeaderDeviceID, "dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, principal)
	assert.Equal(t, "user-1", principal.ID)
}

func TestAuthenticateRejects(t *testing.T) {
	h := Authenticate(stubVerifier{token: "tok", deviceID: "dev"}, observability.NopLogger())(okHandler())

	cases := map[string]func(*http.Request){
		"missing authorization": func(r *http.Request) {
			r.Header.Set(util.HeaderDeviceID, "dev")
		},
		"missing device id": func(r *http.Request) {
			r.Header.Set(util.HeaderAuthorization, "Bearer tok")
		},
		"wrong token": func(r *http.Request) {
			r.Header.Set(util.HeaderAuthorization, "Bearer other")
			r.Header.Set(util.HeaderDeviceID, "dev")
		},
		"wrong device": func(r *http.Request) {
			r.Header.Set(util.HeaderAuthorization, "Bearer tok")
			r.Header.Set(util.HeaderDeviceID, "other")
		},
		"malformed scheme": func(r *http.Request) {
			r.Header.Set(util.HeaderAuthorization, "Basic tok")
			r.Header.Set(util.HeaderDeviceID, "dev")
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var envelope util.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, util.CodeAuthFailed, envelope.Error.Code)
		})
	}
}

// stubLimiter returns a fixed decision.
type stubLimiter struct {
	result *ratelimit.Result
	class  string
}

func (l *stubLimiter) Allow(_ context.Context, class, _ string) (*ratelimit.Result, error) {
	l.class = class
	return l.result, nil
}

func (l *stubLimiter) Limit(string) ratelimit.Quota { return ratelimit.Quota{} }

func (l *stubLimiter) Reset(context.Context, string, string) error { return nil }

func TestRateLimitSetsHeaders(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{
		Allowed:    true,
		Limit:      30,
		Remaining:  12,
		ResetAfter: 45 * time.Second,
	}}
	resolve := PrefixClassResolver(map[string]string{"/api/v1/ai": "formula.suggest"})

	h := RateLimit(limiter, resolve, observability.NopLogger())(okHandler())

	before := time.Now()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ai/formula/suggest", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "formula.suggest", limiter.class)
	assert.Equal(t, "30", rec.Header().Get(util.HeaderRateLimitLimit))
	assert.Equal(t, "12", rec.Header().Get(util.HeaderRateLimitRemaining))

	// The reset header is an absolute epoch timestamp.
	resetAt, err := strconv.ParseInt(rec.Header().Get(util.HeaderRateLimitReset), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resetAt, before.Add(44*time.Second).Unix())
	assert.LessOrEqual(t, resetAt, time.Now().Add(46*time.Second).Unix())
}

func TestRateLimitRejects(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{
		Allowed:    false,
		Limit:      10,
		RetryAfter: 20 * time.Second,
		ResetAfter: 20 * time.Second,
	}}
	resolve := PrefixClassResolver(nil)

	h := RateLimit(limiter, resolve, observability.NopLogger())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "20", rec.Header().Get(util.HeaderRetryAfter))

	var envelope util.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, util.CodeRateLimited, envelope.Error.Code)
}

func TestRateLimitKeysByPrincipal(t *testing.T) {
	var gotSubject string
	limiter := &subjectRecorder{record: &gotSubject}
	h := RateLimit(limiter, PrefixClassResolver(nil), observability.NopLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := ContextWithPrincipal(req.Context(), &auth.Principal{ID: "user-42"})
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	assert.Equal(t, "user-42", gotSubject)
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	var gotSubject string
	limiter := &subjectRecorder{record: &gotSubject}
	h := RateLimit(limiter, PrefixClassResolver(nil), observability.NopLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4312"
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", gotSubject)
}

type subjectRecorder struct {
	record *string
}

func (l *subjectRecorder) Allow(_ context.Context, _, subject string) (*ratelimit.Result, error) {
	*l.record = subject
	return &ratelimit.Result{Allowed: true}, nil
}

func (l *subjectRecorder) Limit(string) ratelimit.Quota { return ratelimit.Quota{} }

func (l *subjectRecorder) Reset(context.Context, string, string) error { return nil }

func TestPrefixClassResolverLongestMatchWins(t *testing.T) {
	resolve := PrefixClassResolver(map[string]string{
		"/api/v1/ai":                 "ai.default",
		"/api/v1/ai/formula/suggest": "formula.suggest",
	})

	assert.Equal(t, "formula.suggest",
		resolve(httptest.NewRequest(http.MethodGet, "/api/v1/ai/formula/suggest", nil)))
	assert.Equal(t, "ai.default",
		resolve(httptest.NewRequest(http.MethodGet, "/api/v1/ai/other", nil)))
	assert.Equal(t, ratelimit.DefaultClass,
		resolve(httptest.NewRequest(http.MethodGet, "/api/v1/core/x", nil)))
}
