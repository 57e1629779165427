package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetwise/gateway/internal/breaker"
	"github.com/sheetwise/gateway/internal/store"
)

func TestLiveAlwaysOK(t *testing.T) {
	h := NewHandler(store.NewMemoryStore(), nil, nil)

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyWithHealthyStore(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()

	breakers := breaker.NewRegistry(nil, nil, nil)
	breakers.Get("ai")

	h := NewHandler(s, breakers, nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, map[string]any{"ai": "closed"}, body["breakers"])
}

// deadStore fails pings.
type deadStore struct {
	store.Store
}

func (deadStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyWithDeadStore(t *testing.T) {
	h := NewHandler(deadStore{}, nil, nil)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestOpenBreakerDoesNotFailReadiness(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()

	breakers := breaker.NewRegistry(&breaker.Config{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	}, nil, nil)
	breakers.Get("ai").RecordFailure()

	h := NewHandler(s, breakers, nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ai":"open"`)
}
