// Package health exposes the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/sheetwise/gateway/internal/breaker"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/store"
	"github.com/sheetwise/gateway/internal/util"
)

const probeTimeout = 2 * time.Second

// Handler serves the health endpoints.
type Handler struct {
	store    store.Store
	breakers *breaker.Registry
	logger   observability.Logger
}

// NewHandler creates a health Handler. The breaker registry is
// optional; when present, breaker states are reported on readiness.
func NewHandler(s store.Store, breakers *breaker.Registry, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{store: s, breakers: breakers, logger: logger}
}

// Live reports process liveness. It always succeeds while the process
// can serve requests.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness: the coordination store must answer a ping.
// Breaker states are included for operators but do not fail the probe;
// an open breaker means a downstream is sick, not the gateway.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	body := map[string]any{"status": "ok"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness probe: store ping failed", observability.Error(err))
		body["status"] = "degraded"
		body["store"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		body["store"] = "ok"
	}

	if h.breakers != nil {
		states := make(map[string]string)
		for name, state := range h.breakers.States() {
			states[name] = state.String()
		}
		body["breakers"] = states
	}

	util.WriteJSON(w, status, body)
}
