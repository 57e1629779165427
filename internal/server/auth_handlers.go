package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheetwise/gateway/internal/auth"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/util"
)

// maxAuthBody bounds auth request bodies.
const maxAuthBody = 4 << 10

type authHandler struct {
	manager *auth.Manager
	logger  observability.Logger
}

func newAuthHandler(manager *auth.Manager, logger observability.Logger) *authHandler {
	return &authHandler{manager: manager, logger: logger}
}

type issueRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

// tokenResponse is the wire form of an issued pair; expiries are in
// seconds.
type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	AccessExpiresIn  int64  `json:"accessExpiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

func newTokenResponse(pair *auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresIn:  int64(pair.AccessExpiresIn.Seconds()),
		RefreshExpiresIn: int64(pair.RefreshExpiresIn.Seconds()),
	}
}

// issueToken mints a device-bound token pair for the presented
// principal.
func (h *authHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !h.decode(w, r, &req) {
		return
	}

	deviceID := r.Header.Get(util.HeaderDeviceID)
	if req.UserID == "" || deviceID == "" {
		h.writeInvalid(w, r, "userId and X-Device-ID are required")
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}

	pair, err := h.manager.Issue(r.Context(), &auth.Principal{
		ID:       req.UserID,
		Role:     role,
		DeviceID: deviceID,
	})
	if err != nil {
		h.writeAuthError(w, r, "token issuance failed", err)
		return
	}

	util.WriteSuccess(w, http.StatusCreated, newTokenResponse(pair))
}

// refreshToken rotates a refresh token. The old token is consumed
// whether or not the caller receives the response.
func (h *authHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	deviceID := r.Header.Get(util.HeaderDeviceID)
	if req.RefreshToken == "" || deviceID == "" {
		h.writeInvalid(w, r, "refreshToken and X-Device-ID are required")
		return
	}

	pair, err := h.manager.Refresh(r.Context(), req.RefreshToken, deviceID)
	if err != nil {
		h.writeAuthError(w, r, "token refresh failed", err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, newTokenResponse(pair))
}

// revokeToken revokes the token named in the body, or the caller's own
// access token when the body is empty.
func (h *authHandler) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	token := req.Token
	if token == "" {
		token = util.BearerToken(r)
	}

	if err := h.manager.Revoke(r.Context(), token); err != nil {
		h.writeAuthError(w, r, "token revocation failed", err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *authHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeInvalid(w, r, "malformed request body")
		return false
	}
	return true
}

func (h *authHandler) writeInvalid(w http.ResponseWriter, r *http.Request, message string) {
	util.WriteError(w, http.StatusBadRequest, util.ErrorBody{
		Code:          util.CodeInvalidRequest,
		Message:       message,
		CorrelationID: observability.CorrelationIDFromContext(r.Context()),
	})
}

func (h *authHandler) writeAuthError(w http.ResponseWriter, r *http.Request, logMessage string, err error) {
	h.logger.WithContext(r.Context()).Warn(logMessage, observability.Error(err))

	status := http.StatusUnauthorized
	code := util.CodeAuthFailed
	message := "authentication failed"
	if errors.Is(err, auth.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
		code = util.CodeDependencyUnavailable
		message = "token service temporarily unavailable"
	}

	util.WriteError(w, status, util.ErrorBody{
		Code:          code,
		Message:       message,
		CorrelationID: observability.CorrelationIDFromContext(r.Context()),
	})
}
