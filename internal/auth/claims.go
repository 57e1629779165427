// Package auth implements the token lifecycle: issuing, verifying,
// rotating, and revoking device-bound bearer tokens. Per-token
// fingerprints and the revocation list live in the coordination store
// so every gateway replica validates consistently.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Principal is the authenticated identity associated with a request.
// It is established at token issuance and immutable for the life of
// the token.
type Principal struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	DeviceID string `json:"deviceId"`
}

// Claims are the JWT claims minted by the token manager. The
// fingerprint is present on access tokens only; the family id links a
// refresh token chain across rotations.
type Claims struct {
	jwt.RegisteredClaims

	Role        string `json:"role,omitempty"`
	DeviceID    string `json:"device_id"`
	Fingerprint string `json:"fingerprint,omitempty"`
	TokenType   string `json:"token_type"`
	Family      string `json:"family,omitempty"`
}

// Principal returns the principal snapshot embedded in the claims.
func (c *Claims) Principal() *Principal {
	return &Principal{
		ID:       c.Subject,
		Role:     c.Role,
		DeviceID: c.DeviceID,
	}
}

// Remaining returns the time until the token expires, or zero when the
// token carries no expiry or has already expired.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TokenPair is the result of issuance and refresh: a short-lived
// access token and its longer-lived refresh token.
type TokenPair struct {
	AccessToken      string        `json:"accessToken"`
	RefreshToken     string        `json:"refreshToken"`
	AccessExpiresIn  time.Duration `json:"accessExpiresIn"`
	RefreshExpiresIn time.Duration `json:"refreshExpiresIn"`
}
