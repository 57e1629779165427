package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/store"
)

// fingerprintEntropy is the number of random bytes mixed into each
// token fingerprint before salting with the device id.
const fingerprintEntropy = 32

// minRevocationTTL keeps revocation entries alive at least briefly even
// for tokens on the edge of expiry, so rotation reuse is still caught.
const minRevocationTTL = time.Second

// Config holds token manager configuration.
type Config struct {
	// Issuer is the iss claim on minted tokens.
	Issuer string

	// SigningKey is the HMAC secret for HS256 signing and verification.
	SigningKey []byte

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration
}

// DefaultConfig returns a Config with default lifetimes. The signing
// key has no default; it must come from configuration.
func DefaultConfig() *Config {
	return &Config{
		Issuer:     "sheetwise-gateway",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Manager issues, verifies, rotates, and revokes bearer tokens. Tokens
// are never mutated after issuance; rotation mints new ones and revokes
// the superseded refresh token.
type Manager struct {
	config  *Config
	repo    SessionRepository
	logger  observability.Logger
	metrics *Metrics

	// now is swappable for tests.
	now func() time.Time
}

// ManagerOption is a functional option for the Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger observability.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the manager's metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock sets the manager's time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager backed by the given repository.
func NewManager(config *Config, repo SessionRepository, opts ...ManagerOption) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.SigningKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = DefaultConfig().AccessTTL
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = DefaultConfig().RefreshTTL
	}

	m := &Manager{
		config: config,
		repo:   repo,
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics()
	}
	return m, nil
}

// Issue mints an access/refresh token pair for the principal. The
// access token carries a fresh fingerprint salted with the device id;
// the fingerprint record is written to the coordination store before
// the pair is returned. Store failure fails the whole operation: a
// token without fingerprint protection is never issued.
func (m *Manager) Issue(ctx context.Context, principal *Principal) (*TokenPair, error) {
	if principal == nil || principal.ID == "" || principal.DeviceID == "" {
		return nil, fmt.Errorf("%w: principal id and device id are required", ErrTokenInvalid)
	}
	family := uuid.New().String()
	return m.mintPair(ctx, principal, family)
}

// mintPair mints and registers a token pair linked by the family id.
func (m *Manager) mintPair(ctx context.Context, principal *Principal, family string) (*TokenPair, error) {
	now := m.now()

	fingerprint, err := newFingerprint(principal.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate fingerprint: %w", err)
	}

	accessID := uuid.New().String()
	access, err := m.sign(&Claims{
		RegisteredClaims: m.registered(accessID, principal.ID, now, m.config.AccessTTL),
		Role:             principal.Role,
		DeviceID:         principal.DeviceID,
		Fingerprint:      fingerprint,
		TokenType:        TokenTypeAccess,
		Family:           family,
	})
	if err != nil {
		return nil, err
	}

	refresh, err := m.sign(&Claims{
		RegisteredClaims: m.registered(uuid.New().String(), principal.ID, now, m.config.RefreshTTL),
		Role:             principal.Role,
		DeviceID:         principal.DeviceID,
		TokenType:        TokenTypeRefresh,
		Family:           family,
	})
	if err != nil {
		return nil, err
	}

	if err := m.repo.SaveFingerprint(ctx, accessID, fingerprint, m.config.AccessTTL); err != nil {
		m.metrics.RecordStoreFailure("save_fingerprint")
		m.logger.Error("fingerprint write failed, refusing to issue token",
			observability.String("principal", principal.ID),
			observability.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m.metrics.RecordIssue()

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  m.config.AccessTTL,
		RefreshExpiresIn: m.config.RefreshTTL,
	}, nil
}

// Verify validates an access token against its signature, lifetime,
// device binding, fingerprint record, and the revocation list. It
// never mutates state. Any store failure fails closed: the token is
// treated as invalid rather than admitted unverifiable.
func (m *Manager) Verify(ctx context.Context, rawToken, deviceID string) (*Principal, error) {
	claims, err := m.parse(rawToken)
	if err != nil {
		m.metrics.RecordVerify("invalid_token")
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.TokenType != TokenTypeAccess {
		m.metrics.RecordVerify("wrong_type")
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(claims.DeviceID), []byte(deviceID)) != 1 {
		m.metrics.RecordVerify("device_mismatch")
		return nil, fmt.Errorf("%w: device mismatch", ErrTokenInvalid)
	}

	revoked, err := m.repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, m.failClosed("revocation_check", claims.ID, err)
	}
	if revoked {
		m.metrics.RecordVerify("revoked")
		return nil, fmt.Errorf("%w: token revoked", ErrTokenInvalid)
	}

	stored, err := m.repo.Fingerprint(ctx, claims.ID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			// Absence of the record invalidates the token even though
			// the signature still verifies (e.g. after store eviction).
			m.metrics.RecordVerify("fingerprint_missing")
			return nil, fmt.Errorf("%w: fingerprint record missing", ErrTokenInvalid)
		}
		return nil, m.failClosed("fingerprint_check", claims.ID, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(claims.Fingerprint)) != 1 {
		m.metrics.RecordVerify("fingerprint_mismatch")
		return nil, fmt.Errorf("%w: fingerprint mismatch", ErrTokenInvalid)
	}

	m.metrics.RecordVerify("success")
	return claims.Principal(), nil
}

// Refresh rotates a refresh token: the presented token is verified,
// revoked, and a new pair is minted under the same family. Refresh
// tokens are single-use; a second use fails via the revocation entry,
// which is written synchronously before the new pair is returned.
func (m *Manager) Refresh(ctx context.Context, rawRefresh, deviceID string) (*TokenPair, error) {
	claims, err := m.parse(rawRefresh)
	if err != nil {
		m.metrics.RecordRefresh("invalid_token")
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	if claims.TokenType != TokenTypeRefresh {
		m.metrics.RecordRefresh("wrong_type")
		return nil, fmt.Errorf("%w: not a refresh token", ErrRefreshInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(claims.DeviceID), []byte(deviceID)) != 1 {
		m.metrics.RecordRefresh("device_mismatch")
		return nil, fmt.Errorf("%w: device mismatch", ErrRefreshInvalid)
	}

	revoked, err := m.repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		m.metrics.RecordStoreFailure("revocation_check")
		m.logger.Error("revocation check failed during refresh, failing closed",
			observability.String("token_id", claims.ID),
			observability.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}
	if revoked {
		// Reuse after rotation. Treated as a compromise signal.
		m.metrics.RecordRefresh("reuse_detected")
		m.logger.Warn("refresh token reuse detected",
			observability.String("token_id", claims.ID),
			observability.String("family", claims.Family),
			observability.String("principal", claims.Subject),
		)
		return nil, fmt.Errorf("%w: token already used", ErrRefreshInvalid)
	}

	// Revoke before minting so the rotation is observable in the store
	// ahead of the new pair being usable.
	if err := m.revokeID(ctx, claims.ID, claims.Remaining(m.now())); err != nil {
		m.metrics.RecordStoreFailure("revoke")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, err := m.mintPair(ctx, claims.Principal(), claims.Family)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordRefresh("success")
	return pair, nil
}

// Revoke invalidates the presented token before its natural expiry by
// writing a revocation entry and deleting its fingerprint record. The
// token's signature must verify; expiry is not checked, so an expired
// token revokes cleanly as a no-op.
func (m *Manager) Revoke(ctx context.Context, rawToken string) error {
	claims, err := m.parseUnverifiedLifetime(rawToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if err := m.revokeID(ctx, claims.ID, claims.Remaining(m.now())); err != nil {
		m.metrics.RecordStoreFailure("revoke")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := m.repo.DeleteFingerprint(ctx, claims.ID); err != nil {
		m.metrics.RecordStoreFailure("delete_fingerprint")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m.metrics.RecordRevoke(claims.TokenType)
	m.logger.Info("token revoked",
		observability.String("token_id", claims.ID),
		observability.String("token_type", claims.TokenType),
	)
	return nil
}

// revokeID writes a revocation entry that outlives the token.
func (m *Manager) revokeID(ctx context.Context, tokenID string, remaining time.Duration) error {
	ttl := remaining
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	return m.repo.Revoke(ctx, tokenID, ttl)
}

// failClosed logs a store failure during verification as a security
// event and converts it to a token rejection.
func (m *Manager) failClosed(op, tokenID string, err error) error {
	m.metrics.RecordStoreFailure(op)
	m.logger.Error("coordination store unavailable during verification, failing closed",
		observability.String("operation", op),
		observability.String("token_id", tokenID),
		observability.Error(err),
	)
	return fmt.Errorf("%w: verification state unavailable", ErrTokenInvalid)
}

// registered builds the registered claim set for a new token.
func (m *Manager) registered(id, subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        id,
		Subject:   subject,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// sign signs claims with the configured HMAC key.
func (m *Manager) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parse parses and fully validates a token's signature and lifetime.
func (m *Manager) parse(rawToken string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("token has no id")
	}
	return claims, nil
}

// parseUnverifiedLifetime validates the signature but ignores expiry,
// so revocation works on tokens that have just lapsed.
func (m *Manager) parseUnverifiedLifetime(rawToken string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
	)
	if err != nil {
		// Expired tokens still carry a valid signature; accept them for
		// revocation purposes only.
		if claims.ID != "" && errors.Is(err, jwt.ErrTokenExpired) &&
			!errors.Is(err, jwt.ErrSignatureInvalid) {
			return claims, nil
		}
		return nil, err
	}
	return claims, nil
}

// keyFunc returns the HMAC verification key.
func (m *Manager) keyFunc(_ *jwt.Token) (any, error) {
	return m.config.SigningKey, nil
}

// newFingerprint derives a per-token fingerprint: 32 random bytes
// hashed together with the device id so a token replayed from a
// different device context cannot present a matching fingerprint.
func newFingerprint(deviceID string) (string, error) {
	buf := make([]byte, fingerprintEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(buf, []byte(deviceID)...))
	return hex.EncodeToString(sum[:]), nil
}
