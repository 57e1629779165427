package auth

import (
	"context"
	"time"

	"github.com/sheetwise/gateway/internal/store"
)

// Coordination store key prefixes for token state.
const (
	fingerprintKeyPrefix = "auth:fp:"
	revocationKeyPrefix  = "auth:revoked:"

	revokedMarker = "1"
)

// SessionRepository persists per-token state in the coordination store
// so any replica can validate tokens consistently.
type SessionRepository interface {
	// SaveFingerprint stores the fingerprint record for a token id with
	// a TTL equal to the token's validity window.
	SaveFingerprint(ctx context.Context, tokenID, fingerprint string, ttl time.Duration) error

	// Fingerprint returns the stored fingerprint for a token id.
	// Returns store.ErrKeyNotFound when no record exists.
	Fingerprint(ctx context.Context, tokenID string) (string, error)

	// DeleteFingerprint removes the fingerprint record for a token id.
	DeleteFingerprint(ctx context.Context, tokenID string) error

	// Revoke writes a revocation entry for a token id with the given TTL.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsRevoked reports whether a revocation entry exists for a token id.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// storeRepository implements SessionRepository over the coordination store.
type storeRepository struct {
	store store.Store
}

// NewSessionRepository creates a SessionRepository backed by the given
// coordination store.
func NewSessionRepository(s store.Store) SessionRepository {
	return &storeRepository{store: s}
}

func (r *storeRepository) SaveFingerprint(ctx context.Context, tokenID, fingerprint string, ttl time.Duration) error {
	return r.store.Set(ctx, fingerprintKeyPrefix+tokenID, fingerprint, ttl)
}

func (r *storeRepository) Fingerprint(ctx context.Context, tokenID string) (string, error) {
	return r.store.Get(ctx, fingerprintKeyPrefix+tokenID)
}

func (r *storeRepository) DeleteFingerprint(ctx context.Context, tokenID string) error {
	return r.store.Delete(ctx, fingerprintKeyPrefix+tokenID)
}

func (r *storeRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.store.Set(ctx, revocationKeyPrefix+tokenID, revokedMarker, ttl)
}

func (r *storeRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.store.Exists(ctx, revocationKeyPrefix+tokenID)
}
