package auth

import "errors"

// Token lifecycle errors. Verification failures collapse into
// ErrTokenInvalid so callers cannot distinguish why a credential was
// rejected; the precise reason is logged server-side only.
var (
	// ErrTokenInvalid indicates the presented token failed verification:
	// bad signature, expired, not yet valid, device mismatch, missing or
	// mismatched fingerprint, or revoked.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrRefreshInvalid indicates the presented refresh token failed
	// verification or was already used (rotation reuse).
	ErrRefreshInvalid = errors.New("refresh token invalid")

	// ErrStoreUnavailable indicates the coordination store could not be
	// reached during issuance or refresh. Verification never returns
	// this error: a token that cannot be checked is treated as invalid.
	ErrStoreUnavailable = errors.New("token store unavailable")
)
