package bearer

import "errors"

var (
	// Construction errors.
	ErrSigningKeyTooShort    = errors.New("bearer.signing_key_too_short")
	ErrInvalidTokenTTL       = errors.New("bearer.invalid_token_ttl")
	ErrMissingIssuerAudience = errors.New("bearer.missing_issuer_audience")
	ErrTokenSigningFailed    = errors.New("bearer.signing_failed")

	// Verification failure kinds. Reported individually so callers can
	// prompt re-authentication on expiry but terminate on tampering.
	ErrTokenMalformed        = errors.New("bearer.token_malformed")
	ErrTokenExpired          = errors.New("bearer.token_expired")
	ErrTokenSignatureInvalid = errors.New("bearer.token_signature_invalid")
	ErrTokenIssuerMismatch   = errors.New("bearer.token_issuer_mismatch")
	ErrTokenAudienceMismatch = errors.New("bearer.token_audience_mismatch")
	ErrTokenLifetimeMismatch = errors.New("bearer.token_lifetime_mismatch")
)
