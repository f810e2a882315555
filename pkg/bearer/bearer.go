package bearer

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minKeyLength = 32

// Config holds issuer settings, populated from environment variables.
type Config struct {
	SigningKey string        `env:"BEARER_SIGNING_KEY,required"`
	Issuer     string        `env:"BEARER_ISSUER" envDefault:"sessionkit"`
	Audience   string        `env:"BEARER_AUDIENCE" envDefault:"sessionkit"`
	TokenTTL   time.Duration `env:"BEARER_TOKEN_TTL" envDefault:"15m"`
}

// Claims is the signed identity assertion carried by a bearer token.
// SessionID binds the stateless token back to server-side session state
// so revocation can be enforced by a store lookup.
type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HMAC-SHA256 signed bearer tokens with fixed
// issuer/audience values. Verification fails closed: any structural,
// signature, temporal or claim mismatch rejects the token with a
// distinct error so callers can tell "expired, refresh" apart from
// "tampered, terminate".
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// New creates an Issuer. The signing key must be at least 32 bytes and
// the token TTL positive.
func New(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.SigningKey) < minKeyLength {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.TokenTTL <= 0 {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, ErrMissingIssuerAudience
	}

	i := &Issuer{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token asserting the given identity for the configured
// lifetime. The returned string is opaque to callers.
func (i *Issuer) Issue(userID, role, sessionID string) (string, error) {
	now := i.now()

	claims := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", errors.Join(ErrTokenSigningFailed, err)
	}
	return signed, nil
}

// Verify checks the token's signature, structure, temporal claims and
// issuer/audience binding, returning the embedded claims on success.
// Failure kinds are reported individually; see errors.go.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	// The library validates exp and iat separately; the fixed-lifetime
	// invariant catches tokens minted with a foreign TTL under a leaked
	// key rotation window.
	if claims.ExpiresAt == nil || claims.IssuedAt == nil ||
		claims.ExpiresAt.Sub(claims.IssuedAt.Time) != i.ttl {
		return nil, ErrTokenLifetimeMismatch
	}

	return claims, nil
}

// TTL exposes the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// classify maps jwt library failures onto the package's distinct,
// individually-reported error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.Join(ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.Join(ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Join(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return errors.Join(ErrTokenIssuerMismatch, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return errors.Join(ErrTokenAudienceMismatch, err)
	default:
		return errors.Join(ErrTokenMalformed, err)
	}
}
