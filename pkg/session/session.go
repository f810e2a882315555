package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Tier identifies which storage tier holds or served a credential.
type Tier string

const (
	// TierPrimary is the fast, volatile store (Redis).
	TierPrimary Tier = "primary"
	// TierFallback is the durable store (Postgres).
	TierFallback Tier = "fallback"
)

// Kind discriminates credential records sharing the fallback namespace.
type Kind string

const (
	KindSession  Kind = "session"
	KindRemember Kind = "remember"
)

// Session is the server-tracked proof of an authenticated request
// context. A user may hold many concurrent sessions (multi-device);
// each session belongs to exactly one user.
type Session struct {
	ID          string    `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	RememberMe  bool      `json:"remember_me,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`

	// Tier records which store served this session; set on read, not
	// persisted.
	Tier Tier `json:"-"`
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return s != nil && now.After(s.ExpiresAt)
}

// RememberToken is a long-lived, device-bound credential that can mint
// new sessions without re-presenting a password.
type RememberToken struct {
	Token       string    `json:"token"`
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`

	Tier Tier `json:"-"`
}

// IsExpired reports whether the token is past its expiry.
func (t *RememberToken) IsExpired(now time.Time) bool {
	return t != nil && now.After(t.ExpiresAt)
}

// Credentials is the immutable result of a successful create or
// remember-me refresh. It carries everything the transport layer needs;
// the remember token travels here and nowhere else, so a token that was
// created is always returned.
type Credentials struct {
	SessionID         string
	UserID            uuid.UUID
	Role              string
	ExpiresAt         time.Time
	MaxAge            int
	RememberMe        bool
	RememberToken     string
	RememberExpiresAt time.Time

	// Tier is the storage tier that accepted the session write.
	Tier Tier
}

// generateID creates a cryptographically secure 256-bit identifier.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
