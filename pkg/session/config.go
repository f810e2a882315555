package session

import "time"

// Config holds session manager configuration, populated from
// environment variables.
type Config struct {
	// SessionTTL is the lifetime of a standard session.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// RememberSessionTTL is the session lifetime when the login opted
	// into remember-me.
	RememberSessionTTL time.Duration `env:"SESSION_REMEMBER_TTL" envDefault:"168h"`

	// RememberTokenTTL is the lifetime of a remember-me token.
	RememberTokenTTL time.Duration `env:"SESSION_REMEMBER_TOKEN_TTL" envDefault:"720h"`

	// PrimaryOpTimeout bounds each primary store call.
	PrimaryOpTimeout time.Duration `env:"SESSION_PRIMARY_OP_TIMEOUT" envDefault:"300ms"`

	// ReconcileInterval is how often the background loop re-checks a
	// known-dead primary tier. Zero disables the loop.
	ReconcileInterval time.Duration `env:"SESSION_RECONCILE_INTERVAL" envDefault:"30s"`

	// SweepInterval is how often expired fallback rows are reaped.
	// Zero disables the sweep.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"0"`

	// Cookie names used by the CookieBinder. The remember flag cookie
	// is the only script-readable one and carries just "1".
	CookieName             string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	RememberCookieName     string `env:"SESSION_REMEMBER_COOKIE_NAME" envDefault:"remember_token"`
	RememberFlagCookieName string `env:"SESSION_REMEMBER_FLAG_COOKIE_NAME" envDefault:"remember_me"`

	// SecureCookies enables the Secure flag on outbound cookies.
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// StrictFingerprint upgrades fingerprint mismatches from a logged
	// advisory to a hard rejection.
	StrictFingerprint bool `env:"SESSION_STRICT_FINGERPRINT" envDefault:"false"`

	// RotateRememberTokens makes remember-me tokens single-use: each
	// refresh revokes the presented token and issues a replacement.
	RotateRememberTokens bool `env:"SESSION_ROTATE_REMEMBER_TOKENS" envDefault:"false"`
}

// DefaultConfig returns the defaults documented on the field tags.
func DefaultConfig() Config {
	return Config{
		SessionTTL:             24 * time.Hour,
		RememberSessionTTL:     7 * 24 * time.Hour,
		RememberTokenTTL:       30 * 24 * time.Hour,
		PrimaryOpTimeout:       DefaultPrimaryOpTimeout,
		ReconcileInterval:      30 * time.Second,
		CookieName:             "sid",
		RememberCookieName:     "remember_token",
		RememberFlagCookieName: "remember_me",
	}
}

// sessionTTL returns the session lifetime for the given remember-me choice.
func (c Config) sessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return c.RememberSessionTTL
	}
	return c.SessionTTL
}

// tombstoneTTL returns how long a revocation tombstone must persist to
// outlive any credential of the given kind it could suppress.
func (c Config) tombstoneTTL(kind Kind) time.Duration {
	if kind == KindRemember {
		return c.RememberTokenTTL
	}
	return max(c.SessionTTL, c.RememberSessionTTL)
}
