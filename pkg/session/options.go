package session

import (
	"log/slog"
	"net/http"
	"time"
)

// FingerprintFunc derives a device fingerprint from the request.
type FingerprintFunc func(r *http.Request) string

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithPrimaryStore sets the fast, volatile tier.
func WithPrimaryStore(store PrimaryStore) Option {
	return func(m *Manager) { m.primary = store }
}

// WithFallbackStore sets the durable tier.
func WithFallbackStore(store FallbackStore) Option {
	return func(m *Manager) { m.fallback = store }
}

// WithConfig sets the full configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithLogger sets the structured logger for lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithFingerprint sets the device fingerprint function.
func WithFingerprint(fn FingerprintFunc) Option {
	return func(m *Manager) { m.fingerprintFunc = fn }
}

// WithStrictFingerprint upgrades fingerprint mismatches to rejections.
func WithStrictFingerprint(strict bool) Option {
	return func(m *Manager) { m.config.StrictFingerprint = strict }
}

// WithRememberTokenRotation makes remember-me tokens single-use.
func WithRememberTokenRotation(rotate bool) Option {
	return func(m *Manager) { m.config.RotateRememberTokens = rotate }
}

// WithReconcileInterval overrides the primary availability probe cadence.
func WithReconcileInterval(interval time.Duration) Option {
	return func(m *Manager) { m.config.ReconcileInterval = interval }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
