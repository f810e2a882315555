package fingerprint

import "context"

type fingerprintContextKey struct{}

// SetToContext stores a fingerprint in the context.
func SetToContext(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fp)
}

// FromContext returns the fingerprint stored by Middleware, or an empty
// string when none is present.
func FromContext(ctx context.Context) string {
	fp, _ := ctx.Value(fingerprintContextKey{}).(string)
	return fp
}
