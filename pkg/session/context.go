package session

import "context"

type ctxKey struct{}

// SetToContext stores the session in the context.
func SetToContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext retrieves the session from the context, nil and false
// when the request is anonymous.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok
}
