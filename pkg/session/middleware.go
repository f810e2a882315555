package session

import (
	"net/http"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Middleware resolves the request's session cookie and injects the
// session into the request context. When the session is gone but a
// remember-me cookie is present, it transparently mints a fresh session
// and rebinds the cookies before the handler runs. Requests without
// valid credentials pass through anonymous; use RequireSession to gate
// protected routes.
func Middleware(m *Manager, binder *CookieBinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := binder.SessionID(r); id != "" {
				if sess, err := m.Validate(r.Context(), id); err == nil {
					next.ServeHTTP(w, r.WithContext(SetToContext(r.Context(), sess)))
					return
				}
			}

			if token := binder.RememberToken(r); token != "" {
				creds, err := m.RefreshFromRememberToken(r.Context(), token, r)
				if err == nil {
					if err := binder.Bind(w, creds); err != nil {
						m.log.ErrorContext(r.Context(), "failed to rebind session cookies",
							logger.Error(err))
					}
					if sess, err := m.Validate(r.Context(), creds.SessionID); err == nil {
						next.ServeHTTP(w, r.WithContext(SetToContext(r.Context(), sess)))
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects anonymous requests with 401. Mount after
// Middleware.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, "invalid or expired credential", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
