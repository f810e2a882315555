package bearer

import (
	"net/http"
	"strings"
)

// Middleware verifies the Authorization bearer token and stores its
// claims in the request context. Requests without a token pass through
// unauthenticated; requests with an invalid token are rejected with a
// generic message that does not reveal which check failed.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := i.Verify(token)
		if err != nil {
			http.Error(w, "invalid or expired credential", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func tokenFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
