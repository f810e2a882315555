package fingerprint

import "net/http"

// Middleware computes the request's device fingerprint once and makes it
// available to downstream handlers via the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetToContext(r.Context(), Generate(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
