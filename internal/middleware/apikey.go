package middleware

import "net/http"

// APIKeyAuth gates extension-originated tracking calls with a static shared
// secret, distinct from the dashboard user credential.
type APIKeyAuth struct {
	key string
}

func NewAPIKeyAuth(key string) *APIKeyAuth {
	return &APIKeyAuth{key: key}
}

func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" || apiKey != a.key {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
