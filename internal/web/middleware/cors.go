package middleware

import (
	"net/http"
	"strings"
)

// OriginPolicy decides which browser origins may call the API.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from a list of exact origins.
// In addition, localhost origins on any port are always allowed for development.
func NewOriginPolicy(origins []string) *OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &OriginPolicy{allowed: allowed}
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost or http(s)://localhost:<port>.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// Allowed checks whether a request origin should receive CORS headers.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if isLocalhostOrigin(origin) {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// CORS returns middleware that handles CORS headers with the origin whitelist of policy.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if policy.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that sets basic security headers on API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
