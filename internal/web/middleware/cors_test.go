package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginPolicy_Allowed(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://school.example.org/", " https://admin.example.org "})

	tests := []struct {
		origin   string
		expected bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://localhost:8443", true},
		{"http://localhost.evil.com", false},
		{"https://school.example.org", true},
		{"https://admin.example.org", true},
		{"https://other.example.org", false},
	}

	for _, tc := range tests {
		if got := policy.Allowed(tc.origin); got != tc.expected {
			t.Errorf("Allowed(%q) = %v; want %v", tc.origin, got, tc.expected)
		}
	}
}

func TestCORS_SetsHeadersForAllowedOrigin(t *testing.T) {
	handler := CORS(NewOriginPolicy([]string{"https://school.example.org"}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schools", nil)
	req.Header.Set("Origin", "https://school.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected request to reach the next handler, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://school.example.org" {
		t.Errorf("expected allow-origin header, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORS(NewOriginPolicy(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schools", nil)
	req.Header.Set("Origin", "https://unknown.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("expected preflight not to reach the next handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unknown origin, got %q", got)
	}
}
