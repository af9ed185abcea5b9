package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"alice": "hunter2"})

	tests := []struct {
		name     string
		user     string
		pass     string
		expected bool
	}{
		{"correct credentials", "alice", "hunter2", true},
		{"wrong password", "alice", "wrong", false},
		{"unknown user", "bob", "hunter2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.user, tt.pass); got != tt.expected {
				t.Fatalf("Verify(%q, %q) = %v, want %v", tt.user, tt.pass, got, tt.expected)
			}
		})
	}
}

func TestMiddlewareRejectsMissingAuth(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"alice": "hunter2"})
	handler := Middleware(v, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header to be set")
	}
}

func TestMiddlewareAcceptsValidAuthAndStoresUsername(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"alice": "hunter2"})
	var seenUser string
	handler := Middleware(v, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UsernameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("alice", "hunter2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if seenUser != "alice" {
		t.Fatalf("expected username alice in context, got %q", seenUser)
	}
}
