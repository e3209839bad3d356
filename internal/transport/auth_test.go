package transport

import (
	"net/http"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-token")

	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestBearerAuth tests Bearer token authentication.
func TestBearerAuth(t *testing.T) {
	auth := &BearerAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-token")

	authHeader := req.Header.Get("Authorization")
	expected := "Bearer test-token"
	if authHeader != expected {
		t.Errorf("Expected Authorization header '%s', got '%s'", expected, authHeader)
	}
}

// TestHeaderAuth tests raw header authentication.
func TestHeaderAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"default header", "", "Authorization"},
		{"custom header", "x-api-key", "x-api-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &HeaderAuth{Header: tt.header}
			req := &http.Request{Header: make(http.Header)}

			auth.Apply(req, "test-token")

			if got := req.Header.Get(tt.want); got != "test-token" {
				t.Errorf("Expected %s header 'test-token', got '%s'", tt.want, got)
			}
		})
	}
}

// TestEmptyTokenSkipsHeader verifies an empty token never produces a header.
func TestEmptyTokenSkipsHeader(t *testing.T) {
	for _, auth := range []Authenticator{&BearerAuth{}, &HeaderAuth{}} {
		req := &http.Request{Header: make(http.Header)}
		auth.Apply(req, "")
		if req.Header.Get("Authorization") != "" {
			t.Errorf("%T: expected no Authorization header for empty token", auth)
		}
	}
}

// TestForScheme tests scheme name resolution.
func TestForScheme(t *testing.T) {
	tests := []struct {
		scheme  string
		want    string
		wantErr bool
	}{
		{"", "Tok", false},
		{"raw", "Tok", false},
		{"RAW", "Tok", false},
		{"bearer", "Bearer Tok", false},
		{"none", "", false},
		{"basic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			auth, err := ForScheme(tt.scheme)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error for unknown scheme")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			req := &http.Request{Header: make(http.Header)}
			auth.Apply(req, "Tok")
			if got := req.Header.Get("Authorization"); got != tt.want {
				t.Errorf("Expected Authorization '%s', got '%s'", tt.want, got)
			}
		})
	}
}
