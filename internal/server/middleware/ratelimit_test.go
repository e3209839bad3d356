package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentstation/kbmirror/pkg/logging"
)

// TestNewRateLimiter tests rate limiter creation.
func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 0)

	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if rl.burst != 1 {
		t.Errorf("expected burst raised to 1, got %d", rl.burst)
	}
	if rl.Len() != 0 {
		t.Errorf("expected no visitors, got %d", rl.Len())
	}
}

// TestRateLimit tests that each client gets its own bucket.
func TestRateLimit(t *testing.T) {
	logging.DisableLoggingForTest(t)

	rl := NewRateLimiter(0.001, 2)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := range 2 {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the burst is spent, got %d", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("expected another client to pass, got %d", code)
	}
	if rl.Len() != 2 {
		t.Errorf("expected 2 tracked clients, got %d", rl.Len())
	}
}

// TestRateLimiterPrune tests that idle clients are dropped.
func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Limiter("a")
	rl.Limiter("b")

	now = now.Add(visitorTTL + time.Second)
	rl.Limiter("b")

	if rl.Len() != 1 {
		t.Errorf("expected the idle client to be pruned, got %d clients", rl.Len())
	}
}

// TestClientAddr tests client address extraction.
func TestClientAddr(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		expected  string
	}{
		{"host and port", "192.168.1.5:4000", "", "192.168.1.5"},
		{"no port", "192.168.1.5", "", "192.168.1.5"},
		{"forwarded", "127.0.0.1:80", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientAddr(req); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
