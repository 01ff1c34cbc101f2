package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(60, nil, nil)
	handler := rl.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterRejectsBurstOverLimit(t *testing.T) {
	rl := NewRateLimiter(3, nil, nil)
	handler := rl.Handler(okHandler())

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last)
	}
}

func TestRateLimiterKeysByClient(t *testing.T) {
	rl := NewRateLimiter(1, nil, nil)
	handler := rl.Handler(okHandler())

	for i, addr := range []string{"10.0.0.3:1", "10.0.0.4:1", "10.0.0.5:1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d from %s: status = %d, want 200", i, addr, rec.Code)
		}
	}
}

// fixedWindowCounter mimics the Redis counter: the expiry is armed only by
// the increment that creates a key, and rollover() stands in for the window
// elapsing.
type fixedWindowCounter struct {
	counts map[string]int64
}

func (f *fixedWindowCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fixedWindowCounter) rollover() {
	f.counts = nil
}

func TestRateLimiterWindowCounterBlocksAndResets(t *testing.T) {
	counter := &fixedWindowCounter{}
	rl := NewRateLimiter(2, counter, nil)
	handler := rl.Handler(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send(); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status = %d, want 429", code)
	}

	counter.rollover()
	if code := send(); code != http.StatusOK {
		t.Fatalf("request after window close: status = %d, want 200", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	cors := NewCORSMiddleware([]string{"*"})
	handler := cors.Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/generate", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://trusted.example"})
	handler := cors.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want empty", got)
	}
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	auth := NewAuthMiddleware("secret", false, nil, nil)
	handler := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	auth := NewAuthMiddleware("secret", true, nil, nil)
	handler := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	auth := NewAuthMiddleware("secret", true, nil, nil)

	var gotUser string
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.GenerateToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUser != "user-1" {
		t.Fatalf("user = %q, want user-1", gotUser)
	}
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	issuer := NewAuthMiddleware("other-secret", true, nil, nil)
	auth := NewAuthMiddleware("secret", true, nil, nil)
	handler := auth.Handler(okHandler())

	token, err := issuer.GenerateToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthSkipsConfiguredPaths(t *testing.T) {
	auth := NewAuthMiddleware("secret", true, []string{"/health", "/metrics"}, nil)
	handler := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
