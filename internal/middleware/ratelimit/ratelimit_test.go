package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter(3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("fourth request should be rejected")
	}
	// A different client is unaffected.
	if !l.Allow("5.6.7.8") {
		t.Error("other client should be allowed")
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	l := NewLimiter(1)
	defer l.Stop()

	handler := l.Middleware(func(*http.Request) string { return "client" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Errorf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", second.Header().Get("Retry-After"))
	}
}
