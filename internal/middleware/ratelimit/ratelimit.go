// Package ratelimit applies a per-client fixed window request limit.
package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window

	requestsPerMinute int
	stop              chan struct{}
	stopOnce          sync.Once
}

type window struct {
	start    time.Time
	requests int
}

func NewLimiter(requestsPerMinute int) *Limiter {
	l := &Limiter{
		clients:           make(map[string]*window),
		requestsPerMinute: requestsPerMinute,
		stop:              make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether another request from clientIP fits in the
// current window.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.clients[clientIP]
	if !ok || now.Sub(w.start) > time.Minute {
		l.clients[clientIP] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.requestsPerMinute
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, w := range l.clients {
				if w.start.Before(cutoff) {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects over-limit requests with 429.
func (l *Limiter) Middleware(extractIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
