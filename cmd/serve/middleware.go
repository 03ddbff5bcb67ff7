package main

import (
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// The published pages carry their own <style> block and link to PDFs; they
// run no script and load nothing from other origins.
var siteHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; object-src 'self'; frame-ancestors 'none'"},
}

func withSiteHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, h := range siteHeaders {
			w.Header().Set(h[0], h[1])
		}
		next(w, r)
	}
}

const (
	maxTrackedClients = 10000
	clientIdle        = time.Hour
)

// clientLimiter lets each client through at most once per interval.
type clientLimiter struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	interval time.Duration
	now      func() time.Time
}

func newClientLimiter(interval time.Duration) *clientLimiter {
	return &clientLimiter{
		seen:     make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if prev, ok := l.seen[client]; ok && now.Sub(prev) < l.interval {
		return false
	}
	if len(l.seen) >= maxTrackedClients {
		l.forgetIdle(now)
	}
	l.seen[client] = now
	return true
}

func (l *clientLimiter) forgetIdle(now time.Time) {
	for c, at := range l.seen {
		if now.Sub(at) > clientIdle {
			delete(l.seen, c)
		}
	}
}

// remoteClient prefers the first X-Forwarded-For hop set by a fronting proxy.
func remoteClient(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

func (s *server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(remoteClient(r)) {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"archive listing is limited to one request per second"}`, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// sitePath maps a request path onto a file below root. Paths that would
// leave root are refused.
func sitePath(root, urlPath string) (string, bool) {
	rel := filepath.FromSlash(strings.TrimPrefix(urlPath, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Join(root, rel), true
}
