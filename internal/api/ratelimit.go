// Per-client rate limiting for the heavier read endpoints (full pheromone
// field). Simple in-memory fixed window per IP address.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed windows. A client's window
// opens on its first request and admits up to limit requests until it
// closes.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type clientWindow struct {
	opened time.Time
	used   int
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
// Call Stop to end its cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(max(rl.window, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends background cleanup.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// take spends one request from ip's window. When the window is used up it
// reports how long until the window closes.
func (rl *RateLimiter) take(ip string) (ok bool, wait time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cw := rl.clients[ip]
	if cw == nil || rl.expired(cw, now) {
		cw = &clientWindow{opened: now}
		rl.clients[ip] = cw
	}
	if cw.used >= rl.limit {
		return false, cw.opened.Add(rl.window).Sub(now)
	}
	cw.used++
	return true, 0
}

func (rl *RateLimiter) expired(cw *clientWindow, now time.Time) bool {
	return !now.Before(cw.opened.Add(rl.window))
}

// Allow reports whether ip may make another request, and counts it if so.
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _ := rl.take(ip)
	return ok
}

// RetryAfter returns the whole seconds, rounded up, until ip's current
// window closes. Zero means ip is not currently held back.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw := rl.clients[ip]
	now := rl.now()
	if cw == nil || cw.used < rl.limit || rl.expired(cw, now) {
		return 0
	}
	return retrySeconds(cw.opened.Add(rl.window).Sub(now))
}

func retrySeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// cleanup forgets clients whose window has closed.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, cw := range rl.clients {
		if rl.expired(cw, now) {
			delete(rl.clients, ip)
		}
	}
}

// clientIP returns the first X-Forwarded-For entry, or the remote address
// without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
