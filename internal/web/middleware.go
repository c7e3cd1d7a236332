package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter hands each client rate tokens per interval. Unused tokens do not
// carry over, and a rate of zero or less disables limiting.
type RateLimiter struct {
	rate     int
	interval time.Duration
	idle     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*allowance

	stop chan struct{}
	once sync.Once
}

type allowance struct {
	left    int
	resetAt time.Time
}

// NewRateLimiter creates a limiter for rate requests per interval per client,
// e.g. NewRateLimiter(60, time.Minute)
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		rate:     rate,
		interval: interval,
		idle:     5 * interval,
		now:      time.Now,
		clients:  make(map[string]*allowance),
		stop:     make(chan struct{}),
	}
	if rate > 0 {
		go rl.evictIdle()
	}
	return rl
}

// Allow reports whether a request from client may proceed
func (rl *RateLimiter) Allow(client string) bool {
	_, _, ok := rl.take(client)
	return ok
}

// take spends one token and returns what is left and when the window resets
func (rl *RateLimiter) take(client string) (int, time.Duration, bool) {
	if rl.rate <= 0 {
		return 0, 0, true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	a, ok := rl.clients[client]
	if !ok {
		a = &allowance{left: rl.rate, resetAt: now.Add(rl.interval)}
		rl.clients[client] = a
	} else if !now.Before(a.resetAt) {
		windows := now.Sub(a.resetAt)/rl.interval + 1
		a.left = rl.rate
		a.resetAt = a.resetAt.Add(windows * rl.interval)
	}

	wait := a.resetAt.Sub(now)
	if a.left == 0 {
		return 0, wait, false
	}
	a.left--
	return a.left, wait, true
}

// Stop ends idle-client eviction
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := rl.now().Add(-rl.idle)
			rl.mu.Lock()
			for client, a := range rl.clients {
				if a.resetAt.Before(cutoff) {
					delete(rl.clients, client)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware sets X-RateLimit headers and answers 429 once a client's
// allowance is spent
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		left, wait, ok := rl.take(getClientIP(r))
		if rl.rate > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
		}
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded, retry later"})
			return
		}
		next(w, r)
	}
}

// getClientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// remote host
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HealthResponse is the /api/health payload
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
}
