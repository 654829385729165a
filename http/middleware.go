package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"asocialoud/errs"
)

// requestLogger tags every request with an id and logs it after completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// rateLimiter keeps a token bucket per client address. Entries are created
// lazily; stale ones are cheap enough to keep for the process lifetime.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the bucket for a client address, creating it on first
// sight. 2 requests per second with a burst of 60.
func (rl *rateLimiter) limiterFor(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.clients[addr]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(2), 60)
		rl.clients[addr] = limiter
	}
	return limiter
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.limiterFor(host).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":"rate_limited","message":"Too many requests."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondJSON writes a payload with the given status, logging encode failures.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		errs.LogError(r, err)
	}
}
