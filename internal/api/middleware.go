package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor returns the acting identity recorded by ActorIDMiddleware, or ""
// outside the actor-gated routes.
func Actor(r *http.Request) string {
	if v, ok := r.Context().Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// ActorIDMiddleware requires an X-Actor-ID header on every governed call and
// records the identity in the request context. Every phase mutation, gate run,
// and handoff is attributable to an actor.
func ActorIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get("X-Actor-ID")
		if actorID == "" {
			http.Error(w, `{"error":"X-Actor-ID header required"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"actor", r.Header.Get("X-Actor-ID"),
			)
		})
	}
}

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// RateLimitMiddleware enforces a per-actor sliding-window budget. It sits
// behind ActorIDMiddleware so the budget follows the acting identity, not the
// connection; requests without a recorded actor fall back to the remote
// address. A non-positive budget disables the limiter.
func RateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    requestsPerMinute,
		window:   time.Minute,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Actor(r)
			if key == "" {
				key = r.RemoteAddr
			}
			if !rl.allow(key) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)
	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)

	// Drop actors whose whole window has expired so the map does not grow
	// unboundedly across long uptimes.
	for k, ts := range rl.requests {
		if k != key && len(ts) > 0 && !ts[len(ts)-1].After(cutoff) {
			delete(rl.requests, k)
		}
	}
	return true
}
