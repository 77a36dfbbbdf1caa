// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend counts attempts per key. Limiter (in process) and RedisLimiter
// (shared across instances) implement it.
type Backend interface {
	Allow(key string) bool
	Reset(key string)
}

// Limiter is an in-process fixed-window counter.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	cleanup  time.Duration // how often to clean old entries
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a new rate limiter.
// limit: maximum requests allowed per duration
// duration: the time window for counting requests
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		cleanup:  duration * 2, // cleanup entries older than 2x duration
	}
	go l.cleanupLoop()
	return l
}

// Allow checks if a request from the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	// If no window exists or window expired, create new one
	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{
			count:     1,
			expiresAt: now.Add(l.duration),
		}
		return true
	}

	// Window still active - check limit
	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		return l.limit
	}

	remaining := l.limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the rate limit for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanupLoop periodically removes expired entries to prevent memory leaks.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, w := range l.windows {
			if now.After(w.expiresAt) {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list, first is client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (strip port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

// windowScript increments the counter for KEYS[1] and starts its window on
// first use. Returns the count after increment.
var windowScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// RedisLimiter is a fixed-window counter kept in Redis so every service
// instance shares the same budget. Redis errors fail open.
type RedisLimiter struct {
	rdb      *redis.Client
	prefix   string
	limit    int
	duration time.Duration
	log      *zap.Logger
}

// NewRedis creates a Redis-backed limiter. Keys are stored as prefix:key.
func NewRedis(rdb *redis.Client, prefix string, limit int, duration time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, duration: duration, log: log}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + ":" + k
}

// Allow reports whether another attempt for key fits in the current window.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := windowScript.Run(ctx, l.rdb, []string{l.key(key)}, l.duration.Milliseconds()).Int64()
	if err != nil {
		l.log.Warn("rate limit check failed; allowing", zap.String("key", key), zap.Error(err))
		return true
	}
	return n <= int64(l.limit)
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		l.log.Warn("rate limit reset failed", zap.String("key", key), zap.Error(err))
	}
}

// LoginLimiter guards /auth/login per client IP and per username so that
// neither a single address nor a spread of addresses can grind one account.
type LoginLimiter struct {
	ipLimiter   Backend
	userLimiter Backend
}

// NewLoginLimiter creates an in-process limiter.
// Defaults: 10 attempts per IP per minute, 5 attempts per username per 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{
		ipLimiter:   New(10, time.Minute),
		userLimiter: New(5, 5*time.Minute),
	}
}

// NewLoginLimiterWithConfig creates an in-process login limiter with custom limits.
func NewLoginLimiterWithConfig(ipLimit int, ipDuration time.Duration, userLimit int, userDuration time.Duration) *LoginLimiter {
	return &LoginLimiter{
		ipLimiter:   New(ipLimit, ipDuration),
		userLimiter: New(userLimit, userDuration),
	}
}

// NewRedisLoginLimiter creates a login limiter shared through Redis, with the
// same defaults as NewLoginLimiter.
func NewRedisLoginLimiter(rdb *redis.Client, log *zap.Logger) *LoginLimiter {
	return &LoginLimiter{
		ipLimiter:   NewRedis(rdb, "birdbook:rl:login:ip", 10, time.Minute, log),
		userLimiter: NewRedis(rdb, "birdbook:rl:login:user", 5, 5*time.Minute, log),
	}
}

// Check verifies if a login attempt should be allowed.
// Returns (allowed, reason) where reason explains why it was blocked.
func (ll *LoginLimiter) Check(r *http.Request, username string) (bool, string) {
	if !ll.ipLimiter.Allow(ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if key := userKey(username); key != "" {
		if !ll.userLimiter.Allow(key) {
			return false, "Too many login attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetUser clears the per-account limit after a successful login.
func (ll *LoginLimiter) ResetUser(username string) {
	if key := userKey(username); key != "" {
		ll.userLimiter.Reset(key)
	}
}

func userKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
