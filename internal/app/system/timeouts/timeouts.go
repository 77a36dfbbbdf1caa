// Package timeouts holds the deadlines used for database, storage and
// inter-service calls.
//
// Values start at the defaults below and can be overridden once at startup
// with Configure (bootstrap feeds it from the timeout_* config keys).
//
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads and writes, back-reference pushes
//   - Medium: list and search queries, multi-step reads such as the feed
//   - Long: uploads to object storage, creates that touch two services
//   - Remote: one HTTP call to a peer service
//   - Audit: one full pass of the reference audit worker
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultRemote = 5 * time.Second
	DefaultAudit  = 2 * time.Minute
)

var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
	remote = DefaultRemote
	audit  = DefaultAudit
)

func get(v *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

func Ping() time.Duration   { return get(&ping) }
func Short() time.Duration  { return get(&short) }
func Medium() time.Duration { return get(&medium) }
func Long() time.Duration   { return get(&long) }
func Remote() time.Duration { return get(&remote) }
func Audit() time.Duration  { return get(&audit) }

// Config holds timeout overrides. Zero values keep the current value.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Remote time.Duration
	Audit  time.Duration
}

// Configure applies the non-zero fields of cfg. Call it during startup,
// before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&medium, cfg.Medium)
	set(&long, cfg.Long)
	set(&remote, cfg.Remote)
	set(&audit, cfg.Audit)
}

// Reset restores all timeouts to their default values. Tests use it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	remote = DefaultRemote
	audit = DefaultAudit
}

// Current returns the active configuration, for the startup log line.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:   ping,
		Short:  short,
		Medium: medium,
		Long:   long,
		Remote: remote,
		Audit:  audit,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context ended because the deadline passed.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create sighting")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
