// Package timeouts holds the deadlines applied to store and collaborator I/O.
//
//   - Ping: health checks against MongoDB
//   - Short: a single identity or ingress request
//   - Invocation: one change event, every maintainer it fans out to included
//   - Resume: reopening the change stream after an error
//
// Values start at the defaults below; Configure overrides them at startup.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing       = 2 * time.Second
	DefaultShort      = 5 * time.Second
	DefaultInvocation = 60 * time.Second
	DefaultResume     = 30 * time.Second
)

var mu sync.RWMutex

var (
	ping       = DefaultPing
	short      = DefaultShort
	invocation = DefaultInvocation
	resume     = DefaultResume
)

// Ping is the health check deadline.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short is the deadline for one HTTP request's store work.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Invocation is the deadline for handling one change event.
func Invocation() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return invocation
}

// Resume is the deadline for reopening the change stream.
func Resume() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return resume
}

// Config holds overrides. Zero values keep the current value.
type Config struct {
	Ping       time.Duration
	Short      time.Duration
	Invocation time.Duration
	Resume     time.Duration
}

// Configure applies the non-zero values of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Invocation > 0 {
		invocation = cfg.Invocation
	}
	if cfg.Resume > 0 {
		resume = cfg.Resume
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	invocation = DefaultInvocation
	resume = DefaultResume
}

// ConfigureFromEnv reads LESSONSYNC_TIMEOUT_{PING,SHORT,INVOCATION,RESUME}
// as Go durations and returns how many were applied. Invalid values are
// ignored.
func ConfigureFromEnv() int {
	vars := []struct {
		name string
		dst  *time.Duration
	}{
		{"LESSONSYNC_TIMEOUT_PING", &ping},
		{"LESSONSYNC_TIMEOUT_SHORT", &short},
		{"LESSONSYNC_TIMEOUT_INVOCATION", &invocation},
		{"LESSONSYNC_TIMEOUT_RESUME", &resume},
	}

	mu.Lock()
	defer mu.Unlock()
	configured := 0
	for _, v := range vars {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			*v.dst = d
			configured++
		}
	}
	return configured
}

// Current returns the values in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Invocation: invocation, Resume: resume}
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Invocation(), log, "dispatch "+path)
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
