package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/system/timeouts"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxHops bounds the cascade depth. Cascades settle within three hops;
// anything deeper indicates a feedback loop.
const DefaultMaxHops = 4

// HopLimitError rejects an event deeper than the configured bound. It is
// terminal: sources must not retry it.
type HopLimitError struct {
	Path string
	Hop  int
	Max  int
}

func (e *HopLimitError) Error() string {
	return fmt.Sprintf("dispatch: %s at hop %d exceeds limit %d", e.Path, e.Hop, e.Max)
}

// IsHopLimit reports whether err carries a HopLimitError.
func IsHopLimit(err error) bool {
	var hl *HopLimitError
	return errors.As(err, &hl)
}

// Options configures a Dispatcher.
type Options struct {
	MaxHops int           // <= 0 means DefaultMaxHops
	Timeout time.Duration // <= 0 means timeouts.Invocation()
}

// Dispatcher runs the maintainers matched for an event.
type Dispatcher struct {
	router  *Router
	log     *zap.Logger
	maxHops int
	timeout time.Duration
}

// New creates a Dispatcher over router.
func New(router *Router, logger *zap.Logger, opts Options) *Dispatcher {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	return &Dispatcher{router: router, log: logger, maxHops: opts.MaxHops, timeout: opts.Timeout}
}

// MaxHops returns the configured bound.
func (d *Dispatcher) MaxHops() int { return d.maxHops }

// Dispatch runs every matched maintainer concurrently and waits for all of
// them. A failing maintainer does not cancel its siblings; all failures are
// combined into the returned error so the source can retry the invocation.
// Writes issued by the maintainers are stamped with hop c.Hop+1.
func (d *Dispatcher) Dispatch(ctx context.Context, c changes.Change) error {
	fields := []zap.Field{
		zap.String("event_id", c.ID),
		zap.String("path", c.Path),
		zap.Stringer("kind", c.Kind()),
		zap.Int("hop", c.Hop),
		zap.String("fingerprint", changes.Fingerprint(c)),
	}
	if c.Hop > d.maxHops {
		err := &HopLimitError{Path: c.Path, Hop: c.Hop, Max: d.maxHops}
		d.log.Error("cascade hop limit exceeded", append(fields, zap.Error(err))...)
		return err
	}

	matches := d.router.Match(c.Path)
	if len(matches) == 0 {
		d.log.Debug("no maintainers for path", fields...)
		return nil
	}

	timeout := d.timeout
	if timeout <= 0 {
		timeout = timeouts.Invocation()
	}
	ctx, cancel := timeouts.WithTimeout(ctx, timeout, d.log, "dispatch "+c.Path)
	defer cancel()
	ctx = changes.WithHop(ctx, c.Hop+1)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, m := range matches {
		ev := Event{Change: c, Pattern: m.Pattern, Params: m.Params}
		mt := m.Maintainer
		g.Go(func() error {
			if err := mt.Handle(ctx, ev); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", mt.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		d.log.Warn("maintainers failed", append(fields, zap.Error(errs))...)
		return errs
	}
	d.log.Debug("dispatched", append(fields, zap.Int("maintainers", len(matches)))...)
	return nil
}
