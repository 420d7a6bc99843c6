// Package cascade drains a queue of change events through a dispatcher until
// no further writes are produced.
package cascade

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultMaxEvents stops a runaway cascade.
const DefaultMaxEvents = 10000

// Queue yields pending change events in FIFO order.
type Queue interface {
	Next() (changes.Change, bool)
}

// Dispatcher handles one change event.
type Dispatcher interface {
	Dispatch(ctx context.Context, c changes.Change) error
}

// Stats summarizes one Settle call.
type Stats struct {
	Events  int         `json:"events" yaml:"events"`
	MaxHop  int         `json:"maxHop" yaml:"maxHop"`
	Retried int         `json:"retried" yaml:"retried"`
	Failed  int         `json:"failed" yaml:"failed"`
	ByHop   map[int]int `json:"byHop" yaml:"byHop"`
}

// EventLimitError reports a cascade that did not settle within MaxEvents.
type EventLimitError struct {
	Max int
}

func (e *EventLimitError) Error() string {
	return fmt.Sprintf("cascade: did not settle within %d events", e.Max)
}

// Options configures a Runner.
type Options struct {
	// Retries is how many times a failed event is redelivered before it is
	// counted as failed. Hop limit errors are never retried.
	Retries int
	// MaxEvents <= 0 means DefaultMaxEvents.
	MaxEvents int
	// OnEvent, when set, observes every delivered event.
	OnEvent func(c changes.Change, err error)
}

// Runner settles cascades.
type Runner struct {
	queue Queue
	disp  Dispatcher
	log   *zap.Logger
	opts  Options
}

// NewRunner creates a Runner.
func NewRunner(q Queue, d Dispatcher, logger *zap.Logger, opts Options) *Runner {
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	return &Runner{queue: q, disp: d, log: logger, opts: opts}
}

// Settle delivers queued events until the queue is empty. Events produced by
// the maintainers are appended to the queue and delivered in turn. Failed
// events are redelivered immediately, up to Options.Retries times; the
// failures that remain are combined into the returned error.
func (r *Runner) Settle(ctx context.Context) (Stats, error) {
	st := Stats{ByHop: map[int]int{}}
	var errs error
	for {
		if err := ctx.Err(); err != nil {
			return st, multierr.Append(errs, err)
		}
		c, ok := r.queue.Next()
		if !ok {
			return st, errs
		}
		if st.Events >= r.opts.MaxEvents {
			return st, multierr.Append(errs, &EventLimitError{Max: r.opts.MaxEvents})
		}
		st.Events++
		st.ByHop[c.Hop]++
		if c.Hop > st.MaxHop {
			st.MaxHop = c.Hop
		}

		err := r.deliver(ctx, c, &st)
		if r.opts.OnEvent != nil {
			r.opts.OnEvent(c, err)
		}
		if err != nil {
			st.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Path, err))
		}
	}
}

func (r *Runner) deliver(ctx context.Context, c changes.Change, st *Stats) error {
	err := r.disp.Dispatch(ctx, c)
	for attempt := 0; err != nil && attempt < r.opts.Retries; attempt++ {
		if dispatch.IsHopLimit(err) || ctx.Err() != nil {
			break
		}
		st.Retried++
		r.log.Info("redelivering change",
			zap.String("path", c.Path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		err = r.disp.Dispatch(ctx, c)
	}
	return err
}
