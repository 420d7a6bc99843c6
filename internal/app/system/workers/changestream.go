// internal/app/system/workers/changestream.go
package workers

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/cascade"
	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore/mongostore"
	"github.com/dalemusser/lessonsync/internal/app/system/indexes"
	"github.com/dalemusser/lessonsync/internal/app/system/timeouts"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ChangeStreamOptions tunes delivery.
type ChangeStreamOptions struct {
	// Checkpoint is the sync_checkpoints id the resume token is kept under.
	Checkpoint string
	// Retries is how often a failed change is redelivered before it is
	// logged and skipped. Hop limit failures are never retried.
	Retries int
	// Backoff is the first pause before a redelivery or before reopening a
	// broken stream. It doubles on every further attempt up to MaxBackoff.
	Backoff time.Duration
	// MaxBackoff caps the pause. Zero means DefaultMaxBackoff.
	MaxBackoff time.Duration
}

// DefaultMaxBackoff caps the retry pause when ChangeStreamOptions leaves it unset.
const DefaultMaxBackoff = time.Minute

// ChangeStream is a background worker that feeds MongoDB change events for
// the content collections to the dispatcher.
type ChangeStream struct {
	db       *mongo.Database
	disp     cascade.Dispatcher
	log      *zap.Logger
	opts     ChangeStreamOptions
	instance string

	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewChangeStream creates a change stream worker.
func NewChangeStream(db *mongo.Database, d cascade.Dispatcher, logger *zap.Logger, opts ChangeStreamOptions) *ChangeStream {
	if opts.Checkpoint == "" {
		opts.Checkpoint = "lessonsync"
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxBackoff < opts.Backoff {
		opts.MaxBackoff = opts.Backoff
	}
	return &ChangeStream{
		db:       db,
		disp:     d,
		log:      logger,
		opts:     opts,
		instance: uuid.NewString(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching in the background.
func (w *ChangeStream) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running.Store(true)
	w.wg.Add(1)
	go w.run(ctx)
	w.log.Info("change stream worker started",
		zap.String("checkpoint", w.opts.Checkpoint),
		zap.String("instance", w.instance),
		zap.Int("retries", w.opts.Retries))
}

// Stop signals the worker to stop and waits for it to finish. Calls after
// the first are no-ops.
func (w *ChangeStream) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.running.Store(false)
		w.log.Info("change stream worker stopped")
	})
}

// Running reports whether the worker has been started and not stopped.
func (w *ChangeStream) Running() bool { return w.running.Load() }

func (w *ChangeStream) run(ctx context.Context) {
	defer w.wg.Done()
	failures := 0
	for {
		delivered, err := w.watch(ctx)
		select {
		case <-w.stopCh:
			return
		default:
		}
		if delivered > 0 {
			failures = 0
		}
		pause := w.backoff(failures)
		failures++
		w.log.Warn("change stream closed, reopening", zap.Error(err), zap.Duration("backoff", pause))
		if !w.sleep(pause) {
			return
		}
	}
}

// backoff is the pause before retry number attempt (0-based).
func (w *ChangeStream) backoff(attempt int) time.Duration {
	d := w.opts.Backoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	return d
}

// sleep waits d, returning false when the worker is stopping.
func (w *ChangeStream) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// watch opens the stream and delivers from it until it fails. It returns the
// number of events handled.
func (w *ChangeStream) watch(ctx context.Context) (int, error) {
	stream, err := w.open(ctx)
	if err != nil {
		return 0, err
	}
	defer stream.Close(context.Background())

	delivered := 0
	for stream.Next(ctx) {
		var ev streamEvent
		if err := stream.Decode(&ev); err != nil {
			w.log.Error("undecodable change event", zap.Error(err))
		} else if c, ok := changeOf(ev); ok {
			w.deliver(ctx, c)
		} else if ev.OperationType == "delete" {
			w.log.Warn("delete event without pre-image skipped", zap.String("path", ev.DocumentKey.ID))
		}
		delivered++
		if err := w.saveToken(ctx, stream.ResumeToken()); err != nil {
			w.log.Warn("save resume token failed", zap.Error(err))
		}
	}
	return delivered, stream.Err()
}

// open loads the resume token and opens the stream under the resume deadline.
func (w *ChangeStream) open(ctx context.Context) (*mongo.ChangeStream, error) {
	setup, cancel := timeouts.WithTimeout(ctx, timeouts.Resume(), w.log, "open change stream")
	defer cancel()

	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	token, err := w.loadToken(setup)
	if err != nil {
		return nil, err
	}
	if token != nil {
		opts.SetResumeAfter(token)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
			{Key: "ns.coll", Value: bson.D{{Key: "$in", Value: indexes.ContentCollections}}},
		}}},
	}
	return w.db.Watch(setup, pipeline, opts)
}

// deliver dispatches c, redelivering transient failures. A change that still
// fails is logged and skipped so the stream keeps moving.
func (w *ChangeStream) deliver(ctx context.Context, c changes.Change) {
	err := w.disp.Dispatch(ctx, c)
	for attempt := 0; err != nil && attempt < w.opts.Retries; attempt++ {
		if dispatch.IsHopLimit(err) {
			break
		}
		pause := w.backoff(attempt)
		w.log.Info("redelivering change",
			zap.String("path", c.Path),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", pause),
			zap.Error(err))
		if !w.sleep(pause) {
			return
		}
		err = w.disp.Dispatch(ctx, c)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.Error("change dropped",
			zap.String("event_id", c.ID),
			zap.String("path", c.Path),
			zap.Int("hop", c.Hop),
			zap.Error(err))
	}
}

type checkpoint struct {
	ID        string    `bson:"_id"`
	Token     bson.Raw  `bson:"token"`
	Instance  string    `bson:"instance"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (w *ChangeStream) loadToken(ctx context.Context) (bson.Raw, error) {
	var cp checkpoint
	err := w.db.Collection(indexes.CheckpointCollection).FindOne(ctx, bson.M{"_id": w.opts.Checkpoint}).Decode(&cp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cp.Token, nil
}

func (w *ChangeStream) saveToken(ctx context.Context, token bson.Raw) error {
	if token == nil {
		return nil
	}
	_, err := w.db.Collection(indexes.CheckpointCollection).ReplaceOne(ctx,
		bson.M{"_id": w.opts.Checkpoint},
		checkpoint{ID: w.opts.Checkpoint, Token: token, Instance: w.instance, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true))
	return err
}

type streamEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.M `bson:"fullDocument"`
	FullDocumentBeforeChange bson.M `bson:"fullDocumentBeforeChange"`
}

// changeOf converts a stream event. Updates that only restamp _hop (the
// first half of a delete) are dropped.
func changeOf(ev streamEvent) (changes.Change, bool) {
	if ev.DocumentKey.ID == "" {
		return changes.Change{}, false
	}
	before, beforeHop := mongostore.Strip(ev.FullDocumentBeforeChange)
	after, afterHop := mongostore.Strip(ev.FullDocument)

	hop := afterHop
	switch ev.OperationType {
	case "insert":
		before = nil
	case "delete":
		after = nil
		hop = beforeHop
	case "update", "replace":
		if after == nil {
			// Deleted before the lookup ran; the delete event follows.
			return changes.Change{}, false
		}
		if before != nil && reflect.DeepEqual(before, after) {
			return changes.Change{}, false
		}
	default:
		return changes.Change{}, false
	}
	if before == nil && after == nil {
		return changes.Change{}, false
	}
	return changes.New(ev.DocumentKey.ID, before, after, hop), true
}
