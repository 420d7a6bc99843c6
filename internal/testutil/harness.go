package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/cascade"
	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	"github.com/dalemusser/lessonsync/internal/app/invariants"
	"github.com/dalemusser/lessonsync/internal/app/maintainers"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/app/system/notify"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"go.uber.org/zap"
)

// TestContext returns a context with a timeout suitable for tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Harness runs the full maintainer set over an in-memory store. Every write
// made through it is settled before it returns.
type Harness struct {
	t *testing.T

	Store       *memstore.Store
	Attachments *attachments.Memory
	Notifier    *notify.Recorder
	Router      *dispatch.Router
	Maintainers *maintainers.Set
	Dispatcher  *dispatch.Dispatcher
	Runner      *cascade.Runner
}

// Option adjusts a Harness before it is built.
type Option func(*harnessConfig)

type harnessConfig struct {
	policy  headers.Policy
	maxHops int
	retries int
}

// WithPolicy sets the featured projection vacancy policy.
func WithPolicy(p headers.Policy) Option {
	return func(c *harnessConfig) { c.policy = p }
}

// WithMaxHops sets the dispatcher hop bound.
func WithMaxHops(n int) Option {
	return func(c *harnessConfig) { c.maxHops = n }
}

// WithRetries sets how often the runner redelivers a failed event.
func WithRetries(n int) Option {
	return func(c *harnessConfig) { c.retries = n }
}

// NewHarness builds a harness with fakes for every collaborator.
func NewHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	cfg := harnessConfig{policy: headers.Retain}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Harness{
		t:           t,
		Store:       memstore.New(),
		Attachments: attachments.NewMemory(),
		Notifier:    &notify.Recorder{},
	}
	log := zap.NewNop()
	h.Router, h.Maintainers = maintainers.NewRouter(maintainers.Deps{
		DB:          h.Store,
		Attachments: h.Attachments,
		Notifier:    h.Notifier,
		Policy:      cfg.policy,
		Logger:      log,
	})
	h.Dispatcher = dispatch.New(h.Router, log, dispatch.Options{MaxHops: cfg.maxHops})
	h.Runner = cascade.NewRunner(h.Store, h.Dispatcher, log, cascade.Options{Retries: cfg.retries})
	return h
}

// Seed writes documents without running any maintainer.
func (h *Harness) Seed(path string, data docstore.Data) {
	h.Store.Seed(path, data)
}

// Settle drains the change queue and fails the test on a dispatch error.
func (h *Harness) Settle() cascade.Stats {
	h.t.Helper()
	ctx, cancel := TestContext()
	defer cancel()
	st, err := h.Runner.Settle(ctx)
	if err != nil {
		h.t.Fatalf("settle: %v", err)
	}
	return st
}

// Set writes a document as a client would and settles the cascade.
func (h *Harness) Set(path string, data docstore.Data) cascade.Stats {
	h.t.Helper()
	if err := h.Store.Set(context.Background(), path, data); err != nil {
		h.t.Fatalf("set %s: %v", path, err)
	}
	return h.Settle()
}

// Update partially updates a document as a client would and settles.
func (h *Harness) Update(path string, fields docstore.Data) cascade.Stats {
	h.t.Helper()
	if err := h.Store.Update(context.Background(), path, fields); err != nil {
		h.t.Fatalf("update %s: %v", path, err)
	}
	return h.Settle()
}

// Delete removes a document as a client would and settles.
func (h *Harness) Delete(path string) cascade.Stats {
	h.t.Helper()
	if err := h.Store.Delete(context.Background(), path); err != nil {
		h.t.Fatalf("delete %s: %v", path, err)
	}
	return h.Settle()
}

// Redeliver dispatches c again, as a source retrying it would, and settles.
func (h *Harness) Redeliver(c changes.Change) cascade.Stats {
	h.t.Helper()
	if err := h.Dispatcher.Dispatch(context.Background(), c); err != nil {
		h.t.Fatalf("redeliver %s: %v", c.Path, err)
	}
	return h.Settle()
}

// Doc returns the stored body at path, nil when absent.
func (h *Harness) Doc(path string) docstore.Data {
	d, err := h.Store.Get(context.Background(), path)
	if err != nil {
		return nil
	}
	return d.Data
}

// Resource loads a resource or fails the test.
func (h *Harness) Resource(lang, id string) models.Resource {
	h.t.Helper()
	r, ok, err := resourcestore.Decode(lang, id, h.Doc(tree.Resource(lang, id)))
	if err != nil || !ok {
		h.t.Fatalf("resource %s/%s: ok=%v err=%v", lang, id, ok, err)
	}
	return r
}

// Violations checks every invariant against the current state.
func (h *Harness) Violations() []invariants.Violation {
	h.t.Helper()
	v, err := invariants.Check(h.Store.Snapshot(""), h.Attachments.Paths(""))
	if err != nil {
		h.t.Fatalf("check invariants: %v", err)
	}
	return v
}

// RequireInvariants fails the test when any invariant is broken.
func (h *Harness) RequireInvariants() {
	h.t.Helper()
	for _, v := range h.Violations() {
		h.t.Errorf("%s", v)
	}
}
