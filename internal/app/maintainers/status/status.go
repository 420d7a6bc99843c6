// Package status runs the side effects of a resource's workflow transition.
//
//	draft -> awaiting review -> published | changes requested
//	published <-> awaiting review
//	changes requested -> awaiting review
//
// Creation counts as a transition from the empty status. Transitions outside
// the machine are logged; their effects still run because the stored
// document is authoritative.
package status

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/pending"
	cardstore "github.com/dalemusser/lessonsync/internal/app/store/cards"
	feedbackstore "github.com/dalemusser/lessonsync/internal/app/store/feedback"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	userstore "github.com/dalemusser/lessonsync/internal/app/store/users"
	"github.com/dalemusser/lessonsync/internal/app/system/notify"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Handler struct {
	resources *resourcestore.Store
	cards     *cardstore.Store
	feedback  *feedbackstore.Store
	users     *userstore.Store
	pending   *pending.Updater
	notifier  notify.Sender
	log       *zap.Logger
}

func New(db docstore.Store, notifier notify.Sender, p *pending.Updater, logger *zap.Logger) *Handler {
	return &Handler{
		resources: resourcestore.New(db),
		cards:     cardstore.New(db),
		feedback:  feedbackstore.New(db),
		users:     userstore.New(db),
		pending:   p,
		notifier:  notifier,
		log:       logger,
	}
}

func (h *Handler) Name() string { return "status" }

// transition is one observed status change.
type transition struct {
	lang     string
	resource models.Resource
	from, to string
}

func (h *Handler) Handle(ctx context.Context, ev dispatch.Event) error {
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	after, ok, err := resourcestore.Decode(lang, id, ev.After)
	if err != nil || !ok {
		return err
	}
	before, _, err := resourcestore.Decode(lang, id, ev.Before)
	if err != nil {
		return err
	}
	if before.Status == after.Status {
		return nil
	}

	t := transition{lang: lang, resource: after, from: before.Status, to: after.Status}
	if !models.CanTransition(t.from, t.to) {
		h.log.Warn("status transition outside workflow",
			zap.String("resource", ev.Path),
			zap.String("from", t.from),
			zap.String("to", t.to),
		)
	}

	effects := []func(context.Context, transition) error{
		h.lockFeedback,
		h.writeDerived,
		h.recomputePending,
	}
	if t.to == models.StatusAwaitingReview || t.to == models.StatusPublished {
		effects = append(effects, h.clearPreviews)
	}
	if t.to == models.StatusAwaitingReview {
		effects = append(effects, h.notifyReviewers)
	}
	if t.to == models.StatusPublished || t.to == models.StatusChangesRequested {
		effects = append(effects, h.notifyAuthor)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, fn := range effects {
		g.Go(func() error {
			if err := fn(ctx, t); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// lockFeedback locks every comment on every card of the resource.
func (h *Handler) lockFeedback(ctx context.Context, t transition) error {
	cards, err := h.cards.ListByResource(ctx, t.lang, t.resource.ID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	for _, c := range cards {
		comments, err := h.feedback.ListByCard(ctx, t.lang, t.resource.ID, c.ID)
		if err != nil {
			return fmt.Errorf("list feedback of %s: %w", c.ID, err)
		}
		for _, f := range comments {
			if f.Locked {
				continue
			}
			if err := h.feedback.Lock(ctx, f.Path); err != nil {
				return fmt.Errorf("lock %s: %w", f.Path, err)
			}
		}
	}
	return nil
}

// writeDerived writes isAwaitingReviewOrHasChangesRequested, and forces
// isFeatured off when the resource leaves published.
func (h *Handler) writeDerived(ctx context.Context, t transition) error {
	fields := docstore.Data{
		"isAwaitingReviewOrHasChangesRequested": models.IsAwaitingOrChangesRequested(t.to),
	}
	if t.from == models.StatusPublished && t.to != models.StatusPublished {
		fields["isFeatured"] = false
	}
	err := h.resources.SetFields(ctx, t.lang, t.resource.ID, fields)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

func (h *Handler) clearPreviews(ctx context.Context, t transition) error {
	cards, err := h.cards.ListByResource(ctx, t.lang, t.resource.ID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	for _, c := range cards {
		if c.FeedbackPreviewComment == "" && c.FeedbackPreviewCommentPath == "" {
			continue
		}
		err := h.cards.ClearPreview(ctx, t.lang, t.resource.ID, c.ID)
		if err != nil && !docstore.IsNotFound(err) {
			return fmt.Errorf("clear preview of %s: %w", c.ID, err)
		}
	}
	return nil
}

func (h *Handler) recomputePending(ctx context.Context, t transition) error {
	return h.pending.Recompute(ctx, t.lang, t.resource.Topic)
}

// notifyReviewers tells the reviewers watching the resource's subject that
// it awaits review. Failures are logged and dropped.
func (h *Handler) notifyReviewers(ctx context.Context, t transition) error {
	r := t.resource
	if r.Subject == "" {
		return nil
	}
	reviewers, err := h.users.ListReviewersWatching(ctx, r.Subject)
	if err != nil {
		h.log.Warn("list reviewers failed", zap.String("subject", r.Subject), zap.Error(err))
		return nil
	}
	tokens := userstore.Tokens(reviewers)
	if len(tokens) == 0 {
		return nil
	}
	h.send(ctx, tokens, notify.Notification{
		Title: "New submission",
		Body:  fmt.Sprintf("%q is awaiting review", r.Name),
		Data:  payload("awaiting_review", t),
	})
	return nil
}

// notifyAuthor tells the author their resource was published or sent back.
// Failures are logged and dropped.
func (h *Handler) notifyAuthor(ctx context.Context, t transition) error {
	r := t.resource
	if r.AuthorID == "" {
		return nil
	}
	author, err := h.users.GetByID(ctx, r.AuthorID)
	if err != nil {
		if !docstore.IsNotFound(err) {
			h.log.Warn("load author failed", zap.String("author", r.AuthorID), zap.Error(err))
		}
		return nil
	}
	tokens := userstore.Tokens([]models.User{author})
	if len(tokens) == 0 {
		return nil
	}
	n := notify.Notification{
		Title: "Submission published",
		Body:  fmt.Sprintf("%q is now published", r.Name),
		Data:  payload("published", t),
	}
	if t.to == models.StatusChangesRequested {
		n.Title = "Changes requested"
		n.Body = fmt.Sprintf("A reviewer requested changes to %q", r.Name)
		n.Data = payload("changes_requested", t)
	}
	h.send(ctx, tokens, n)
	return nil
}

func (h *Handler) send(ctx context.Context, tokens []string, n notify.Notification) {
	if err := h.notifier.Send(ctx, tokens, n); err != nil {
		h.log.Warn("notification dropped",
			zap.String("title", n.Title),
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
	}
}

func payload(kind string, t transition) map[string]string {
	return map[string]string{
		"type":     kind,
		"lang":     t.lang,
		"resource": t.resource.ID,
		"topic":    t.resource.Topic,
		"subtopic": t.resource.Subtopic,
		"status":   t.to,
	}
}
