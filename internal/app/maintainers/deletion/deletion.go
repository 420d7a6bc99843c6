// Package deletion removes what a deleted resource or card owned: child
// cards, their feedback and their stored attachments.
package deletion

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/counter"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/pending"
	cardstore "github.com/dalemusser/lessonsync/internal/app/store/cards"
	feedbackstore "github.com/dalemusser/lessonsync/internal/app/store/feedback"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Coordinator struct {
	resources   *resourcestore.Store
	cards       *cardstore.Store
	feedback    *feedbackstore.Store
	attachments attachments.Store
	counter     *counter.Counter
	pending     *pending.Updater
	log         *zap.Logger
}

func New(db docstore.Store, att attachments.Store, c *counter.Counter, p *pending.Updater, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		resources:   resourcestore.New(db),
		cards:       cardstore.New(db),
		feedback:    feedbackstore.New(db),
		attachments: att,
		counter:     c,
		pending:     p,
		log:         logger,
	}
}

func (c *Coordinator) Name() string { return "deletion" }

func (c *Coordinator) Handle(ctx context.Context, ev dispatch.Event) error {
	if ev.Kind() != changes.KindDelete {
		return nil
	}
	switch ev.Pattern {
	case tree.ResourcePattern:
		return c.resourceDeleted(ctx, ev)
	case tree.CardPattern:
		return c.cardDeleted(ctx, ev)
	}
	return nil
}

// resourceDeleted purges the resource's attachment namespace, its cards and
// their feedback, and repairs the counters of the vacated group. Each effect
// runs on its own so a storage outage leaves the document cascade intact.
func (c *Coordinator) resourceDeleted(ctx context.Context, ev dispatch.Event) error {
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	r, _, err := resourcestore.Decode(lang, id, ev.Before)
	if err != nil {
		return err
	}

	effects := []func(context.Context) error{
		func(ctx context.Context) error { return c.purgeAttachments(ctx, ev.Path, r.AuthorID, id) },
		func(ctx context.Context) error { return c.deleteCards(ctx, lang, id) },
		func(ctx context.Context) error { return c.counter.RecomputeFor(ctx, r) },
		func(ctx context.Context) error { return c.pending.Recompute(ctx, lang, r.Topic) },
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, fn := range effects {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
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

func (c *Coordinator) purgeAttachments(ctx context.Context, path, authorID, id string) error {
	if authorID == "" {
		return nil
	}
	n, err := c.attachments.DeletePrefix(ctx, tree.ResourceNamespace(authorID, id))
	if err != nil {
		return fmt.Errorf("delete attachments of %s: %w", id, err)
	}
	c.log.Debug("resource attachments deleted", zap.String("resource", path), zap.Int("objects", n))
	return nil
}

func (c *Coordinator) deleteCards(ctx context.Context, lang, id string) error {
	cards, err := c.cards.ListByResource(ctx, lang, id)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	var errs error
	for _, card := range cards {
		if err := c.deleteFeedback(ctx, lang, id, card.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := c.cards.Delete(ctx, lang, id, card.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete card %s: %w", card.ID, err))
		}
	}
	return errs
}

// cardDeleted removes a card's feedback, and its attachments while the parent
// resource still exists. Once the parent is gone the resource namespace
// deletion covers the attachments.
func (c *Coordinator) cardDeleted(ctx context.Context, ev dispatch.Event) error {
	lang, rid, cid := ev.Param("lang"), ev.Param("resourceId"), ev.Param("cardId")

	parent, err := c.resources.GetByID(ctx, lang, rid)
	switch {
	case docstore.IsNotFound(err):
	case err != nil:
		return err
	default:
		card, _, err := cardstore.Decode(lang, rid, cid, ev.Before)
		if err != nil {
			return err
		}
		if parent.AuthorID != "" {
			if _, err := c.attachments.DeletePrefix(ctx, tree.CardNamespace(parent.AuthorID, rid, cid)); err != nil {
				return fmt.Errorf("delete attachments of card %s: %w", cid, err)
			}
		}
		if card.AttachmentPath != "" {
			if err := c.attachments.Delete(ctx, card.AttachmentPath); err != nil {
				return fmt.Errorf("delete %s: %w", card.AttachmentPath, err)
			}
		}
	}
	return c.deleteFeedback(ctx, lang, rid, cid)
}

func (c *Coordinator) deleteFeedback(ctx context.Context, lang, rid, cid string) error {
	comments, err := c.feedback.ListByCard(ctx, lang, rid, cid)
	if err != nil {
		return fmt.Errorf("list feedback of %s: %w", cid, err)
	}
	for _, f := range comments {
		if err := c.feedback.Delete(ctx, f.Path); err != nil {
			return fmt.Errorf("delete %s: %w", f.Path, err)
		}
	}
	return nil
}
