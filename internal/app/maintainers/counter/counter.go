// Package counter maintains subtopicSubmissionCount: the number of published
// lessons in a subtopic, stored on the subtopic's featured lessons and on its
// featured projection.
package counter

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	headerstore "github.com/dalemusser/lessonsync/internal/app/store/headers"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"go.uber.org/zap"
)

type Counter struct {
	resources *resourcestore.Store
	headers   *headerstore.Store
	log       *zap.Logger
}

func New(db docstore.Store, logger *zap.Logger) *Counter {
	return &Counter{resources: resourcestore.New(db), headers: headerstore.New(db), log: logger}
}

func (c *Counter) Name() string { return "counter" }

// Handle recounts the lesson groups on either side of a resource write.
// Deletes are recounted by the deletion coordinator once the children are
// gone.
func (c *Counter) Handle(ctx context.Context, ev dispatch.Event) error {
	if ev.Kind() == changes.KindDelete {
		return nil
	}
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	before, _, err := resourcestore.Decode(lang, id, ev.Before)
	if err != nil {
		return err
	}
	after, _, err := resourcestore.Decode(lang, id, ev.After)
	if err != nil {
		return err
	}
	return c.RecomputeFor(ctx, before, after)
}

// RecomputeFor recounts the lesson group of every given resource that is a
// lesson. Zero-value resources are skipped.
func (c *Counter) RecomputeFor(ctx context.Context, rs ...models.Resource) error {
	seen := map[models.Group]bool{}
	for _, r := range rs {
		if !r.IsLesson() || !r.Group().Valid() || seen[r.Group()] {
			continue
		}
		seen[r.Group()] = true
		if err := c.Recompute(ctx, r.Group()); err != nil {
			return err
		}
	}
	return nil
}

// Recompute counts the published lessons of g and writes the count wherever
// it is stale.
func (c *Counter) Recompute(ctx context.Context, g models.Group) error {
	g = g.Lessons()
	n, err := c.resources.CountPublished(ctx, g)
	if err != nil {
		return fmt.Errorf("count published lessons: %w", err)
	}
	featured, err := c.resources.ListFeatured(ctx, g)
	if err != nil {
		return err
	}
	for _, r := range featured {
		if r.SubtopicSubmissionCount == n {
			continue
		}
		err := c.resources.SetFields(ctx, g.Lang, r.ID, docstore.Data{"subtopicSubmissionCount": n})
		if err != nil && !docstore.IsNotFound(err) {
			return fmt.Errorf("write count on %s: %w", r.ID, err)
		}
	}

	proj, err := c.headers.GetFeatured(ctx, g.Lang, g.Subtopic)
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if proj.SubtopicSubmissionCount == n {
		return nil
	}
	err = c.headers.SetFeaturedCount(ctx, g.Lang, g.Subtopic, n)
	if err != nil && !docstore.IsNotFound(err) {
		return err
	}
	c.log.Debug("submission count written",
		zap.String("lang", g.Lang),
		zap.String("subtopic", g.Subtopic),
		zap.Int64("count", n),
	)
	return nil
}
