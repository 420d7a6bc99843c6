// Package featured keeps exactly one published resource featured in every
// (topic, subtopic, resourceType) group.
package featured

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"go.uber.org/zap"
)

// Selector reacts to resource writes.
type Selector struct {
	resources *resourcestore.Store
	log       *zap.Logger
}

func New(db docstore.Store, logger *zap.Logger) *Selector {
	return &Selector{resources: resourcestore.New(db), log: logger}
}

func (s *Selector) Name() string { return "featured" }

// Handle applies the selection rules to the group the resource is in and
// repairs the group it left, if any.
func (s *Selector) Handle(ctx context.Context, ev dispatch.Event) error {
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	before, hadBefore, err := resourcestore.Decode(lang, id, ev.Before)
	if err != nil {
		return err
	}
	after, hasAfter, err := resourcestore.Decode(lang, id, ev.After)
	if err != nil {
		return err
	}

	if hasAfter && after.Group().Valid() {
		var winner, candidate string
		switch {
		case !after.IsPublished() && after.IsFeatured:
			if err := s.setFeatured(ctx, lang, id, false); err != nil {
				return err
			}
		case after.IsPublished() && after.IsFeatured:
			winner = id
		case after.IsPublished() && newlyPublished(before, hadBefore, after):
			candidate = id
		}
		if err := s.Settle(ctx, after.Group(), winner, candidate); err != nil {
			return err
		}
	}

	if hadBefore && before.Group().Valid() && (!hasAfter || before.Group() != after.Group()) {
		if err := s.Settle(ctx, before.Group(), "", ""); err != nil {
			return fmt.Errorf("repair vacated group: %w", err)
		}
	}
	return nil
}

// newlyPublished reports whether after entered the published set of its
// group with this write.
func newlyPublished(before models.Resource, hadBefore bool, after models.Resource) bool {
	return !hadBefore || !before.IsPublished() || before.Group() != after.Group()
}

// Settle makes exactly one published resource of g featured. winner, when
// stored as published and featured, is kept over every other featured
// sibling. candidate is chosen
// only when nothing is featured. Otherwise the first featured (or, when none
// is, the first published) resource by id is kept.
func (s *Selector) Settle(ctx context.Context, g models.Group, winner, candidate string) error {
	published, err := s.resources.ListGroup(ctx, g, models.StatusPublished)
	if err != nil {
		return err
	}
	if len(published) == 0 {
		return nil
	}

	ids := make(map[string]bool, len(published))
	var featured []string
	for _, r := range published {
		ids[r.ID] = r.IsFeatured
		if r.IsFeatured {
			featured = append(featured, r.ID)
		}
	}
	_, candidatePublished := ids[candidate]

	var keep string
	switch {
	case winner != "" && ids[winner]:
		keep = winner
	case len(featured) > 0:
		keep = featured[0]
	case candidate != "" && candidatePublished:
		keep = candidate
	default:
		keep = published[0].ID
	}

	if !ids[keep] {
		if err := s.setFeatured(ctx, g.Lang, keep, true); err != nil {
			return err
		}
	}
	for _, id := range featured {
		if id == keep {
			continue
		}
		if err := s.setFeatured(ctx, g.Lang, id, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Selector) setFeatured(ctx context.Context, lang, id string, v bool) error {
	err := s.resources.SetFields(ctx, lang, id, docstore.Data{"isFeatured": v})
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set isFeatured=%v on %s: %w", v, id, err)
	}
	s.log.Debug("featured flag written", zap.String("lang", lang), zap.String("resource", id), zap.Bool("featured", v))
	return nil
}
