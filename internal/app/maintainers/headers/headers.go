// Package headers keeps the read-optimized resource copies in step with
// their sources: the per-resource header and the per-subtopic featured
// lesson projection.
package headers

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	headerstore "github.com/dalemusser/lessonsync/internal/app/store/headers"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	topicstore "github.com/dalemusser/lessonsync/internal/app/store/topics"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"go.uber.org/zap"
)

// Policy decides what happens to a featured projection whose resource stops
// being the featured one.
type Policy string

const (
	// Retain leaves the projection until a replacement is projected.
	Retain Policy = "retain"
	// Delete removes the projection while it still points at the resource.
	Delete Policy = "delete"
)

// ParsePolicy accepts "retain" and "delete"; empty means Retain.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Retain:
		return Retain, nil
	case Delete:
		return Delete, nil
	}
	return "", fmt.Errorf("unknown featured projection policy %q", s)
}

// Sync copies the header field subset of a resource on every write. It
// projects the stored resource rather than the event snapshot, so a stale
// redelivery cannot roll the header back.
type Sync struct {
	headers   *headerstore.Store
	resources *resourcestore.Store
}

func NewSync(db docstore.Store) *Sync {
	return &Sync{headers: headerstore.New(db), resources: resourcestore.New(db)}
}

func (s *Sync) Name() string { return "headers" }

func (s *Sync) Handle(ctx context.Context, ev dispatch.Event) error {
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	cur, err := s.resources.GetByID(ctx, lang, id)
	if docstore.IsNotFound(err) {
		return s.headers.Delete(ctx, lang, id)
	}
	if err != nil {
		return err
	}
	return s.headers.Put(ctx, lang, id, models.HeaderOf(cur))
}

// Projector maintains featured_headers/{subtopic} from lesson header writes
// and the featuredSubtopicCount of the affected topics.
type Projector struct {
	headers   *headerstore.Store
	resources *resourcestore.Store
	topics    *topicstore.Store
	policy    Policy
	log       *zap.Logger
}

func NewProjector(db docstore.Store, policy Policy, logger *zap.Logger) *Projector {
	return &Projector{
		headers:   headerstore.New(db),
		resources: resourcestore.New(db),
		topics:    topicstore.New(db),
		policy:    policy,
		log:       logger,
	}
}

func (p *Projector) Name() string { return "featured-projection" }

func (p *Projector) Handle(ctx context.Context, ev dispatch.Event) error {
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	prev, hadPrev, err := headerstore.DecodeHeader(ev.Before)
	if err != nil {
		return err
	}
	h, err := p.headers.Get(ctx, lang, id)
	ok := err == nil
	if err != nil && !docstore.IsNotFound(err) {
		return err
	}

	topics := map[string]bool{}
	if ok && projectable(h) {
		written, err := p.project(ctx, lang, id, h)
		if err != nil {
			return err
		}
		if written {
			topics[h.Topic] = true
		}
	}
	if hadPrev && projectable(prev) && (!ok || !projectable(h) || h.Subtopic != prev.Subtopic) {
		removed, err := p.vacate(ctx, lang, id, prev.Subtopic)
		if err != nil {
			return err
		}
		if removed {
			topics[prev.Topic] = true
		}
	}
	if hadPrev && ok && prev.Topic != h.Topic && projectable(h) {
		topics[prev.Topic] = true
	}

	for topic := range topics {
		if err := p.recomputeTopic(ctx, lang, topic); err != nil {
			return err
		}
	}
	return nil
}

func projectable(h models.Header) bool {
	return h.IsFeatured && h.ResourceType == models.ResourceTypeLesson && h.Subtopic != ""
}

// project writes the projection for a featured header whose source still
// exists. It reports whether a projection was written.
func (p *Projector) project(ctx context.Context, lang, id string, h models.Header) (bool, error) {
	src, err := p.resources.GetByID(ctx, lang, id)
	if docstore.IsNotFound(err) {
		p.log.Debug("featured header without source, projection untouched", zap.String("resource", id))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := p.resources.CountPublished(ctx, src.Group().Lessons())
	if err != nil {
		return false, fmt.Errorf("count published lessons: %w", err)
	}
	if err := p.headers.PutFeatured(ctx, lang, h.Subtopic, models.FeaturedHeader{Header: h, SubtopicSubmissionCount: n}); err != nil {
		return false, fmt.Errorf("write featured projection: %w", err)
	}
	return true, nil
}

// vacate applies the policy to the subtopic's projection once resource id no
// longer feeds it. It reports whether the projection was removed.
func (p *Projector) vacate(ctx context.Context, lang, id, subtopic string) (bool, error) {
	if p.policy != Delete {
		return false, nil
	}
	cur, err := p.headers.GetFeatured(ctx, lang, subtopic)
	if docstore.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur.Resource != id {
		return false, nil
	}
	if err := p.headers.DeleteFeatured(ctx, lang, subtopic); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Projector) recomputeTopic(ctx context.Context, lang, topic string) error {
	if topic == "" {
		return nil
	}
	n, err := p.headers.CountFeaturedInTopic(ctx, lang, topic)
	if err != nil {
		return err
	}
	err = p.topics.SetFeaturedSubtopicCount(ctx, lang, topic, n)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}
