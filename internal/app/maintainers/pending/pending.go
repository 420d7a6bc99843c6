// Package pending maintains hasPendingSubmissions on topics.
package pending

import (
	"context"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	topicstore "github.com/dalemusser/lessonsync/internal/app/store/topics"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

type Updater struct {
	resources *resourcestore.Store
	topics    *topicstore.Store
}

func New(db docstore.Store) *Updater {
	return &Updater{resources: resourcestore.New(db), topics: topicstore.New(db)}
}

func (u *Updater) Name() string { return "pending" }

// Recompute sets hasPendingSubmissions on the topic from a fresh count of
// its resources awaiting review. A missing topic is left alone.
func (u *Updater) Recompute(ctx context.Context, lang, topic string) error {
	if topic == "" {
		return nil
	}
	n, err := u.resources.CountAwaitingReview(ctx, lang, topic)
	if err != nil {
		return fmt.Errorf("count awaiting review in %s: %w", topic, err)
	}
	err = u.topics.SetPending(ctx, lang, topic, n > 0)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

// Handle recomputes both topics when a resource moves between topics, and
// a topic when it is created or its flag is overwritten. Status transitions
// and deletes call Recompute from their own handlers.
func (u *Updater) Handle(ctx context.Context, ev dispatch.Event) error {
	if ev.Pattern == tree.TopicPattern {
		if ev.After == nil || (ev.Before != nil && !ev.Changed("hasPendingSubmissions")) {
			return nil
		}
		return u.Recompute(ctx, ev.Param("lang"), ev.Param("topicId"))
	}
	if ev.Before == nil || ev.After == nil || !ev.Changed("topic") {
		return nil
	}
	lang := ev.Param("lang")
	before, _, err := resourcestore.Decode(lang, ev.Param("resourceId"), ev.Before)
	if err != nil {
		return err
	}
	after, _, err := resourcestore.Decode(lang, ev.Param("resourceId"), ev.After)
	if err != nil {
		return err
	}
	if err := u.Recompute(ctx, lang, before.Topic); err != nil {
		return err
	}
	return u.Recompute(ctx, lang, after.Topic)
}
