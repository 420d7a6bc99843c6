// Package preview shows the latest unlocked reviewer comment of a card on
// the card itself.
package preview

import (
	"context"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	cardstore "github.com/dalemusser/lessonsync/internal/app/store/cards"
	feedbackstore "github.com/dalemusser/lessonsync/internal/app/store/feedback"
	"github.com/microcosm-cc/bluemonday"
)

type Synchronizer struct {
	cards    *cardstore.Store
	feedback *feedbackstore.Store
	policy   *bluemonday.Policy
}

func New(db docstore.Store) *Synchronizer {
	return &Synchronizer{
		cards:    cardstore.New(db),
		feedback: feedbackstore.New(db),
		policy:   bluemonday.StrictPolicy(),
	}
}

func (s *Synchronizer) Name() string { return "preview" }

// Handle recomputes the card preview on any comment write except a lock.
func (s *Synchronizer) Handle(ctx context.Context, ev dispatch.Event) error {
	if ev.OnlyChanged("locked") {
		return nil
	}
	lang, rid, cid := ev.Param("lang"), ev.Param("resourceId"), ev.Param("cardId")

	latest, ok, err := s.feedback.LatestUnlockedReviewerComment(ctx, lang, rid, cid)
	if err != nil {
		return err
	}
	if !ok {
		err = s.cards.ClearPreview(ctx, lang, rid, cid)
	} else {
		err = s.cards.SetFields(ctx, lang, rid, cid, docstore.Data{
			"feedbackPreviewComment":     s.policy.Sanitize(latest.CommentText),
			"feedbackPreviewCommentPath": latest.Path,
		})
	}
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}
