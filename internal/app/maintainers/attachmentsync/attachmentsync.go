// Package attachmentsync keeps a card's attachmentMetadata in step with the
// object its attachmentPath names.
package attachmentsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	cardstore "github.com/dalemusser/lessonsync/internal/app/store/cards"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"go.uber.org/zap"
)

type Manager struct {
	cards       *cardstore.Store
	attachments attachments.Store
	log         *zap.Logger
}

func New(db docstore.Store, att attachments.Store, logger *zap.Logger) *Manager {
	return &Manager{cards: cardstore.New(db), attachments: att, log: logger}
}

func (m *Manager) Name() string { return "attachments" }

func (m *Manager) Handle(ctx context.Context, ev dispatch.Event) error {
	if ev.After == nil || (ev.Before != nil && !ev.Changed("attachmentPath")) {
		return nil
	}
	lang, rid, cid := ev.Param("lang"), ev.Param("resourceId"), ev.Param("cardId")
	card, _, err := cardstore.Decode(lang, rid, cid, ev.After)
	if err != nil {
		return err
	}
	prev, _, err := cardstore.Decode(lang, rid, cid, ev.Before)
	if err != nil {
		return err
	}

	if prev.AttachmentPath != "" && prev.AttachmentPath != card.AttachmentPath {
		if err := m.attachments.Delete(ctx, prev.AttachmentPath); err != nil {
			m.log.Warn("delete replaced attachment failed",
				zap.String("card", ev.Path),
				zap.String("object", prev.AttachmentPath),
				zap.Error(err),
			)
		}
	}
	if card.AttachmentPath == "" {
		return nil
	}

	md, err := m.attachments.Metadata(ctx, card.AttachmentPath)
	var fields docstore.Data
	switch {
	case errors.Is(err, attachments.ErrDisabled):
		return nil
	case errors.Is(err, attachments.ErrNotFound):
		m.log.Warn("attachment missing, clearing metadata",
			zap.String("card", ev.Path),
			zap.String("object", card.AttachmentPath),
		)
		fields = docstore.Data{"attachmentMetadata": docstore.DeleteField}
	case err != nil:
		return fmt.Errorf("fetch metadata of %s: %w", card.AttachmentPath, err)
	default:
		fields = docstore.Data{"attachmentMetadata": map[string]any{
			"contentType": md.ContentType,
			"sizeBytes":   md.SizeBytes,
			"createdAt":   md.CreatedAt,
		}}
	}
	err = m.cards.SetFields(ctx, lang, rid, cid, fields)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}
