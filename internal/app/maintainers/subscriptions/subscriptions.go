// Package subscriptions mirrors reviewer state onto user records: subject
// moderators become watchingSubjects entries and the user role decides
// isAdminOrMod.
package subscriptions

import (
	"context"
	"fmt"
	"sort"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	userstore "github.com/dalemusser/lessonsync/internal/app/store/users"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

type Synchronizer struct {
	db    docstore.Store
	users *userstore.Store
}

func New(db docstore.Store) *Synchronizer {
	return &Synchronizer{db: db, users: userstore.New(db)}
}

func (s *Synchronizer) Name() string { return "subscriptions" }

func (s *Synchronizer) Handle(ctx context.Context, ev dispatch.Event) error {
	switch ev.Pattern {
	case tree.SubjectPattern:
		return s.subjectWritten(ctx, ev)
	case tree.UserPattern:
		return s.userWritten(ctx, ev)
	}
	return nil
}

func moderators(data docstore.Data) (map[string]bool, error) {
	if data == nil {
		return nil, nil
	}
	var subj models.Subject
	if err := docstore.Decode(data, &subj); err != nil {
		return nil, err
	}
	return subj.Moderators, nil
}

// subjectWritten subscribes current moderators and unsubscribes removed ones.
// Subscriptions are keyed by subject id.
func (s *Synchronizer) subjectWritten(ctx context.Context, ev dispatch.Event) error {
	if !ev.Changed("moderators") {
		return nil
	}
	subjectID := ev.Param("subjectId")
	before, err := moderators(ev.Before)
	if err != nil {
		return err
	}
	after, err := moderators(ev.After)
	if err != nil {
		return err
	}

	ids := map[string]bool{}
	for id := range before {
		ids[id] = true
	}
	for id := range after {
		ids[id] = true
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, uid := range sorted {
		if !tree.ValidID(uid) {
			continue
		}
		err := s.users.SetWatching(ctx, uid, subjectID, after[uid])
		if err != nil && !docstore.IsNotFound(err) {
			return fmt.Errorf("update subscription of %s: %w", uid, err)
		}
	}
	return nil
}

// userWritten derives isAdminOrMod from the role and rebuilds
// watchingSubjects from the subjects that list the user as moderator, so a
// user created after its subjects still ends up subscribed.
func (s *Synchronizer) userWritten(ctx context.Context, ev dispatch.Event) error {
	if ev.After == nil {
		return nil
	}
	uid := ev.Param("userId")
	u, _, err := userstore.Decode(uid, ev.After)
	if err != nil {
		return err
	}

	fields := docstore.Data{}
	reviewer := models.IsReviewerRole(u.Role)
	if _, present := ev.After["isAdminOrMod"]; !present || u.IsAdminOrMod != reviewer {
		fields["isAdminOrMod"] = reviewer
	}

	want, err := s.moderated(ctx, uid)
	if err != nil {
		return fmt.Errorf("subjects moderated by %s: %w", uid, err)
	}
	for id := range want {
		if !u.WatchingSubjects[id] {
			fields["watchingSubjects."+id] = true
		}
	}
	for id := range u.WatchingSubjects {
		if !want[id] && tree.ValidID(id) {
			fields["watchingSubjects."+id] = docstore.DeleteField
		}
	}
	if len(fields) == 0 {
		return nil
	}

	err = s.users.SetFields(ctx, uid, fields)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

// moderated returns the ids of the subjects, in any language, listing uid
// as a moderator.
func (s *Synchronizer) moderated(ctx context.Context, uid string) (map[string]bool, error) {
	if !tree.ValidID(uid) {
		return nil, nil
	}
	docs, err := s.db.Query(ctx, docstore.Query{
		Collection: "subjects",
		AllParents: true,
		Where:      []docstore.Filter{docstore.Where("moderators."+uid, docstore.Eq, true)},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(docs))
	for _, d := range docs {
		out[tree.ID(d.Path)] = true
	}
	return out, nil
}
