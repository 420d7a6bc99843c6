// Package syllabus propagates syllabus lesson associations: subtopic maps
// are copied onto their lessons, and every syllabus lesson counts the topics
// referencing it.
package syllabus

import (
	"context"
	"fmt"
	"sort"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	subtopicstore "github.com/dalemusser/lessonsync/internal/app/store/subtopics"
	syllabusstore "github.com/dalemusser/lessonsync/internal/app/store/syllabus"
	topicstore "github.com/dalemusser/lessonsync/internal/app/store/topics"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

const field = "syllabus_lessons"

type Propagator struct {
	resources *resourcestore.Store
	subtopics *subtopicstore.Store
	topics    *topicstore.Store
	lessons   *syllabusstore.Store
}

func New(db docstore.Store) *Propagator {
	return &Propagator{
		resources: resourcestore.New(db),
		subtopics: subtopicstore.New(db),
		topics:    topicstore.New(db),
		lessons:   syllabusstore.New(db),
	}
}

func (p *Propagator) Name() string { return "syllabus" }

func (p *Propagator) Handle(ctx context.Context, ev dispatch.Event) error {
	switch ev.Pattern {
	case tree.SubtopicPattern:
		return p.subtopicWritten(ctx, ev)
	case tree.ResourcePattern:
		return p.resourceWritten(ctx, ev)
	case tree.TopicPattern:
		return p.topicWritten(ctx, ev)
	case tree.SyllabusLessonPattern:
		return p.lessonWritten(ctx, ev)
	}
	return nil
}

// subtopicWritten copies the subtopic's map onto each of its lessons.
func (p *Propagator) subtopicWritten(ctx context.Context, ev dispatch.Event) error {
	if ev.After == nil || (ev.Before != nil && !ev.Changed(field)) {
		return nil
	}
	lang, id := ev.Param("lang"), ev.Param("subtopicId")
	st, _, err := subtopicstore.Decode(id, ev.After)
	if err != nil {
		return err
	}
	lessons, err := p.resources.ListLessonsBySubtopic(ctx, lang, id)
	if err != nil {
		return fmt.Errorf("list lessons of %s: %w", id, err)
	}
	for _, r := range lessons {
		if sameSet(r.SyllabusLessons, st.SyllabusLessons) {
			continue
		}
		if err := p.copyOnto(ctx, lang, r.ID, st.SyllabusLessons); err != nil {
			return err
		}
	}
	return nil
}

// resourceWritten gives a new or reassigned lesson its subtopic's map.
func (p *Propagator) resourceWritten(ctx context.Context, ev dispatch.Event) error {
	if ev.After == nil || (ev.Before != nil && !ev.Changed("subtopic") && !ev.Changed("resourceType")) {
		return nil
	}
	lang, id := ev.Param("lang"), ev.Param("resourceId")
	r, _, err := resourcestore.Decode(lang, id, ev.After)
	if err != nil {
		return err
	}
	if !r.IsLesson() || r.Subtopic == "" {
		return nil
	}
	st, err := p.subtopics.GetByID(ctx, lang, r.Subtopic)
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if sameSet(r.SyllabusLessons, st.SyllabusLessons) {
		return nil
	}
	return p.copyOnto(ctx, lang, id, st.SyllabusLessons)
}

func (p *Propagator) copyOnto(ctx context.Context, lang, id string, m map[string]bool) error {
	var v any = docstore.DeleteField
	if len(m) > 0 {
		cp := make(map[string]any, len(m))
		for k, on := range m {
			cp[k] = on
		}
		v = cp
	}
	err := p.resources.SetFields(ctx, lang, id, docstore.Data{field: v})
	if err != nil && !docstore.IsNotFound(err) {
		return fmt.Errorf("copy %s onto %s: %w", field, id, err)
	}
	return nil
}

// topicWritten recounts every lesson the topic referenced before or after.
func (p *Propagator) topicWritten(ctx context.Context, ev dispatch.Event) error {
	if !ev.Changed(field) {
		return nil
	}
	lang := ev.Param("lang")
	ids := map[string]bool{}
	for _, snap := range []docstore.Data{ev.Before, ev.After} {
		if m, ok := snap[field].(map[string]any); ok {
			for k := range m {
				ids[k] = true
			}
		}
	}
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, lessonID := range keys {
		if err := p.recount(ctx, lang, lessonID); err != nil {
			return err
		}
	}
	return nil
}

// lessonWritten recounts a syllabus lesson unless the write was its own count.
func (p *Propagator) lessonWritten(ctx context.Context, ev dispatch.Event) error {
	if ev.After == nil || ev.OnlyChanged("topicCount") {
		return nil
	}
	return p.recount(ctx, ev.Param("lang"), ev.Param("lessonId"))
}

func (p *Propagator) recount(ctx context.Context, lang, lessonID string) error {
	if !tree.ValidID(lessonID) {
		return nil
	}
	n, err := p.topics.CountReferencing(ctx, lang, lessonID)
	if err != nil {
		return fmt.Errorf("count topics referencing %s: %w", lessonID, err)
	}
	err = p.lessons.SetTopicCount(ctx, lang, lessonID, n)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
