package syllabus_test

import (
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
)

const lang = testutil.Lang

func topicCount(h *testutil.Harness, id string) any {
	return h.Doc(tree.SyllabusLesson(lang, id))["topicCount"]
}

func TestPropagator_TopicCount(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.SyllabusLesson(lang, "sl1"), docstore.Data{"name": "Motion"})
	h.Set(tree.SyllabusLesson(lang, "sl2"), docstore.Data{"name": "Energy"})

	h.Set(tree.Topic(lang, "t1"), testutil.Topic("Forces", "sl1", "sl2"))
	h.Set(tree.Topic(lang, "t2"), testutil.Topic("Waves", "sl1"))

	if !docstore.Equal(topicCount(h, "sl1"), 2) || !docstore.Equal(topicCount(h, "sl2"), 1) {
		t.Fatalf("topicCount sl1=%v sl2=%v, want 2 and 1", topicCount(h, "sl1"), topicCount(h, "sl2"))
	}

	h.Update(tree.Topic(lang, "t1"), docstore.Data{"syllabus_lessons.sl1": false})
	if !docstore.Equal(topicCount(h, "sl1"), 1) {
		t.Errorf("after unlink topicCount sl1=%v, want 1", topicCount(h, "sl1"))
	}

	h.Delete(tree.Topic(lang, "t2"))
	if !docstore.Equal(topicCount(h, "sl1"), 0) {
		t.Errorf("after delete topicCount sl1=%v, want 0", topicCount(h, "sl1"))
	}
	h.RequireInvariants()
}

func TestPropagator_NewLessonCountsExistingTopics(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Topic(lang, "t1"), testutil.Topic("Forces", "sl1"))

	h.Set(tree.SyllabusLesson(lang, "sl1"), docstore.Data{"name": "Motion"})

	if !docstore.Equal(topicCount(h, "sl1"), 1) {
		t.Errorf("topicCount = %v, want 1", topicCount(h, "sl1"))
	}
}

func TestPropagator_SubtopicMapCopiedToLessons(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Subtopic(lang, "s1"), testutil.Subtopic("t1", "sl1"))
	h.Set(tree.Resource(lang, "L"), testutil.Lesson("t1", "s1", models.StatusDraft))
	classroom := testutil.Lesson("t1", "s1", models.StatusDraft)
	classroom["resourceType"] = models.ResourceTypeClassroomResource
	h.Set(tree.Resource(lang, "C"), classroom)

	if got := h.Resource(lang, "L").SyllabusLessons; !got["sl1"] || len(got) != 1 {
		t.Errorf("new lesson syllabus_lessons = %v", got)
	}
	if got := h.Resource(lang, "C").SyllabusLessons; len(got) != 0 {
		t.Errorf("classroom resource received syllabus_lessons %v", got)
	}

	h.Update(tree.Subtopic(lang, "s1"), docstore.Data{"syllabus_lessons.sl2": true})
	if got := h.Resource(lang, "L").SyllabusLessons; !got["sl1"] || !got["sl2"] {
		t.Errorf("after subtopic edit syllabus_lessons = %v", got)
	}
}
