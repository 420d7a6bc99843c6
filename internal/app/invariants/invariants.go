// Package invariants evaluates the settled-state invariants of the content
// tree against a snapshot of every document.
package invariants

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

// Invariant numbers.
const (
	SingleFeatured = iota + 1
	SubmissionCount
	HeaderMirror
	TopicCount
	PendingFlag
	CascadeComplete
)

// Violation is one broken invariant.
type Violation struct {
	Invariant int    `json:"invariant" yaml:"invariant"`
	Path      string `json:"path" yaml:"path"`
	Detail    string `json:"detail" yaml:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("invariant %d: %s: %s", v.Invariant, v.Path, v.Detail)
}

type snapshot struct {
	resources map[string]models.Resource // by path
	docs      map[string]docstore.Data
	byColl    map[string][]docstore.Doc // by collection name
}

// Check evaluates every invariant. docs is the full document set and objects
// the stored attachment keys. Violations are ordered by invariant and path.
func Check(docs []docstore.Doc, objects []string) ([]Violation, error) {
	s := snapshot{
		resources: map[string]models.Resource{},
		docs:      map[string]docstore.Data{},
		byColl:    map[string][]docstore.Doc{},
	}
	for _, d := range docs {
		s.docs[d.Path] = d.Data
		name := tree.CollectionName(d.Path)
		s.byColl[name] = append(s.byColl[name], d)
		if name == "resources" {
			r, _, err := resourcestore.Decode(langOf(d.Path), tree.ID(d.Path), d.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", d.Path, err)
			}
			s.resources[d.Path] = r
		}
	}

	var out []Violation
	out = append(out, s.featured()...)
	out = append(out, s.counts()...)
	out = append(out, s.headers()...)
	out = append(out, s.topicCounts()...)
	out = append(out, s.pending()...)
	out = append(out, s.cascade(objects)...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Invariant != out[j].Invariant {
			return out[i].Invariant < out[j].Invariant
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// langOf returns the {lang} segment of a languages/... path.
func langOf(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 1 && parts[0] == "languages" {
		return parts[1]
	}
	return ""
}

func (s snapshot) groups() map[models.Group][]models.Resource {
	out := map[models.Group][]models.Resource{}
	for _, r := range s.resources {
		if r.IsPublished() && r.Group().Valid() {
			out[r.Group()] = append(out[r.Group()], r)
		}
	}
	return out
}

func groupPath(g models.Group) string {
	return fmt.Sprintf("languages/%s/{topic=%s,subtopic=%s,type=%s}", g.Lang, g.Topic, g.Subtopic, g.ResourceType)
}

func (s snapshot) featured() []Violation {
	var out []Violation
	for g, published := range s.groups() {
		n := 0
		for _, r := range published {
			if r.IsFeatured {
				n++
			}
		}
		if n != 1 {
			out = append(out, Violation{SingleFeatured, groupPath(g), fmt.Sprintf("%d of %d published resources featured", n, len(published))})
		}
	}
	return out
}

func (s snapshot) counts() []Violation {
	published := map[models.Group]int64{}
	for g, rs := range s.groups() {
		published[g] = int64(len(rs))
	}
	var out []Violation
	for path, r := range s.resources {
		if !r.IsLesson() || !r.IsFeatured || !r.IsPublished() || !r.Group().Valid() {
			continue
		}
		if want := published[r.Group()]; r.SubtopicSubmissionCount != want {
			out = append(out, Violation{SubmissionCount, path, fmt.Sprintf("subtopicSubmissionCount %d, want %d", r.SubtopicSubmissionCount, want)})
		}
	}
	return out
}

func (s snapshot) headers() []Violation {
	var out []Violation
	for path, r := range s.resources {
		hp := tree.Header(r.Lang, r.ID)
		h, ok := s.docs[hp]
		if !ok {
			out = append(out, Violation{HeaderMirror, path, "header missing"})
			continue
		}
		want := docstore.NormalizeData(models.HeaderOf(r).Fields())
		for _, f := range changedFields(h, want) {
			out = append(out, Violation{HeaderMirror, hp, "field " + f + " differs from source"})
		}
	}
	for _, d := range s.byColl["resource_headers"] {
		src := tree.Resource(langOf(d.Path), tree.ID(d.Path))
		if _, ok := s.resources[src]; !ok {
			out = append(out, Violation{HeaderMirror, d.Path, "header without source resource"})
		}
	}
	return out
}

func changedFields(got, want docstore.Data) []string {
	var out []string
	for k, wv := range want {
		if gv, ok := got[k]; !ok || !docstore.Equal(gv, wv) {
			out = append(out, k)
		}
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s snapshot) topicCounts() []Violation {
	var out []Violation
	for _, d := range s.byColl["syllabus_lessons"] {
		lang, id := langOf(d.Path), tree.ID(d.Path)
		if !tree.ValidID(id) {
			continue
		}
		var want int64
		for _, t := range s.byColl["topics"] {
			if langOf(t.Path) != lang {
				continue
			}
			if v, ok := docstore.Lookup(t.Data, "syllabus_lessons."+id); ok && v == true {
				want++
			}
		}
		got, _ := docstore.Lookup(d.Data, "topicCount")
		if !docstore.Equal(orZero(got), want) {
			out = append(out, Violation{TopicCount, d.Path, fmt.Sprintf("topicCount %v, want %d", orZero(got), want)})
		}
	}
	return out
}

func orZero(v any) any {
	if v == nil {
		return int64(0)
	}
	return v
}

func (s snapshot) pending() []Violation {
	awaiting := map[string]bool{}
	for _, r := range s.resources {
		if r.Status == models.StatusAwaitingReview && r.Topic != "" {
			awaiting[tree.Topic(r.Lang, r.Topic)] = true
		}
	}
	var out []Violation
	for _, d := range s.byColl["topics"] {
		got, _ := d.Data["hasPendingSubmissions"].(bool)
		if got != awaiting[d.Path] {
			out = append(out, Violation{PendingFlag, d.Path, fmt.Sprintf("hasPendingSubmissions %v, want %v", got, awaiting[d.Path])})
		}
	}
	return out
}

func (s snapshot) cascade(objects []string) []Violation {
	var out []Violation
	for _, d := range s.byColl["cards"] {
		if _, ok := s.docs[tree.Parent(tree.Parent(d.Path))]; !ok {
			out = append(out, Violation{CascadeComplete, d.Path, "card of deleted resource"})
		}
	}
	for _, d := range s.byColl["feedback"] {
		if _, ok := s.docs[tree.Parent(tree.Parent(d.Path))]; !ok {
			out = append(out, Violation{CascadeComplete, d.Path, "feedback of deleted card"})
		}
	}

	owners := map[string]bool{}
	for _, r := range s.resources {
		owners[tree.ResourceNamespace(r.AuthorID, r.ID)] = true
	}
	for _, key := range objects {
		parts := strings.SplitN(key, "/", 3)
		if len(parts) < 3 {
			continue
		}
		if !owners[tree.ResourceNamespace(parts[0], parts[1])] {
			out = append(out, Violation{CascadeComplete, key, "attachment of deleted resource"})
		}
	}
	return out
}
