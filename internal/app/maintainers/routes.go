// Package maintainers wires every invariant maintainer into a dispatch
// router.
package maintainers

import (
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/accounts"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/attachmentsync"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/counter"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/deletion"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/featured"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/pending"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/preview"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/status"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/subscriptions"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/syllabus"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/app/system/notify"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the maintainers.
type Deps struct {
	DB          docstore.Store
	Attachments attachments.Store
	Notifier    notify.Sender
	Policy      headers.Policy
	Logger      *zap.Logger
}

// Set holds the constructed maintainers.
type Set struct {
	Featured      *featured.Selector
	Counter       *counter.Counter
	Status        *status.Handler
	Headers       *headers.Sync
	Projector     *headers.Projector
	Pending       *pending.Updater
	Syllabus      *syllabus.Propagator
	Deletion      *deletion.Coordinator
	Attachments   *attachmentsync.Manager
	Preview       *preview.Synchronizer
	Subscriptions *subscriptions.Synchronizer
	Accounts      *accounts.Mirror
}

// Build constructs every maintainer over deps.
func Build(deps Deps) *Set {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogSender{Log: log}
	}
	if deps.Attachments == nil {
		deps.Attachments = attachments.NewMemory()
	}
	p := pending.New(deps.DB)
	c := counter.New(deps.DB, log.Named("counter"))
	return &Set{
		Featured:      featured.New(deps.DB, log.Named("featured")),
		Counter:       c,
		Status:        status.New(deps.DB, deps.Notifier, p, log.Named("status")),
		Headers:       headers.NewSync(deps.DB),
		Projector:     headers.NewProjector(deps.DB, deps.Policy, log.Named("projector")),
		Pending:       p,
		Syllabus:      syllabus.New(deps.DB),
		Deletion:      deletion.New(deps.DB, deps.Attachments, c, p, log.Named("deletion")),
		Attachments:   attachmentsync.New(deps.DB, deps.Attachments, log.Named("attachments")),
		Preview:       preview.New(deps.DB),
		Subscriptions: subscriptions.New(deps.DB),
		Accounts:      accounts.New(deps.DB, log.Named("accounts")),
	}
}

// Register binds the set to its document patterns.
func (s *Set) Register(r *dispatch.Router) {
	r.Register(tree.ResourcePattern,
		s.Featured,
		s.Counter,
		s.Status,
		s.Headers,
		s.Pending,
		s.Syllabus,
		s.Deletion,
	)
	r.Register(tree.CardPattern, s.Attachments, s.Deletion)
	r.Register(tree.FeedbackPattern, s.Preview)
	r.Register(tree.HeaderPattern, s.Projector)
	r.Register(tree.TopicPattern, s.Syllabus, s.Pending)
	r.Register(tree.SubtopicPattern, s.Syllabus)
	r.Register(tree.SyllabusLessonPattern, s.Syllabus)
	r.Register(tree.SubjectPattern, s.Subscriptions)
	r.Register(tree.UserPattern, s.Subscriptions)
}

// NewRouter builds the maintainers and a router with all of them registered.
func NewRouter(deps Deps) (*dispatch.Router, *Set) {
	set := Build(deps)
	r := dispatch.NewRouter()
	set.Register(r)
	return r, set
}
