package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/cascade"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	"github.com/dalemusser/lessonsync/internal/app/invariants"
	"github.com/dalemusser/lessonsync/internal/app/maintainers"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/app/system/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Scenario string
	Check    bool
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Op    string        `json:"op"`
	Path  string        `json:"path"`
	Stats cascade.Stats `json:"stats"`
	Error string        `json:"error,omitempty"`
}

// Document is a settled document.
type Document struct {
	Path string         `json:"path"`
	Data map[string]any `json:"data"`
}

// ReplayResult is the full replay report.
type ReplayResult struct {
	Scenario      string                 `json:"scenario"`
	Steps         []StepResult           `json:"steps"`
	Documents     []Document             `json:"documents"`
	Objects       []string               `json:"objects"`
	Notifications []notify.Sent          `json:"notifications"`
	Checked       bool                   `json:"checked"`
	Violations    []invariants.Violation `json:"violations,omitempty"`
}

// Failed reports a step error or, when checked, a broken invariant.
func (r *ReplayResult) Failed() bool {
	for _, st := range r.Steps {
		if st.Error != "" {
			return true
		}
	}
	return r.Checked && len(r.Violations) > 0
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scenario of writes against an in-memory tree",
		Long: `Seed an in-memory content tree, apply the scenario's writes one by one
and settle the cascade each write triggers. Prints the settled documents,
per-step cascade statistics and, with --check, invariant violations.

Exit codes:
  0 - Scenario settled (and, with --check, every invariant holds)
  1 - A cascade failed or an invariant is broken
  2 - Command error (unreadable scenario, bad flags)

Examples:
  lessonsyncctl replay --scenario publish.yaml
  lessonsyncctl replay --scenario publish.yaml --check --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to scenario YAML (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "check invariants after the last step")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sc, err := LoadScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger := zap.NewNop()
	if opts.Verbose {
		logger, _ = zap.NewDevelopment()
	}
	res, err := Replay(ctx, sc, opts.Check, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		status := "ok"
		if res.Failed() {
			status = "error"
		}
		if err := writeJSON(out, status, res); err != nil {
			return err
		}
	} else {
		writeReplayText(out, res)
	}

	if res.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
	}
	return nil
}

// Replay runs sc against fresh in-memory collaborators.
func Replay(ctx context.Context, sc *Scenario, check bool, logger *zap.Logger) (*ReplayResult, error) {
	policy, err := headers.ParsePolicy(sc.Policy)
	if err != nil {
		return nil, err
	}

	db := memstore.New()
	att := attachments.NewMemory()
	rec := &notify.Recorder{}
	router, _ := maintainers.NewRouter(maintainers.Deps{
		DB:          db,
		Attachments: att,
		Notifier:    rec,
		Policy:      policy,
		Logger:      logger,
	})
	disp := dispatch.New(router, logger, dispatch.Options{MaxHops: sc.MaxHops})
	runner := cascade.NewRunner(db, disp, logger, cascade.Options{})

	for _, o := range sc.Objects {
		att.Put(o.Path, attachments.Metadata{ContentType: o.ContentType, SizeBytes: o.SizeBytes, CreatedAt: o.CreatedAt})
	}
	for _, d := range sc.Seed {
		db.Seed(d.Path, docstore.NormalizeData(d.Data))
	}

	res := &ReplayResult{Scenario: sc.Name, Checked: check}
	for _, st := range sc.Steps {
		if err := apply(ctx, db, st); err != nil {
			return nil, fmt.Errorf("%s %s: %w", st.Op, st.Path, err)
		}
		stats, err := runner.Settle(ctx)
		sr := StepResult{Op: st.Op, Path: st.Path, Stats: stats}
		if err != nil {
			sr.Error = err.Error()
		}
		res.Steps = append(res.Steps, sr)
	}

	snap := db.Snapshot("")
	for _, d := range snap {
		res.Documents = append(res.Documents, Document{Path: d.Path, Data: d.Data})
	}
	res.Objects = att.Paths("")
	res.Notifications = rec.Sent()

	if check {
		v, err := invariants.Check(snap, res.Objects)
		if err != nil {
			return nil, fmt.Errorf("check invariants: %w", err)
		}
		res.Violations = v
	}
	return res, nil
}

func apply(ctx context.Context, db docstore.Store, st Step) error {
	switch st.Op {
	case "set":
		return db.Set(ctx, st.Path, docstore.NormalizeData(st.Data))
	case "update":
		fields := make(docstore.Data, len(st.Data))
		for k, v := range st.Data {
			if v == nil {
				fields[k] = docstore.DeleteField
				continue
			}
			fields[k] = docstore.Normalize(v)
		}
		return db.Update(ctx, st.Path, fields)
	case "delete":
		return db.Delete(ctx, st.Path)
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

func writeReplayText(w io.Writer, res *ReplayResult) {
	fmt.Fprintf(w, "Scenario: %s\n\n", res.Scenario)

	fmt.Fprintf(w, "Steps (%d):\n", len(res.Steps))
	for i, st := range res.Steps {
		fmt.Fprintf(w, "  %d. %s %s: %d event(s), max hop %d", i+1, st.Op, st.Path, st.Stats.Events, st.Stats.MaxHop)
		if st.Stats.Retried > 0 {
			fmt.Fprintf(w, ", %d retried", st.Stats.Retried)
		}
		fmt.Fprintln(w)
		if st.Error != "" {
			fmt.Fprintf(w, "     error: %s\n", st.Error)
		}
	}

	fmt.Fprintf(w, "\nDocuments (%d):\n", len(res.Documents))
	for _, d := range res.Documents {
		body, err := json.Marshal(d.Data)
		if err != nil {
			body = []byte(fmt.Sprint(d.Data))
		}
		fmt.Fprintf(w, "  %s %s\n", d.Path, body)
	}

	if len(res.Objects) > 0 {
		fmt.Fprintf(w, "\nObjects (%d):\n", len(res.Objects))
		for _, o := range res.Objects {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}

	if len(res.Notifications) > 0 {
		fmt.Fprintf(w, "\nNotifications (%d):\n", len(res.Notifications))
		for _, n := range res.Notifications {
			fmt.Fprintf(w, "  %q -> %s\n", n.Notification.Title, strings.Join(n.Tokens, ", "))
		}
	}

	if !res.Checked {
		return
	}
	fmt.Fprintln(w)
	if len(res.Violations) == 0 {
		fmt.Fprintln(w, "All invariants hold.")
		return
	}
	fmt.Fprintf(w, "Violations (%d):\n", len(res.Violations))
	for _, v := range res.Violations {
		fmt.Fprintf(w, "  ✗ %s\n", v)
	}
}
