// Package agentloop implements the thin top-level controller that ties
// prerequisite checks, crash recovery, planning, batching, and dispatch
// into the orchestrator's iteration loop.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/randalmurphal/orc/internal/batch"
	"github.com/randalmurphal/orc/internal/compliance"
	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/dispatcher"
	orcerrors "github.com/randalmurphal/orc/internal/errors"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/manifest"
	"github.com/randalmurphal/orc/internal/orcstate"
	"github.com/randalmurphal/orc/internal/planner"
	"github.com/randalmurphal/orc/internal/repoops"
	"github.com/randalmurphal/orc/internal/supervisor"
)

// Options configures one run of the loop.
type Options struct {
	WorkDir    string
	BaseBranch string
	Cfg        config.Config

	// MaxIterations caps the loop; 0 means unbounded (stop on empty backlog
	// or interrupt instead).
	MaxIterations int

	// IssueID restricts the run to a single issue: the loop stops as soon
	// as that issue reaches Completed or Failed.
	IssueID string

	DryRun     bool
	NoPlanner  bool
	NoQuality  bool
	Planner    planner.Options
	Logger     *slog.Logger
	Publisher  events.Publisher
}

// Loop is the thin top-level controller.
type Loop struct {
	opts      Options
	state     *orcstate.State
	repo      *repoops.RepoOps
	locks     *manifest.LockTable
	checker   *compliance.Checker
	pool      *dispatcher.Pool
	plan      *planner.Planner
	publisher events.Publisher
	logger    *slog.Logger

	statePath string
	iteration int
}

// New checks prerequisites, initializes state with crash recovery, and
// wires the dispatcher stack. It does not start the loop.
func New(opts Options) (*Loop, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewNopPublisher()
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = "main"
	}

	if err := checkPrerequisites(opts); err != nil {
		return nil, err
	}

	statePath := filepath.Join(opts.WorkDir, ".orc", "state.json")
	st, err := orcstate.Load(statePath)
	if err != nil {
		st = orcstate.New(statePath, opts.Cfg.Workers)
	} else {
		orphaned := st.CheckOrphaned(time.Now())
		for _, slotIdx := range orphaned {
			opts.Logger.Warn("recovered orphaned worker", "slot", slotIdx)
		}
	}

	repo, err := repoops.New(opts.WorkDir, ".orc/worktrees")
	if err != nil {
		return nil, orcerrors.ErrVCSUnavailable(err.Error()).WithCause(err)
	}

	locks := manifest.NewLockTable()
	super := supervisor.New(opts.Cfg.AgentCommand)
	checker := compliance.New(repo)

	pool := dispatcher.New(st, repo, locks, super, checker, opts.Publisher, opts.Logger, opts.Cfg)

	plannerOpts := opts.Planner
	plannerOpts.WorkDir = opts.WorkDir
	plannerOpts.AgentCommand = opts.Cfg.AgentCommand
	plannerOpts.Model = opts.Cfg.Model
	plannerOpts.DryRun = opts.DryRun
	plannerOpts.BackoffInitial = opts.Cfg.BackoffInitial
	plannerOpts.BackoffMax = opts.Cfg.BackoffMax
	plannerOpts.BackoffRetries = opts.Cfg.BackoffRetries

	return &Loop{
		opts:      opts,
		state:     st,
		repo:      repo,
		locks:     locks,
		checker:   checker,
		pool:      pool,
		plan:      planner.New(plannerOpts),
		publisher: opts.Publisher,
		logger:    opts.Logger,
		statePath: statePath,
	}, nil
}

// checkPrerequisites verifies the agent and git binaries are reachable and
// the configuration validates. Build verification is left to the caller's
// own CI rather than this loop: nothing in Config names a build command to
// invoke, and guessing one (make, go build, npm run build, ...) per target
// repo would be unfounded.
func checkPrerequisites(opts Options) error {
	if errs := opts.Cfg.Validate(); len(errs) > 0 {
		return orcerrors.ErrConfigInvalid("config", errs[0].Error())
	}
	if _, err := exec.LookPath(opts.Cfg.AgentCommand); err != nil {
		return orcerrors.ErrAgentUnavailable(opts.Cfg.AgentCommand).WithCause(err)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return orcerrors.ErrVCSUnavailable("git binary not found in PATH").WithCause(err)
	}
	return nil
}

// Run iterates until a stop condition is reached: MaxIterations, the
// single-issue target completing, the backlog going empty, or ctx being
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = l.state.Save()
			return orcerrors.ErrInterrupted()
		default:
		}

		if l.opts.MaxIterations > 0 && l.iteration >= l.opts.MaxIterations {
			return nil
		}
		l.iteration++

		if l.shouldPlan() {
			if err := l.runPlanner(ctx); err != nil {
				l.logger.Warn("planner pass failed, continuing with existing manifests", "error", err)
			}
		}

		ready := l.readyIssues()
		if l.opts.IssueID != "" {
			var only []*issue.Issue
			for _, iss := range ready {
				if iss.ID == l.opts.IssueID {
					only = append(only, iss)
				}
			}
			ready = only
		}
		if len(ready) == 0 {
			if l.opts.IssueID != "" {
				iss, ok := l.state.Issues[l.opts.IssueID]
				if ok && (iss.Status == issue.StatusCompleted || iss.Status == issue.StatusFailed) {
					return nil
				}
			}
			return nil
		}

		batches := batch.Build(ready, l.opts.Cfg.Workers)
		if len(batches) == 0 {
			// No conflict-free grouping possible (or no manifests assigned
			// yet): fall back to one issue at a time, same workflow
			// collapsed to a single worker.
			batches = []orcstate.Batch{{
				ID:       "fallback",
				IssueIDs: []string{ready[0].ID},
				Status:   orcstate.BatchPending,
			}}
		}

		for i := range batches {
			b := &batches[i]
			now := time.Now()
			b.Status = orcstate.BatchRunning
			b.StartedAt = &now
			l.state.Batches = append(l.state.Batches, *b)

			if err := l.pool.Run(ctx, b, l.state.Issues, l.opts.BaseBranch); err != nil {
				_ = l.state.Save()
				if errors.Is(err, context.Canceled) {
					return orcerrors.ErrInterrupted()
				}
				return fmt.Errorf("dispatch batch %s: %w", b.ID, err)
			}

			completedAt := time.Now()
			b.Status = orcstate.BatchCompleted
			b.CompletedAt = &completedAt
			l.state.Batches[len(l.state.Batches)-1] = *b
		}

		if err := l.state.Save(); err != nil {
			l.logger.Error("save state failed", "error", err)
		}

		if l.opts.IssueID != "" {
			if iss, ok := l.state.Issues[l.opts.IssueID]; ok &&
				(iss.Status == issue.StatusCompleted || iss.Status == issue.StatusFailed) {
				return nil
			}
		}
	}
}

func (l *Loop) shouldPlan() bool {
	if l.opts.NoPlanner {
		return false
	}
	every := l.opts.Cfg.PlannerEvery
	if every <= 0 {
		every = 1
	}
	return (l.iteration-1)%every == 0
}

func (l *Loop) runPlanner(ctx context.Context) error {
	files, err := l.plan.LoadSpecs()
	if err != nil {
		return fmt.Errorf("load specs: %w", err)
	}

	// The planner sees every open or ready issue, including those that have
	// no manifest yet, so it can assign one.
	var ready []*issue.Issue
	for _, iss := range l.state.Issues {
		if iss.Status == issue.StatusOpen || iss.Status == issue.StatusReady {
			ready = append(ready, iss)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	prompt, err := l.plan.GeneratePrompt(files, ready)
	if err != nil {
		return fmt.Errorf("generate prompt: %w", err)
	}
	if l.opts.DryRun {
		l.logger.Info("dry run: skipping reviewer agent invocation", "prompt_len", len(prompt))
		return nil
	}

	response, err := l.plan.RunAgent(ctx, prompt)
	if err != nil {
		return fmt.Errorf("run reviewer agent: %w", err)
	}

	result, err := l.plan.ParseResponse(response, ready)
	if err != nil {
		return fmt.Errorf("parse reviewer response: %w", err)
	}

	for id, m := range result.Manifests {
		if iss, ok := l.state.Issues[id]; ok {
			iss.Manifest = m
			iss.Status = issue.StatusReady
		}
	}
	return nil
}

func (l *Loop) readyIssues() []*issue.Issue {
	resolved := func(id string) bool {
		iss, ok := l.state.Issues[id]
		return ok && iss.Status == issue.StatusCompleted
	}

	var ready []*issue.Issue
	for _, iss := range l.state.Issues {
		if iss.IsReady(resolved) {
			ready = append(ready, iss)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready
}

// State exposes the loop's live state for callers that need to inspect it
// after Run returns (e.g. `orc status`).
func (l *Loop) State() *orcstate.State { return l.state }
