// Package dispatcher implements WorkerPool: the single-threaded cooperative
// dispatch loop that assigns ready issues to worker slots, polls their
// agent output, enforces manifests, and drives completed workers through
// merge-back.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/orc/internal/compliance"
	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/manifest"
	"github.com/randalmurphal/orc/internal/orcstate"
	"github.com/randalmurphal/orc/internal/repoops"
	"github.com/randalmurphal/orc/internal/streamparser"
	"github.com/randalmurphal/orc/internal/supervisor"
)

// pollInterval is the dispatch loop's sleep between iterations. 100ms
// balances child-process responsiveness against CPU churn on an otherwise
// idle orchestrator.
const pollInterval = 100 * time.Millisecond

// slot is the dispatcher's live bookkeeping for one worker, mirroring
// orcstate.Worker plus the runtime handles that aren't persisted.
type slot struct {
	handle  *supervisor.Handle
	parser  *streamparser.Parser
	issueID string
	resume  bool
}

// Pool is the WorkerPool: the dispatch loop over N worker slots.
type Pool struct {
	state      *orcstate.State
	repo       *repoops.RepoOps
	locks      *manifest.LockTable
	super      *supervisor.Supervisor
	checker    *compliance.Checker
	publisher  events.Publisher
	logger     *slog.Logger
	cfg        config.Config

	idleTimeout time.Duration
	retryBudget int

	slots   []slot
	waiting map[int]string // workerID -> blocked file
}

// New creates a WorkerPool over numWorkers slots.
func New(state *orcstate.State, repo *repoops.RepoOps, locks *manifest.LockTable, sup *supervisor.Supervisor, checker *compliance.Checker, publisher events.Publisher, logger *slog.Logger, cfg config.Config) *Pool {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		state:       state,
		repo:        repo,
		locks:       locks,
		super:       sup,
		checker:     checker,
		publisher:   publisher,
		logger:      logger,
		cfg:         cfg,
		idleTimeout: cfg.IdleTimeout,
		retryBudget: cfg.RetryBudget,
		slots:       make([]slot, len(state.Workers)),
		waiting:     make(map[int]string),
	}
}

// Run executes a batch to completion: every issue either reaches Completed
// or Failed, or ctx is cancelled. It polls at pollInterval until the batch
// quiesces.
func (p *Pool) Run(ctx context.Context, b *orcstate.Batch, issues map[string]*issue.Issue, baseBranch string) error {
	pending := append([]string(nil), b.IssueIDs...)

	for {
		// Step 1: interrupt check.
		select {
		case <-ctx.Done():
			p.killAll()
			b.Status = orcstate.BatchPending
			return ctx.Err()
		default:
		}

		// Step 2: poll lines from every live slot.
		for i := range p.slots {
			s := &p.slots[i]
			if s.handle == nil {
				continue
			}
			for _, line := range s.handle.Poll() {
				ev := s.parser.Feed(line)
				p.publisher.Publish(events.NewEvent(events.EventTranscript, s.issueID, events.TranscriptLine{
					Content:   line,
					Timestamp: time.Now(),
				}))
				if ev.Type == streamparser.EventToolUse {
					p.logger.Info("tool use", "issue", s.issueID, "tool", ev.ToolName)
				}
			}
		}

		// Step 3: sentinel / lock-conflict handling.
		for i := range p.slots {
			s := &p.slots[i]
			if s.handle == nil {
				continue
			}
			path, ok := s.parser.LastSentinel()
			if !ok {
				continue
			}
			holder, held := p.locks.HolderOf(path)
			if held && holder != s.issueID {
				p.markWaiting(i, path)
				continue
			}
			s.parser.ClearSentinel()
		}

		// Step 4: reap exited slots.
		for i := range p.slots {
			s := &p.slots[i]
			if s.handle == nil {
				continue
			}
			if s.handle.Status() == supervisor.StatusRunning {
				continue
			}
			id := s.issueID
			p.finishSlot(i, issues, baseBranch, s.handle.Status() == supervisor.StatusTimedOut)
			if iss, ok := issues[id]; ok && iss.Status == issue.StatusReady {
				// Rolled back within the retry budget: dispatch it again.
				pending = append(pending, id)
			}
		}

		// Step 5: idle timeout.
		for i := range p.slots {
			s := &p.slots[i]
			if s.handle == nil || s.handle.Status() != supervisor.StatusRunning {
				continue
			}
			if s.handle.IdleFor() > p.idleTimeout {
				_ = s.handle.KillTimedOut()
				p.finishSlot(i, issues, baseBranch, true)
			}
		}

		// Step 6 happens inside finishSlot (updates issue status, releases locks).

		// Step 7: wake waiting workers whose blocked file cleared.
		for workerID, path := range p.waiting {
			holder, held := p.locks.HolderOf(path)
			iss := issues[p.slots[workerID].issueID]
			if held && (iss == nil || holder != iss.ID) {
				continue
			}
			if iss != nil && p.locks.TryAcquire(iss.ID, workerID, iss.Manifest) != nil {
				continue
			}
			delete(p.waiting, workerID)
			if iss == nil {
				continue
			}
			p.slots[workerID].resume = true
			if err := p.startWorker(ctx, workerID, iss, baseBranch); err != nil {
				p.logger.Error("resume worker failed", "issue", iss.ID, "error", err)
				p.locks.Release(iss.ID)
				iss.Status = issue.StatusFailed
				p.slots[workerID] = slot{}
				p.state.Workers[workerID] = orcstate.Worker{WorkerID: workerID, Status: orcstate.WorkerIdle}
			}
		}

		// Step 8: claim idle slots with unassigned issues.
		var stillPending []string
		for _, id := range pending {
			iss, ok := issues[id]
			if !ok || iss.Status == issue.StatusCompleted || iss.Status == issue.StatusFailed {
				continue
			}
			slotIdx := p.findIdleSlot()
			if slotIdx < 0 {
				stillPending = append(stillPending, id)
				continue
			}
			if err := p.locks.TryAcquire(iss.ID, slotIdx, iss.Manifest); err != nil {
				stillPending = append(stillPending, id)
				continue
			}
			if err := p.startWorker(ctx, slotIdx, iss, baseBranch); err != nil {
				p.logger.Error("start worker failed", "issue", iss.ID, "error", err)
				p.locks.Release(iss.ID)
				stillPending = append(stillPending, id)
				continue
			}
		}
		pending = stillPending

		if batchQuiescent(issues, b.IssueIDs) {
			return nil
		}

		// Step 9: sleep.
		select {
		case <-ctx.Done():
			p.killAll()
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *Pool) findIdleSlot() int {
	for i := range p.slots {
		if p.slots[i].handle == nil {
			if _, waiting := p.waiting[i]; waiting {
				continue
			}
			return i
		}
	}
	return -1
}

func (p *Pool) markWaiting(slotIdx int, path string) {
	s := &p.slots[slotIdx]
	_ = s.handle.Kill()
	p.locks.Release(s.issueID)
	p.waiting[slotIdx] = path
	p.state.Workers[slotIdx].Status = orcstate.WorkerWaiting
	p.state.Workers[slotIdx].BlockedOnFile = path
	s.handle = nil
}

func (p *Pool) startWorker(ctx context.Context, slotIdx int, iss *issue.Issue, baseBranch string) error {
	baseline, err := p.repo.ListDirty()
	if err != nil {
		return fmt.Errorf("compute baseline: %w", err)
	}

	// A resumed worker continues in the workspace it was stopped in.
	workspace := p.state.Workers[slotIdx].WorkspacePath
	if !p.slots[slotIdx].resume || workspace == "" {
		if workspace, err = p.repo.CreateIsolatedWorkspace(iss.ID, baseBranch); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
	}

	prompt := buildPrompt(iss, p.slots[slotIdx].resume)
	p.slots[slotIdx].resume = false

	args := append([]string(nil), p.cfg.AgentArgs...)
	if p.cfg.Model != "" {
		args = append(args, "--model", p.cfg.Model)
	}
	handle, err := p.super.Spawn(ctx, workspace, args, strings.NewReader(prompt))
	if err != nil {
		return fmt.Errorf("spawn agent: %w", err)
	}

	now := time.Now()
	p.slots[slotIdx] = slot{handle: handle, parser: streamparser.NewParser(), issueID: iss.ID}
	p.state.Workers[slotIdx] = orcstate.Worker{
		WorkerID:      slotIdx,
		Status:        orcstate.WorkerRunning,
		CurrentIssue:  iss.ID,
		PID:           handle.PID(),
		StartedAt:     &now,
		Heartbeat:     &now,
		WorkspacePath: workspace,
		Baseline:      baseline,
	}
	iss.Status = issue.StatusRunning
	return nil
}

// finishSlot retires a no-longer-running slot. timedOut distinguishes a
// worker killed for exceeding the idle timeout from one that exited (cleanly
// or not) on its own: a timeout never runs compliance or merge, records
// OutcomeTimeout, and always fails the issue so the breakdown/retry path
// picks it up fresh rather than committing whatever partial state the killed
// agent left behind.
func (p *Pool) finishSlot(slotIdx int, issues map[string]*issue.Issue, baseBranch string, timedOut bool) {
	s := &p.slots[slotIdx]
	w := &p.state.Workers[slotIdx]
	iss := issues[s.issueID]

	if timedOut {
		iss.RecordAttempt(issue.OutcomeTimeout, "agent exceeded idle timeout")
		iss.Status = issue.StatusFailed
		w.Status = orcstate.WorkerFailed
		p.locks.Release(iss.ID)
		*w = orcstate.Worker{WorkerID: slotIdx, Status: orcstate.WorkerIdle}
		*s = slot{}
		return
	}

	otherPrimaries := make(map[string][]string)
	for id, other := range issues {
		if other.Manifest != nil {
			otherPrimaries[id] = other.Manifest.Primary
		}
	}

	exitCode := s.handle.ExitCode()
	result, err := p.checker.Check(iss, w.WorkspacePath, w.Baseline, otherPrimaries, exitCode)
	if err != nil {
		p.logger.Error("compliance check failed", "issue", iss.ID, "error", err)
		iss.Status = issue.StatusFailed
		w.Status = orcstate.WorkerFailed
	} else if !result.Passed {
		_ = p.checker.Rollback(iss, w.WorkspacePath, result)
		if iss.RetryBudgetExceeded(p.retryBudget) {
			iss.Status = issue.StatusFailed
			w.Status = orcstate.WorkerFailed
		} else {
			iss.Status = issue.StatusReady
			w.Status = orcstate.WorkerFailed
			_ = p.repo.RemoveWorkspace(w.WorkspacePath)
		}
	} else if result.AgentFailed {
		iss.RecordAttempt(issue.OutcomeAgentFailure, fmt.Sprintf("agent exited with code %d", result.AgentExitCode))
		iss.Status = issue.StatusFailed
		w.Status = orcstate.WorkerFailed
	} else {
		if _, err := p.repo.StageAndCommit(w.WorkspacePath, fmt.Sprintf("complete %s", iss.ID)); err != nil {
			p.logger.Error("stage and commit failed", "issue", iss.ID, "error", err)
			iss.Status = issue.StatusFailed
			w.Status = orcstate.WorkerFailed
		} else if err := p.repo.MergeCommitIntoMain(p.repo.Git().BranchName(iss.ID), baseBranch); err != nil {
			p.logger.Warn("merge failed, leaving workspace for inspection", "issue", iss.ID, "error", err)
			iss.Status = issue.StatusFailed
			w.Status = orcstate.WorkerFailed
		} else {
			iss.RecordAttempt(issue.OutcomeSuccess, "merged")
			iss.Status = issue.StatusCompleted
			w.Status = orcstate.WorkerCompleted
			_ = p.repo.RemoveWorkspace(w.WorkspacePath)
		}
	}

	p.locks.Release(iss.ID)
	*w = orcstate.Worker{WorkerID: slotIdx, Status: orcstate.WorkerIdle}
	*s = slot{}
}

func (p *Pool) killAll() {
	for i := range p.slots {
		if p.slots[i].handle != nil {
			_ = p.slots[i].handle.Kill()
			p.locks.Release(p.slots[i].issueID)
			p.slots[i] = slot{}
		}
	}
}

func batchQuiescent(issues map[string]*issue.Issue, ids []string) bool {
	for _, id := range ids {
		iss, ok := issues[id]
		if !ok {
			continue
		}
		if iss.Status != issue.StatusCompleted && iss.Status != issue.StatusFailed {
			return false
		}
	}
	return true
}

func buildPrompt(iss *issue.Issue, resume bool) string {
	prompt := fmt.Sprintf("Issue %s: %s\n", iss.ID, iss.Title)
	if iss.Manifest != nil {
		prompt += fmt.Sprintf("You may write to: %v\n", iss.Manifest.Primary)
	}
	if resume {
		prompt += "You are resuming after a lock conflict. Inspect the working copy before starting fresh.\n"
	}
	return prompt
}
