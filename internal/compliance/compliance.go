// Package compliance implements ComplianceChecker: computing the
// agent-attributable diff for a finished worker and enforcing manifest
// boundaries against it.
package compliance

import (
	"fmt"

	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/manifest"
	"github.com/randalmurphal/orc/internal/repoops"
)

// Violation describes one file that fell outside the issue's manifest.
type Violation struct {
	Path   string
	Reason string // "forbidden" or "not_in_primary"
}

// Result is the outcome of checking one worker's completed attempt.
type Result struct {
	TouchedFiles []string
	Violations   []Violation
	// Passed is true when no manifest violations were found, independent of
	// the agent's own exit status.
	Passed bool

	// AgentExitCode is the exit code the caller observed from the agent
	// process. AgentFailed is AgentExitCode != 0.
	AgentExitCode int
	AgentFailed   bool
}

// Checker computes attribution and enforces manifest policy.
type Checker struct {
	repo *repoops.RepoOps
}

// New creates a Checker backed by repo.
func New(repo *repoops.RepoOps) *Checker {
	return &Checker{repo: repo}
}

// AttributeChanges computes files attributable to the agent: the current
// dirty set in the workspace, minus the pre-attempt baseline, minus any
// path currently claimed as primary by a different, still-tracked issue.
func AttributeChanges(current, baseline []string, otherPrimaries map[string][]string, ownIssueID string) []string {
	baselineSet := toSet(baseline)
	otherPrimarySet := make(map[string]bool)
	for id, paths := range otherPrimaries {
		if id == ownIssueID {
			continue
		}
		for _, p := range paths {
			otherPrimarySet[p] = true
		}
	}

	var attributed []string
	for _, p := range current {
		if baselineSet[p] {
			continue
		}
		if otherPrimarySet[p] {
			continue
		}
		attributed = append(attributed, p)
	}
	return attributed
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}

// Check computes the agent-attributable diff for workspacePath and
// classifies every touched path against iss.Manifest. If any path is
// forbidden or outside primary, the result fails regardless of the agent's
// own exit status (agentExitCode). If no path violates the manifest but
// agentExitCode is non-zero, the result still carries AgentFailed so the
// caller marks the issue Failed instead of Completed.
func (c *Checker) Check(iss *issue.Issue, workspacePath string, baseline []string, otherPrimaries map[string][]string, agentExitCode int) (*Result, error) {
	if iss.Manifest == nil {
		return nil, fmt.Errorf("issue %s has no manifest assigned", iss.ID)
	}

	current, err := c.repo.WorkspaceDiff(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("compute workspace diff: %w", err)
	}

	attributed := AttributeChanges(current, baseline, otherPrimaries, iss.ID)

	result := &Result{
		TouchedFiles:  attributed,
		AgentExitCode: agentExitCode,
		AgentFailed:   agentExitCode != 0,
	}
	for _, p := range attributed {
		switch {
		case manifest.IsForbidden(iss.Manifest, p):
			result.Violations = append(result.Violations, Violation{Path: p, Reason: "forbidden"})
		case !manifest.AllowsWrite(iss.Manifest, p):
			result.Violations = append(result.Violations, Violation{Path: p, Reason: "not_in_primary"})
		}
	}
	result.Passed = len(result.Violations) == 0

	return result, nil
}

// Rollback undoes every violating path in the workspace, preserving the
// rest of the agent's legitimate changes, and records a ManifestViolation
// attempt on the issue.
func (c *Checker) Rollback(iss *issue.Issue, workspacePath string, result *Result) error {
	for _, v := range result.Violations {
		if err := c.repo.RollbackFile(workspacePath, v.Path); err != nil {
			return fmt.Errorf("rollback %s: %w", v.Path, err)
		}
	}

	notes := fmt.Sprintf("%d file(s) violated manifest", len(result.Violations))
	iss.RecordAttempt(issue.OutcomeManifestViolation, notes)
	return nil
}

// StricterPrompt builds a prompt fragment reinforcing the manifest after a
// violation, to prepend to the retry attempt.
func StricterPrompt(result *Result) string {
	msg := "Your previous attempt modified files outside your assigned manifest:\n"
	for _, v := range result.Violations {
		msg += fmt.Sprintf("- %s (%s)\n", v.Path, v.Reason)
	}
	msg += "You must only write to files in your primary set. Do not touch any other file.\n"
	return msg
}
