package planner

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/randalmurphal/orc/internal/issue"
)

// Options configures the planner.
type Options struct {
	// SpecDir is the directory containing spec files (default: .spec/)
	SpecDir string

	// Include patterns for spec files (default: *.md)
	Include []string

	// WorkDir is the project directory
	WorkDir string

	// AgentCommand is the reviewer-agent CLI binary to invoke
	AgentCommand string

	// Model is the agent model to use
	Model string

	// DryRun shows the prompt without running the agent
	DryRun bool

	// BackoffInitial/BackoffMax/BackoffRetries govern the reviewer-agent
	// retry schedule on non-zero exit.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffRetries int
}

// Result is the outcome of one planning pass: manifests assigned to ready
// issues and the reviewer's proposed parallel-batch groupings.
type Result struct {
	Manifests       map[string]*issue.Manifest
	ParallelBatches [][]string
	Summary         string
}

// Planner invokes the reviewer agent over the current backlog and parses
// its response into per-issue manifests and proposed parallel batches. It
// never modifies code; it only mutates the tracker (the caller persists
// Result back onto Issue.Manifest and onto any tracker comments).
type Planner struct {
	opts   Options
	loader *SpecLoader
}

// New creates a new planner.
func New(opts Options) *Planner {
	if opts.SpecDir == "" {
		opts.SpecDir = ".spec"
	}
	if opts.Model == "" {
		opts.Model = "sonnet"
	}
	if opts.AgentCommand == "" {
		opts.AgentCommand = "claude"
	}
	if opts.BackoffInitial == 0 {
		opts.BackoffInitial = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 4 * time.Second
	}
	if opts.BackoffRetries == 0 {
		opts.BackoffRetries = 3
	}

	return &Planner{
		opts:   opts,
		loader: NewSpecLoader(opts.SpecDir, opts.Include),
	}
}

// LoadSpecs loads specification files.
func (p *Planner) LoadSpecs() ([]*SpecFile, error) {
	return p.loader.Load()
}

// GeneratePrompt generates the planning prompt for the given ready backlog.
func (p *Planner) GeneratePrompt(files []*SpecFile, ready []*issue.Issue) (string, error) {
	data := &PromptData{
		ProjectName: ProjectNameFromPath(p.opts.WorkDir),
		ProjectPath: p.opts.WorkDir,
		Backlog:     describeBacklog(ready),
	}
	return GeneratePrompt(files, data)
}

func describeBacklog(ready []*issue.Issue) string {
	if len(ready) == 0 {
		return "(backlog is empty)"
	}
	var out string
	for _, iss := range ready {
		out += fmt.Sprintf("- %s: %s\n", iss.ID, iss.Title)
	}
	return out
}

// exitCode extracts the process exit code from an exec error, or -1 if it
// isn't an *exec.ExitError.
func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// RunAgent runs the reviewer agent with the planning prompt, retrying on
// non-zero exit with exponential backoff. Exit codes 124 (timeout) and 125
// (cannot invoke) are never retried since a retry cannot help either case.
func (p *Planner) RunAgent(ctx context.Context, prompt string) (string, error) {
	args := []string{
		"--print",
		"-p", prompt,
		"--model", p.opts.Model,
		"--dangerously-skip-permissions",
	}

	backoff := p.opts.BackoffInitial
	var lastErr error
	for attempt := 0; attempt < p.opts.BackoffRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > p.opts.BackoffMax {
				backoff = p.opts.BackoffMax
			}
		}

		cmd := exec.CommandContext(ctx, p.opts.AgentCommand, args...)
		output, err := cmd.CombinedOutput()
		if err == nil {
			return string(output), nil
		}

		lastErr = fmt.Errorf("reviewer agent failed: %w\noutput: %s", err, string(output))
		if code := exitCode(err); code == 124 || code == 125 {
			return "", lastErr
		}
	}

	return "", lastErr
}

// issueSectionRE splits a reviewer response into per-issue sections headed
// by "### <issue-id>".
var issueSectionRE = regexp.MustCompile(`(?m)^###\s+(\S+)\s*$`)

// ParseResponse parses the reviewer's response into manifests (one per
// ready issue, read back from its "### <id>" section) and PARALLEL_BATCH
// groups, validating that every proposed batch only references known ready
// issues.
func (p *Planner) ParseResponse(response string, ready []*issue.Issue) (*Result, error) {
	locs := issueSectionRE.FindAllStringSubmatchIndex(response, -1)
	manifests := make(map[string]*issue.Manifest)

	for i, loc := range locs {
		id := response[loc[2]:loc[3]]
		end := len(response)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := response[loc[1]:end]

		m, err := ParseManifest(section)
		if err != nil {
			continue // issue not yet ready to manifest this pass
		}
		manifests[id] = m
	}

	readyByID := make(map[string]*issue.Issue, len(ready))
	for _, iss := range ready {
		readyByID[iss.ID] = iss
		iss.Manifest = manifests[iss.ID]
	}

	batches := ParseParallelBatches(response)
	for _, group := range batches {
		for _, id := range group {
			if _, ok := readyByID[id]; !ok {
				return nil, fmt.Errorf("PARALLEL_BATCH references unknown or not-ready issue %s", id)
			}
		}
	}

	if err := ValidateDependencies(ready); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	return &Result{Manifests: manifests, ParallelBatches: batches}, nil
}
