// Package batch implements BatchBuilder: deterministic greedy grouping of
// ready issues into conflict-free parallel batches.
package batch

import (
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/orcstate"
)

// Build groups ready issues (in backlog order) into batches whose primary
// write-path sets are pairwise disjoint. A batch is not capped at the
// configured worker count: it may hold more issues than there are worker
// slots, with the surplus simply waiting its turn within that same batch as
// slots free up (the dispatcher's fixed-size worker pool is what throttles
// concurrency, not BatchBuilder). Dependency ordering is supplied implicitly:
// a ready issue by construction has no open dependencies, so any two ready
// issues are already mutually unblocked at planning time.
func Build(ready []*issue.Issue, maxWorkers int) []orcstate.Batch {
	var batches []orcstate.Batch
	remaining := append([]*issue.Issue(nil), ready...)

	batchNum := 0
	for len(remaining) > 0 {
		var current []*issue.Issue
		usedPaths := make(map[string]bool)
		var leftover []*issue.Issue

		for _, iss := range remaining {
			if iss.Manifest == nil || conflicts(iss.Manifest.Primary, usedPaths) {
				leftover = append(leftover, iss)
				continue
			}
			current = append(current, iss)
			for _, p := range iss.Manifest.Primary {
				usedPaths[p] = true
			}
		}

		if len(current) == 0 {
			// Each round starts with no paths in use, so the first issue with
			// a manifest is always placed; an empty round means no remaining
			// issue has a manifest. Stop rather than loop forever.
			break
		}

		ids := make([]string, len(current))
		for i, iss := range current {
			ids[i] = iss.ID
		}
		batches = append(batches, orcstate.Batch{
			ID:       batchID(batchNum),
			IssueIDs: ids,
			Status:   orcstate.BatchPending,
		})
		batchNum++
		remaining = leftover
	}

	return batches
}

func conflicts(primary []string, used map[string]bool) bool {
	for _, p := range primary {
		if used[p] {
			return true
		}
	}
	return false
}

func batchID(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if n < 26 {
		return "batch-" + string(letters[n])
	}
	return "batch-" + string(rune('a'+n/26)) + string(letters[n%26])
}
