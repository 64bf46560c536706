package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/orc/internal/issue"
)

// manifestLineRE matches a MANIFEST comment line attached to an issue, e.g.
// "MANIFEST: primary=[a.go,b.go] read=[c.go] forbidden=[d.go]".
var manifestLineRE = regexp.MustCompile(`(?m)^MANIFEST:\s*(.*)$`)

// setFieldRE matches one `name=[a,b,c]` field inside a MANIFEST line.
var setFieldRE = regexp.MustCompile(`(\w+)=\[([^\]]*)\]`)

// ParseManifest extracts primary/read/forbidden path lists from the most
// recent MANIFEST: line in a block of reviewer-agent comment text. A
// manifest without a primary set is rejected.
func ParseManifest(comments string) (*issue.Manifest, error) {
	matches := manifestLineRE.FindAllStringSubmatch(comments, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no MANIFEST: line found")
	}
	// Most recent wins: a later planning pass supersedes an earlier one.
	line := matches[len(matches)-1][1]

	fields := map[string][]string{}
	for _, f := range setFieldRE.FindAllStringSubmatch(line, -1) {
		name := strings.ToLower(f[1])
		fields[name] = splitPaths(f[2])
	}

	primary, ok := fields["primary"]
	if !ok || len(primary) == 0 {
		return nil, fmt.Errorf("manifest missing required primary set")
	}

	return &issue.Manifest{
		Primary:   primary,
		Read:      fields["read"],
		Forbidden: fields["forbidden"],
	}, nil
}

func splitPaths(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parallelBatchRE matches a PARALLEL_BATCH block: "PARALLEL_BATCH: [id1,id2]".
var parallelBatchRE = regexp.MustCompile(`(?m)^PARALLEL_BATCH:\s*\[([^\]]*)\]`)

// ParseParallelBatches extracts the ordered groups of issue IDs the planner
// proposed batching together. Each match is one group, in document order.
func ParseParallelBatches(response string) [][]string {
	matches := parallelBatchRE.FindAllStringSubmatch(response, -1)
	groups := make([][]string, 0, len(matches))
	for _, m := range matches {
		ids := splitPaths(m[1])
		if len(ids) > 0 {
			groups = append(groups, ids)
		}
	}
	return groups
}

// ValidateDependencies checks that an issue's declared dependencies all
// exist among the known set and that the dependency graph has no cycles.
// Issue IDs carry no inherent ordering (unlike a position-indexed task
// breakdown), so forward-reference checking is folded into cycle detection.
func ValidateDependencies(issues []*issue.Issue) error {
	known := make(map[string]bool, len(issues))
	for _, iss := range issues {
		known[iss.ID] = true
	}
	for _, iss := range issues {
		for _, dep := range iss.DependsOn {
			if !known[dep] {
				return fmt.Errorf("issue %s depends on unknown issue %s", iss.ID, dep)
			}
		}
	}
	return detectCycles(issues)
}

// detectCycles walks the dependency graph depth-first, tracking visited and
// in-progress nodes.
func detectCycles(issues []*issue.Issue) error {
	deps := make(map[string][]string, len(issues))
	for _, iss := range issues {
		deps[iss.ID] = iss.DependsOn
	}

	visited := make(map[string]bool)
	inProgress := make(map[string]bool)

	var dfs func(id string, path []string) error
	dfs = func(id string, path []string) error {
		if inProgress[id] {
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]string{}, path[cycleStart:]...), id)
			return fmt.Errorf("circular dependency detected: %v", cycle)
		}
		if visited[id] {
			return nil
		}

		inProgress[id] = true
		path = append(path, id)
		for _, dep := range deps[id] {
			if err := dfs(dep, path); err != nil {
				return err
			}
		}
		inProgress[id] = false
		visited[id] = true
		return nil
	}

	for _, iss := range issues {
		if !visited[iss.ID] {
			if err := dfs(iss.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractJSON finds a JSON object in freeform agent text, preferring a
// ```json fenced block, falling back to a generic fence, falling back to a
// brace-depth scan over the raw text. Used for any auxiliary structured
// planner output alongside the MANIFEST:/PARALLEL_BATCH: line protocol.
func extractJSON(content string) string {
	if start := strings.Index(content, "```json"); start != -1 {
		start += 7
		if end := strings.Index(content[start:], "```"); end != -1 {
			return strings.TrimSpace(content[start : start+end])
		}
	}

	if start := strings.Index(content, "```"); start != -1 {
		start += 3
		if newline := strings.Index(content[start:], "\n"); newline != -1 {
			start += newline + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(content[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	if start := strings.Index(content, "{"); start != -1 {
		depth := 0
		for i := start; i < len(content); i++ {
			switch content[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}

	return ""
}
