package planner

import (
	"testing"

	"github.com/randalmurphal/orc/internal/issue"
)

func TestParseManifest_Valid(t *testing.T) {
	comments := `MANIFEST: primary=[internal/auth/user.go] read=[internal/db/db.go] forbidden=[go.mod]`

	m, err := ParseManifest(comments)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(m.Primary) != 1 || m.Primary[0] != "internal/auth/user.go" {
		t.Errorf("Primary = %v", m.Primary)
	}
	if len(m.Read) != 1 || m.Read[0] != "internal/db/db.go" {
		t.Errorf("Read = %v", m.Read)
	}
	if len(m.Forbidden) != 1 || m.Forbidden[0] != "go.mod" {
		t.Errorf("Forbidden = %v", m.Forbidden)
	}
}

func TestParseManifest_MostRecentWins(t *testing.T) {
	comments := `MANIFEST: primary=[a.go]
some other comment
MANIFEST: primary=[b.go,c.go]`

	m, err := ParseManifest(comments)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(m.Primary) != 2 || m.Primary[0] != "b.go" || m.Primary[1] != "c.go" {
		t.Errorf("Primary = %v, want [b.go c.go]", m.Primary)
	}
}

func TestParseManifest_MissingPrimary(t *testing.T) {
	comments := `MANIFEST: read=[a.go] forbidden=[b.go]`

	if _, err := ParseManifest(comments); err == nil {
		t.Error("expected error for manifest without primary")
	}
}

func TestParseManifest_NoManifestLine(t *testing.T) {
	if _, err := ParseManifest("just some notes, no manifest here"); err == nil {
		t.Error("expected error when no MANIFEST: line present")
	}
}

func TestParseParallelBatches(t *testing.T) {
	response := `### issue-a
MANIFEST: primary=[a.go]

### issue-b
MANIFEST: primary=[b.go]

PARALLEL_BATCH: [issue-a,issue-b]
PARALLEL_BATCH: [issue-c]
`

	groups := ParseParallelBatches(response)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != "issue-a" || groups[0][1] != "issue-b" {
		t.Errorf("group 0 = %v", groups[0])
	}
	if len(groups[1]) != 1 || groups[1][0] != "issue-c" {
		t.Errorf("group 1 = %v", groups[1])
	}
}

func TestParseParallelBatches_None(t *testing.T) {
	groups := ParseParallelBatches("no batches proposed here")
	if len(groups) != 0 {
		t.Errorf("expected 0 groups, got %d", len(groups))
	}
}

func TestValidateDependencies_Valid(t *testing.T) {
	issues := []*issue.Issue{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a", "b"}},
	}

	if err := ValidateDependencies(issues); err != nil {
		t.Errorf("ValidateDependencies should pass: %v", err)
	}
}

func TestValidateDependencies_Unknown(t *testing.T) {
	issues := []*issue.Issue{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"does-not-exist"}},
	}

	if err := ValidateDependencies(issues); err == nil {
		t.Error("ValidateDependencies should fail for unknown dependency")
	}
}

func TestValidateDependencies_Circular(t *testing.T) {
	issues := []*issue.Issue{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}

	if err := ValidateDependencies(issues); err == nil {
		t.Error("ValidateDependencies should fail for circular dependency")
	}
}

func TestExtractJSON_FencedJSON(t *testing.T) {
	content := "some text\n```json\n{\"summary\":\"ok\"}\n```\nmore text"
	got := extractJSON(content)
	if got != `{"summary":"ok"}` {
		t.Errorf("extractJSON = %q", got)
	}
}

func TestExtractJSON_RawObject(t *testing.T) {
	content := `prefix {"a": {"b": 1}} suffix`
	got := extractJSON(content)
	if got != `{"a": {"b": 1}}` {
		t.Errorf("extractJSON = %q", got)
	}
}

func TestExtractJSON_None(t *testing.T) {
	if got := extractJSON("no json here"); got != "" {
		t.Errorf("extractJSON = %q, want empty", got)
	}
}
