package streamparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSentinel_MatchesPlainLine(t *testing.T) {
	path, ok := DetectSentinel("BLOCKED_BY_FILE: internal/foo/bar.go")
	assert.True(t, ok)
	assert.Equal(t, "internal/foo/bar.go", path)
}

func TestDetectSentinel_ExtractsMidLine(t *testing.T) {
	path, ok := DetectSentinel(`"...BLOCKED_BY_FILE: foo/bar.ext"`)
	assert.True(t, ok)
	assert.Equal(t, "foo/bar.ext", path)
}

func TestDetectSentinel_RejectsEmptyPath(t *testing.T) {
	_, ok := DetectSentinel("BLOCKED_BY_FILE: ")
	assert.False(t, ok)
}

func TestDetectSentinel_RejectsPlaceholderAngleBrackets(t *testing.T) {
	_, ok := DetectSentinel("BLOCKED_BY_FILE: <path>")
	assert.False(t, ok)
}

func TestDetectSentinel_RejectsEmbeddedJSONBlob(t *testing.T) {
	_, ok := DetectSentinel(`BLOCKED_BY_FILE: {json}`)
	assert.False(t, ok)
}

func TestDetectSentinel_RejectsNoSlashOrExtension(t *testing.T) {
	_, ok := DetectSentinel("BLOCKED_BY_FILE: somefile")
	assert.False(t, ok)
}

func TestDetectSentinel_RejectsNoAlphanumeric(t *testing.T) {
	_, ok := DetectSentinel("BLOCKED_BY_FILE: ///...")
	assert.False(t, ok)
}

func TestDetectSentinel_RejectsOverlongCandidate(t *testing.T) {
	_, ok := DetectSentinel("BLOCKED_BY_FILE: " + strings.Repeat("a", 513) + "/b.go")
	assert.False(t, ok)
}

func TestDetectSentinel_AcceptsDotExtensionWithoutSlash(t *testing.T) {
	path, ok := DetectSentinel("BLOCKED_BY_FILE: bar.go")
	assert.True(t, ok)
	assert.Equal(t, "bar.go", path)
}

func TestDetectSentinel_StopsAtBackslash(t *testing.T) {
	path, ok := DetectSentinel(`BLOCKED_BY_FILE: foo/bar.go\nsuffix`)
	assert.True(t, ok)
	assert.Equal(t, "foo/bar.go", path)
}

func TestDetectSentinel_RejectsNonMatchingLine(t *testing.T) {
	_, ok := DetectSentinel("I am waiting on a file")
	assert.False(t, ok)
}

func TestParse_MalformedLineBecomesRawLine(t *testing.T) {
	ev := Parse("not json at all")
	assert.Equal(t, EventRawLine, ev.Type)
	assert.Equal(t, "not json at all", ev.RawLine)
}

func TestParse_TextEventDetectsSentinel(t *testing.T) {
	ev := Parse(`{"type":"text","text":"BLOCKED_BY_FILE: internal/foo.go"}`)
	assert.Equal(t, EventText, ev.Type)
	assert.Equal(t, "internal/foo.go", ev.BlockedOnFile)
}

func TestParse_ToolUse(t *testing.T) {
	ev := Parse(`{"type":"tool_use","name":"Edit","input":{"path":"a.go"}}`)
	assert.Equal(t, EventToolUse, ev.Type)
	assert.Equal(t, "Edit", ev.ToolName)
	assert.JSONEq(t, `{"path":"a.go"}`, ev.ToolInput)
}

func TestParse_Usage(t *testing.T) {
	ev := Parse(`{"type":"usage","input_tokens":100,"output_tokens":50,"cost_usd":0.02}`)
	assert.Equal(t, EventUsage, ev.Type)
	assert.Equal(t, 100, ev.InputTokens)
	assert.Equal(t, 50, ev.OutputTokens)
	assert.Equal(t, 0.02, ev.CostUSD)
}

func TestParse_Error(t *testing.T) {
	ev := Parse(`{"type":"error","message":"agent crashed"}`)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "agent crashed", ev.ErrorMessage)
}

func TestParse_UnknownTypeBecomesRawLine(t *testing.T) {
	ev := Parse(`{"type":"something_else"}`)
	assert.Equal(t, EventRawLine, ev.Type)
}

func TestParser_FeedAccumulatesEvents(t *testing.T) {
	p := NewParser()
	p.Feed(`{"type":"text","text":"hello"}`)
	p.Feed(`{"type":"usage","input_tokens":10,"output_tokens":5,"cost_usd":0.01}`)

	assert.Len(t, p.Events(), 2)
}

func TestParser_LastSentinel_FindsMostRecent(t *testing.T) {
	p := NewParser()
	p.Feed(`{"type":"text","text":"BLOCKED_BY_FILE: a.go"}`)
	p.Feed(`{"type":"text","text":"just some text"}`)
	p.Feed(`{"type":"text","text":"BLOCKED_BY_FILE: b.go"}`)

	path, ok := p.LastSentinel()
	assert.True(t, ok)
	assert.Equal(t, "b.go", path)
}

func TestParser_ClearSentinel_RemovesMostRecentOnly(t *testing.T) {
	p := NewParser()
	p.Feed(`{"type":"text","text":"BLOCKED_BY_FILE: a.go"}`)
	p.Feed(`{"type":"text","text":"BLOCKED_BY_FILE: b.go"}`)

	p.ClearSentinel()

	path, ok := p.LastSentinel()
	assert.True(t, ok)
	assert.Equal(t, "a.go", path)
}

func TestParser_TotalUsage_SumsAcrossEvents(t *testing.T) {
	p := NewParser()
	p.Feed(`{"type":"usage","input_tokens":10,"output_tokens":5,"cost_usd":0.01}`)
	p.Feed(`{"type":"usage","input_tokens":20,"output_tokens":15,"cost_usd":0.02}`)

	in, out, cost := p.TotalUsage()
	assert.Equal(t, 30, in)
	assert.Equal(t, 20, out)
	assert.InDelta(t, 0.03, cost, 0.0001)
}
