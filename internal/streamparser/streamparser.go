// Package streamparser turns newline-delimited JSON lines from an agent
// child process into a lazy sequence of typed events: text deltas, tool
// calls, tool results, usage, and error lines, plus detection of the
// BLOCKED_BY_FILE sentinel an agent may emit in its textual content.
package streamparser

import (
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// EventType distinguishes the kind of parsed stream event.
type EventType string

const (
	EventText       EventType = "text"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventUsage      EventType = "usage"
	EventError      EventType = "error"
	// EventRawLine is emitted for a line that failed to parse as JSON, so
	// the caller can log-and-continue instead of crashing the worker loop.
	EventRawLine EventType = "raw_line"
)

// Event is a single parsed line from the agent's stdout stream.
type Event struct {
	Type EventType

	// Text holds the delta content for EventText.
	Text string

	// ToolName/ToolInput describe an EventToolUse.
	ToolName  string
	ToolInput string

	// ToolResult holds the content for EventToolResult.
	ToolResult string

	// Usage fields, populated for EventUsage (zero value means absent).
	InputTokens  int
	OutputTokens int
	CostUSD      float64

	// ErrorMessage is set for EventError.
	ErrorMessage string

	// RawLine holds the original line for EventRawLine (and is also kept on
	// every event for transcript logging).
	RawLine string

	// BlockedOnFile is set when the sentinel is detected anywhere in the
	// raw line, as plain output or embedded in a JSON string (see
	// DetectSentinel).
	BlockedOnFile string
}

const sentinelLiteral = "BLOCKED_BY_FILE:"

// sentinelStopChars are the characters that terminate a candidate path once
// scanning past the sentinel literal: a newline ends plain-text output, a
// quote or backslash ends a JSON string value the sentinel was embedded in.
const sentinelStopChars = "\n\"\\"

// sentinelBannedChars are JSON-syntax characters that can never appear in a
// real file path; their presence marks the candidate as unparsed JSON
// structure rather than a path (e.g. "{json}") and rejects it.
const sentinelBannedChars = "{}[]:,\"\\<>"

const (
	sentinelMinLen = 1
	sentinelMaxLen = 512
)

// DetectSentinel scans line (a raw line of agent output, JSON or plain
// text) for the literal BLOCKED_BY_FILE: marker, which may appear either as
// plain output or embedded inside a JSON string value. It extracts the
// candidate path by stopping at the first newline, quote, or backslash
// after the marker, then validates the candidate: length 1-512, no
// JSON-syntax characters, and either contains a '/' or a dot-extension, and
// contains at least one alphanumeric character. This rejects placeholder
// text like "<path/to/file>" or an embedded JSON blob so the orchestrator
// doesn't chase a non-existent path.
func DetectSentinel(line string) (path string, ok bool) {
	idx := strings.Index(line, sentinelLiteral)
	if idx == -1 {
		return "", false
	}
	rest := strings.TrimLeft(line[idx+len(sentinelLiteral):], " ")

	end := strings.IndexAny(rest, sentinelStopChars)
	if end == -1 {
		end = len(rest)
	}
	candidate := rest[:end]

	if !validSentinelCandidate(candidate) {
		return "", false
	}
	return candidate, true
}

func validSentinelCandidate(s string) bool {
	if len(s) < sentinelMinLen || len(s) > sentinelMaxLen {
		return false
	}
	if strings.ContainsAny(s, sentinelBannedChars) {
		return false
	}
	if !strings.Contains(s, "/") && !hasDotExtension(s) {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) != -1
}

// hasDotExtension reports whether s contains a '.' followed by at least one
// more character, e.g. "foo.ext" or "a/b.go" (but not a bare trailing dot).
func hasDotExtension(s string) bool {
	i := strings.LastIndex(s, ".")
	return i != -1 && i < len(s)-1
}

// Parse parses a single NDJSON line from the agent. A malformed line is not
// fatal: it is returned as an EventRawLine so the caller can log-and-continue,
// matching the "never crash the worker loop on a parse failure" posture.
// Every returned event is scanned for an embedded BLOCKED_BY_FILE sentinel
// against the raw line, since the sentinel may appear as plain output (a
// malformed/raw line) or embedded inside a JSON string value.
func Parse(line string) Event {
	ev := parse(line)
	if path, ok := DetectSentinel(line); ok {
		ev.BlockedOnFile = path
	}
	return ev
}

func parse(line string) Event {
	if !gjson.Valid(line) {
		return Event{Type: EventRawLine, RawLine: line}
	}

	result := gjson.Parse(line)
	typ := result.Get("type").String()

	switch typ {
	case "text", "text_delta", "message_delta":
		text := result.Get("text").String()
		if text == "" {
			text = result.Get("delta.text").String()
		}
		return Event{Type: EventText, Text: text, RawLine: line}

	case "tool_use":
		return Event{
			Type:      EventToolUse,
			ToolName:  result.Get("name").String(),
			ToolInput: result.Get("input").Raw,
			RawLine:   line,
		}

	case "tool_result":
		return Event{
			Type:       EventToolResult,
			ToolResult: result.Get("content").String(),
			RawLine:    line,
		}

	case "usage":
		return Event{
			Type:         EventUsage,
			InputTokens:  int(result.Get("input_tokens").Int()),
			OutputTokens: int(result.Get("output_tokens").Int()),
			CostUSD:      result.Get("cost_usd").Float(),
			RawLine:      line,
		}

	case "error":
		return Event{
			Type:         EventError,
			ErrorMessage: result.Get("message").String(),
			RawLine:      line,
		}

	default:
		return Event{Type: EventRawLine, RawLine: line}
	}
}

// Parser accumulates events from a stream of lines, exposing the last
// detected BLOCKED_BY_FILE sentinel for the dispatcher to poll.
type Parser struct {
	events []Event
}

// NewParser creates an empty stream parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed parses line and records the resulting event, returning it.
func (p *Parser) Feed(line string) Event {
	ev := Parse(line)
	p.events = append(p.events, ev)
	return ev
}

// Events returns all events parsed so far.
func (p *Parser) Events() []Event {
	return p.events
}

// LastSentinel returns the most recently observed BLOCKED_BY_FILE path, if
// any event recorded one.
func (p *Parser) LastSentinel() (string, bool) {
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].BlockedOnFile != "" {
			return p.events[i].BlockedOnFile, true
		}
	}
	return "", false
}

// ClearSentinel removes the sentinel marker from the last event that carried
// one, used after the dispatcher decides the blocking file is not actually
// contended and lets the worker continue.
func (p *Parser) ClearSentinel() {
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].BlockedOnFile != "" {
			p.events[i].BlockedOnFile = ""
			return
		}
	}
}

// TotalUsage sums token usage across all recorded usage events.
func (p *Parser) TotalUsage() (inputTokens, outputTokens int, costUSD float64) {
	for _, ev := range p.events {
		if ev.Type == EventUsage {
			inputTokens += ev.InputTokens
			outputTokens += ev.OutputTokens
			costUSD += ev.CostUSD
		}
	}
	return
}
