// Package manifest implements the per-issue file-access policy and the
// global exclusive-write lock table used to keep concurrent workers
// write-disjoint.
package manifest

import (
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/orc/internal/issue"
)

// Manifest is an alias of issue.Manifest so callers can depend on either
// package without duplicating the type.
type Manifest = issue.Manifest

// AllowsWrite reports whether path matches one of the manifest's primary
// (writable) glob patterns.
func AllowsWrite(m *Manifest, path string) bool {
	return matchesAny(m.Primary, path)
}

// IsForbidden reports whether path matches one of the manifest's forbidden
// glob patterns.
func IsForbidden(m *Manifest, path string) bool {
	return matchesAny(m.Forbidden, path)
}

// IsReadable reports whether path matches the read set, primary set, or is
// simply not forbidden (read defaults to "anything not forbidden" when the
// read list is empty).
func IsReadable(m *Manifest, path string) bool {
	if IsForbidden(m, path) {
		return false
	}
	if len(m.Read) == 0 {
		return true
	}
	return matchesAny(m.Read, path) || AllowsWrite(m, path)
}

func matchesAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
		// Also accept an exact string match of pattern and path. Patterns
		// ending in "/" get no prefix match.
		if pat == path {
			return true
		}
	}
	return false
}

// LockEntry records who holds an exclusive write lock on a path.
type LockEntry struct {
	IssueID    string
	WorkerID   int
	AcquiredAt time.Time
}

// ConflictError is returned by TryAcquire when a path is already held by a
// different issue. All-or-nothing: no partial lock acquisition ever occurs.
type ConflictError struct {
	File       string
	HolderIssue string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("path %q already locked by issue %s", e.File, e.HolderIssue)
}

// LockTable tracks exclusive write ownership of file paths across the
// primary sets of currently-dispatched issues. Locks cover only primary
// (writable) files — read/forbidden paths are never locked.
type LockTable struct {
	mu      sync.Mutex
	entries map[string]LockEntry // path -> entry
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{entries: make(map[string]LockEntry)}
}

// TryAcquire attempts to record exclusive ownership of every path in
// manifest.Primary for issueID/workerID. If any path is already held by a
// different issue, nothing is acquired and a *ConflictError is returned.
func (lt *LockTable) TryAcquire(issueID string, workerID int, m *Manifest) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, p := range m.Primary {
		if existing, ok := lt.entries[p]; ok && existing.IssueID != issueID {
			return &ConflictError{File: p, HolderIssue: existing.IssueID}
		}
	}

	now := time.Now()
	for _, p := range m.Primary {
		lt.entries[p] = LockEntry{IssueID: issueID, WorkerID: workerID, AcquiredAt: now}
	}
	return nil
}

// Release removes every entry owned by issueID.
func (lt *LockTable) Release(issueID string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for p, e := range lt.entries {
		if e.IssueID == issueID {
			delete(lt.entries, p)
		}
	}
}

// HolderOf returns the issue ID holding path, and whether any issue holds it.
func (lt *LockTable) HolderOf(path string) (string, bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	e, ok := lt.entries[path]
	return e.IssueID, ok
}

// Snapshot returns a copy of the current lock entries, keyed by path. Used by
// tests and status reporting; never mutated by callers.
func (lt *LockTable) Snapshot() map[string]LockEntry {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	out := make(map[string]LockEntry, len(lt.entries))
	for k, v := range lt.entries {
		out[k] = v
	}
	return out
}
