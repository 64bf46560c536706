// Package orcstate owns the orchestrator's persisted run state: worker
// slots, batches, and the issues under management. It is the single
// mutable source of truth the dispatcher borrows for the run's duration.
package orcstate

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/util"
)

// SchemaVersion is bumped whenever the on-disk shape of State changes in a
// way that isn't backward compatible. A mismatch on load is a hard error:
// state.json is a crash-recovery artifact, not a long-lived database, so a
// silent migration would risk losing in-flight dispatch bookkeeping.
const SchemaVersion = 1

// OrphanThreshold is how stale a worker's heartbeat may get before it is
// considered orphaned on crash recovery.
const OrphanThreshold = 5 * time.Minute

// WorkerStatus is the lifecycle status of a worker slot.
type WorkerStatus string

const (
	WorkerIdle      WorkerStatus = "idle"
	WorkerRunning   WorkerStatus = "running"
	WorkerWaiting   WorkerStatus = "waiting"
	WorkerCompleted WorkerStatus = "completed"
	WorkerFailed    WorkerStatus = "failed"
	WorkerTimeout   WorkerStatus = "timeout"
)

// Worker is one of the fixed N worker slots (N <= 8).
type Worker struct {
	WorkerID      int          `json:"worker_id"`
	Status        WorkerStatus `json:"status"`
	CurrentIssue  string       `json:"current_issue,omitempty"`
	PID           int          `json:"pid,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	Heartbeat     *time.Time   `json:"heartbeat,omitempty"`
	BlockedOnFile string       `json:"blocked_on_file,omitempty"`
	WorkspacePath string       `json:"workspace_path,omitempty"`

	// Baseline is the set of files already dirty/untracked in the
	// repository immediately before this worker started, used to subtract
	// pre-existing noise when attributing changes to the agent.
	Baseline []string `json:"baseline,omitempty"`
}

// IsIdle reports whether the slot can accept a new issue.
func (w *Worker) IsIdle() bool {
	return w.Status == WorkerIdle || w.Status == "" ||
		w.Status == WorkerCompleted || w.Status == WorkerFailed || w.Status == WorkerTimeout
}

// BatchStatus is the lifecycle status of a batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchAborted   BatchStatus = "aborted"
)

// Batch is an ordered group of issues whose manifests are write-disjoint,
// safe to dispatch concurrently.
type Batch struct {
	ID          string      `json:"id"`
	IssueIDs    []string    `json:"issue_ids"`
	Status      BatchStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// State is the orchestrator's full persisted run state.
type State struct {
	mu sync.Mutex

	SchemaVersion int             `json:"schema_version"`
	Issues        map[string]*issue.Issue `json:"issues"`
	Workers       []Worker        `json:"workers"`
	Batches       []Batch         `json:"batches"`
	SavedAt       time.Time       `json:"saved_at"`

	path string
}

// New creates a fresh State with numWorkers idle slots (numWorkers in [1,8]).
func New(path string, numWorkers int) *State {
	workers := make([]Worker, numWorkers)
	for i := range workers {
		workers[i] = Worker{WorkerID: i, Status: WorkerIdle}
	}
	return &State{
		SchemaVersion: SchemaVersion,
		Issues:        make(map[string]*issue.Issue),
		Workers:       workers,
		path:          path,
	}
}

// Load reads state.json from path. A schema version mismatch is a hard
// error surfaced to the operator rather than a silent migration.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("state schema version mismatch: on-disk=%d, expected=%d", s.SchemaVersion, SchemaVersion)
	}
	s.path = path
	if s.Issues == nil {
		s.Issues = make(map[string]*issue.Issue)
	}
	return &s, nil
}

// Save writes state.json atomically: temp file in the same directory,
// fsync, chmod, rename.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SchemaVersion = SchemaVersion
	s.SavedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return util.AtomicWriteFile(s.path, data, 0644)
}

// MarshalJSON excludes the unexported mutex/path fields via a shadow type.
func (s *State) MarshalJSON() ([]byte, error) {
	type shadow State
	return json.Marshal(&struct{ *shadow }{(*shadow)(s)})
}

// IsPIDAlive reports whether a process with the given PID is currently running.
func IsPIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness without
	// affecting the process.
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// CheckOrphaned scans worker slots for ones whose owning process is dead or
// whose heartbeat has gone stale past OrphanThreshold, and requeues their
// current issue back to Open so a future run can retry it.
func (s *State) CheckOrphaned(now time.Time) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orphaned []int
	for i := range s.Workers {
		w := &s.Workers[i]
		if w.Status != WorkerRunning && w.Status != WorkerWaiting {
			continue
		}

		stale := w.Heartbeat != nil && now.Sub(*w.Heartbeat) > OrphanThreshold
		dead := w.PID != 0 && !IsPIDAlive(w.PID)

		if !stale && !dead {
			continue
		}

		if w.CurrentIssue != "" {
			if iss, ok := s.Issues[w.CurrentIssue]; ok {
				iss.Status = issue.StatusOpen
			}
		}

		*w = Worker{WorkerID: w.WorkerID, Status: WorkerIdle}
		orphaned = append(orphaned, i)
	}
	return orphaned
}

// Lock acquires the state mutex for compound read-modify-write sequences
// spanning multiple of the accessor methods above. Callers must call Unlock.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }
