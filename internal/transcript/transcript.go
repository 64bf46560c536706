// Package transcript buffers an attempt's stdout lines and flushes them to
// .orc/transcripts.db on a ticker and on buffer-size threshold.
package transcript

import (
	"sync"
	"time"

	"github.com/randalmurphal/orc/internal/db"
	"github.com/randalmurphal/orc/internal/streamparser"
)

// flushThreshold is the number of buffered lines that triggers an eager
// flush, independent of the ticker.
const flushThreshold = 100

// flushInterval is how often the buffer flushes on a timer even if it
// hasn't hit flushThreshold.
const flushInterval = 2 * time.Second

// line is one pending row awaiting flush.
type line struct {
	issueID   string
	attemptNo int
	seq       int
	eventType string
	toolName  string
	raw       string
}

// Store persists transcript lines to a SQLite database.
type Store struct {
	database *db.DB

	mu      sync.Mutex
	buf     []line
	seqByIssue map[string]int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Open opens (and migrates) the transcript database at path.
func Open(path string) (*Store, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate("transcript"); err != nil {
		d.Close()
		return nil, err
	}

	s := &Store{
		database:   d,
		seqByIssue: make(map[string]int),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.tickerLoop()
	return s, nil
}

// Append records one parsed stream event for issueID/attemptNo. Flushes
// immediately if the buffer has grown past flushThreshold.
func (s *Store) Append(issueID string, attemptNo int, ev streamparser.Event) {
	s.mu.Lock()
	s.seqByIssue[issueID]++
	seq := s.seqByIssue[issueID]
	s.buf = append(s.buf, line{
		issueID:   issueID,
		attemptNo: attemptNo,
		seq:       seq,
		eventType: string(ev.Type),
		toolName:  ev.ToolName,
		raw:       ev.RawLine,
	})
	shouldFlush := len(s.buf) >= flushThreshold
	s.mu.Unlock()

	if shouldFlush {
		_ = s.Flush()
	}
}

// Flush writes every buffered line to the database in one transaction.
// Missing the database (e.g. disk full, corrupted file) degrades logging
// silently rather than failing the attempt.
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	tx, err := s.database.DB().Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO transcript_lines (issue_id, attempt_no, seq, event_type, tool_name, raw_line) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, l := range pending {
		if _, err := stmt.Exec(l.issueID, l.attemptNo, l.seq, l.eventType, l.toolName, l.raw); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) tickerLoop() {
	defer close(s.done)
	t := time.NewTicker(flushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = s.Flush()
		case <-s.stop:
			_ = s.Flush()
			return
		}
	}
}

// Close flushes remaining lines and closes the underlying database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.database.Close()
}
