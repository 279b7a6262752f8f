package orchestrator

// #region imports
import (
	"fmt"
	"sync"
	"time"
)

// #endregion

// #region entry

// Trail decisions.
const (
	DecisionInfo         = "info"
	DecisionAccept       = "accept"
	DecisionRevise       = "revise"
	DecisionForcedAccept = "forced_accept"
	DecisionDrop         = "drop"
	DecisionWinner       = "winner"
	DecisionDegraded     = "degraded"
	DecisionFailed       = "failed"
)

// TrailEntry is one rationale record.
type TrailEntry struct {
	Seq      int
	Stage    string
	Subject  string
	Decision string
	Reason   string
	At       time.Time
}

// Note renders the entry as one line of the document's notes.
func (e TrailEntry) Note() string {
	return fmt.Sprintf("[%s] %s: %s", e.Stage, e.Decision, e.Reason)
}

// #endregion

// #region trail

// Trail is the append-only rationale log of one run. Safe for concurrent use.
type Trail struct {
	mu      sync.Mutex
	entries []TrailEntry
	now     func() time.Time
}

// NewTrail returns an empty trail stamped by now.
func NewTrail(now func() time.Time) *Trail {
	return &Trail{now: now}
}

// Add appends an entry and returns it.
func (t *Trail) Add(stage, subject, decision, reason string) TrailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := TrailEntry{
		Seq:      len(t.entries),
		Stage:    stage,
		Subject:  subject,
		Decision: decision,
		Reason:   reason,
		At:       t.now(),
	}
	t.entries = append(t.entries, e)
	return e
}

// Entries returns a copy of the trail.
func (t *Trail) Entries() []TrailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TrailEntry(nil), t.entries...)
}

// Last returns the most recent entry.
func (t *Trail) Last() (TrailEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return TrailEntry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Notes renders every entry as a note line.
func (t *Trail) Notes() []string {
	entries := t.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Note()
	}
	return out
}

// #endregion
