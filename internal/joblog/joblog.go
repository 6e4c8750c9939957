// Package joblog records per-document extraction outcomes. The log is an
// explicit accumulator: each run appends to it, persists the new records as
// JSONL next to the artifacts, and later runs consult the history for retry
// budgeting. The latest outcome per document is authoritative; earlier ones
// are kept for audit.
package joblog

import (
	"sync"
	"time"
)

// Filename is the on-disk log name, kept at the artifact root.
const Filename = "job-outcomes.jsonl"

// Status is the tagged result of one extraction attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is one document's result from one run.
type Outcome struct {
	RunID         string    `json:"runId"`
	DocID         string    `json:"docId"`
	Bucket        string    `json:"bucket"`
	AttemptedAt   time.Time `json:"attemptedAt"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	PagesProduced int       `json:"pagesProduced"`
	ExpectedPages int       `json:"expectedPages,omitempty"`
}

// Log accumulates outcomes in append order. Safe for concurrent append;
// the runner's workers all record into one Log.
type Log struct {
	mu       sync.Mutex
	outcomes []Outcome
	byDoc    map[string][]int
}

// New returns an empty log.
func New() *Log {
	return &Log{byDoc: make(map[string][]int)}
}

// Append records one outcome.
func (l *Log) Append(o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byDoc[o.DocID] = append(l.byDoc[o.DocID], len(l.outcomes))
	l.outcomes = append(l.outcomes, o)
}

// Len returns the number of recorded outcomes.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outcomes)
}

// Outcomes returns a copy of the full history in append order.
func (l *Log) Outcomes() []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Outcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

// Latest returns the most recent outcome for a document.
func (l *Log) Latest(docID string) (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.byDoc[docID]
	if len(idx) == 0 {
		return Outcome{}, false
	}
	return l.outcomes[idx[len(idx)-1]], true
}

// FailureStreak counts the consecutive failed outcomes at the tail of a
// document's history. Skipped outcomes are transparent: a document parked on
// "retry budget exhausted" must not have its streak reset by the parking
// records themselves. Success and partial break the streak; partial shows
// forward progress, so it does not consume retry budget.
func (l *Log) FailureStreak(docID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.byDoc[docID]
	streak := 0
	for i := len(idx) - 1; i >= 0; i-- {
		switch l.outcomes[idx[i]].Status {
		case StatusFailed:
			streak++
		case StatusSkipped:
			continue
		default:
			return streak
		}
	}
	return streak
}

// CountByStatus tallies the full history, for run summaries.
func (l *Log) CountByStatus() map[Status]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Status]int)
	for _, o := range l.outcomes {
		counts[o.Status]++
	}
	return counts
}
