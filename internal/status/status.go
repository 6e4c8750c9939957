// Package status derives per-document completion by reconciling expected
// page counts from source PDFs against observed page artifacts. Nothing is
// cached persistently: the artifact tree may be modified out-of-band, so
// every answer is recomputed from the inventory's view of the filesystem.
package status

import (
	"fmt"
	"time"

	"github.com/arxtract/arxtract/internal/corpus"
)

// Completion is the derived state of one document.
type Completion int

const (
	NotStarted Completion = iota
	InProgress
	Complete
	Failed
)

func (c Completion) String() string {
	switch c {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("completion(%d)", int(c))
	}
}

// MarshalText makes Completion usable as a JSON value and map key.
func (c Completion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// PageCounter reports the expected page count of a source PDF. engine.PDFInfo
// satisfies it in production; tests use a fake.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Document is the reconciled view of one corpus entry.
type Document struct {
	DocID    string     `json:"docId"`
	Bucket   string     `json:"bucket"`
	Status   Completion `json:"status"`
	Detail   string     `json:"detail,omitempty"`
	Expected int        `json:"expectedPages"` // 0 when unknown
	Observed int        `json:"observedPages"`
	Merged   bool       `json:"merged"`
}

// Reconciler answers completion queries over one inventory.
type Reconciler struct {
	inv   *corpus.Inventory
	pages PageCounter
}

// NewReconciler wraps an inventory and a page counter.
func NewReconciler(inv *corpus.Inventory, pages PageCounter) *Reconciler {
	return &Reconciler{inv: inv, pages: pages}
}

// Status derives the completion of one document from the inventory as
// scanned.
func (r *Reconciler) Status(docID string) (Document, error) {
	e, ok := r.inv.Lookup(docID)
	if !ok {
		return Document{}, fmt.Errorf("status %s: %w", docID, corpus.ErrUnknownDocument)
	}
	return r.classify(e), nil
}

// StatusRefreshed re-reads the document's bucket directory first, so single
// document queries stay current against a live corpus without a full rescan.
func (r *Reconciler) StatusRefreshed(docID string) (Document, error) {
	e, err := r.inv.Refresh(docID)
	if err != nil {
		return Document{}, err
	}
	return r.classify(e), nil
}

// Documents classifies every entry, ordered by bucket then id.
func (r *Reconciler) Documents() []Document {
	entries := r.inv.Entries()
	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		out = append(out, r.classify(e))
	}
	return out
}

func (r *Reconciler) classify(e *corpus.Entry) Document {
	d := Document{
		DocID:    e.ID,
		Bucket:   e.Bucket,
		Observed: len(e.Pages),
		Merged:   e.Merged != nil,
	}
	if e.Doc == nil {
		// Artifacts without a source can never be verified complete.
		d.Status = Failed
		d.Detail = "source missing"
		return d
	}
	expected, err := r.pages.PageCount(e.Doc.Path)
	if err != nil {
		d.Status = Failed
		d.Detail = err.Error()
		return d
	}
	d.Expected = expected
	valid := validPages(e, expected)
	switch {
	case len(e.Pages) == 0:
		d.Status = NotStarted
	case valid == expected && len(e.Pages) == expected:
		d.Status = Complete
	default:
		d.Status = InProgress
		d.Detail = fmt.Sprintf("%d/%d pages", valid, expected)
	}
	return d
}

// validPages counts in-range, non-empty page artifacts. A zero-byte file is
// attempted-and-empty, never counted toward completion.
func validPages(e *corpus.Entry, expected int) int {
	valid := 0
	for i := 1; i <= expected; i++ {
		if pf, ok := e.Pages[i]; ok && pf.Size > 0 {
			valid++
		}
	}
	return valid
}

// BucketSummary aggregates one year-month bucket.
type BucketSummary struct {
	Bucket    string             `json:"bucket"`
	Documents int                `json:"documents"`
	Counts    map[Completion]int `json:"counts"`
}

// Snapshot is a point-in-time summary of the whole corpus, transport-free:
// the CLI prints it, the HTTP server renders it, both from the same struct.
type Snapshot struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Documents   int                `json:"documents"`
	Pages       int                `json:"pagesObserved"`
	Counts      map[Completion]int `json:"counts"`
	Buckets     []BucketSummary    `json:"buckets"`
	Malformed   int                `json:"malformedArtifacts"`
}

// CompletePercent returns the share of documents that are complete, 0–100.
func (s Snapshot) CompletePercent() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.Counts[Complete]) / float64(s.Documents) * 100
}

// Snapshot reconciles every document and aggregates counts per bucket.
func (r *Reconciler) Snapshot() Snapshot {
	snap := Snapshot{
		GeneratedAt: time.Now().UTC(),
		Counts:      make(map[Completion]int),
		Malformed:   len(r.inv.Malformed()),
	}
	var current *BucketSummary
	for _, e := range r.inv.Entries() {
		d := r.classify(e)
		snap.Documents++
		snap.Pages += d.Observed
		snap.Counts[d.Status]++
		if current == nil || current.Bucket != d.Bucket {
			snap.Buckets = append(snap.Buckets, BucketSummary{
				Bucket: d.Bucket,
				Counts: make(map[Completion]int),
			})
			current = &snap.Buckets[len(snap.Buckets)-1]
		}
		current.Documents++
		current.Counts[d.Status]++
	}
	return snap
}
