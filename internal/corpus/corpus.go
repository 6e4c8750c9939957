// Package corpus indexes a year-month bucketed corpus: source PDFs on one
// side, extracted page artifacts on the other, correlated by document id.
package corpus

import (
	"sort"
)

// File extensions the scanner recognizes.
const (
	SourceExt   = ".pdf"
	ArtifactExt = ".mmd"
)

// Document is one source PDF discovered during a scan. Immutable after
// discovery; status is derived elsewhere.
type Document struct {
	ID     string // filename stem, e.g. "2310.04567"
	Bucket string // 4-digit year-month directory, e.g. "2310"
	Path   string
	Size   int64
}

// PageFile is one extracted page artifact on disk. Size 0 means the file is
// present but invalid (attempted and empty), which is different from absent.
type PageFile struct {
	Index int // 1-based
	Path  string
	Size  int64
}

// MergedFile is a per-document merged artifact (no page suffix).
type MergedFile struct {
	Path string
	Size int64
}

// Entry is the per-document view of the corpus: the source PDF (if any) and
// every artifact observed for it.
type Entry struct {
	ID     string
	Bucket string
	Doc    *Document // nil when artifacts exist without a source PDF
	Pages  map[int]PageFile
	Merged *MergedFile
}

// SourceMissing reports whether artifacts were found for a document whose
// source PDF is absent.
func (e *Entry) SourceMissing() bool { return e.Doc == nil }

// PageIndices returns the observed page indices in ascending order.
func (e *Entry) PageIndices() []int {
	idx := make([]int, 0, len(e.Pages))
	for i := range e.Pages {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Inventory is the normalized result of one scan, indexed by document id.
// It is a point-in-time view; Refresh re-reads a single document's bucket.
type Inventory struct {
	sourceRoot   string
	artifactRoot string
	entries      map[string]*Entry
	malformed    []*MalformedNameError
}

// Lookup returns the entry for a document id.
func (inv *Inventory) Lookup(docID string) (*Entry, bool) {
	e, ok := inv.entries[docID]
	return e, ok
}

// Len returns the number of documents in the inventory (sources plus orphan
// artifact groups).
func (inv *Inventory) Len() int { return len(inv.entries) }

// Entries returns all entries ordered by bucket then id, for deterministic
// iteration.
func (inv *Inventory) Entries() []*Entry {
	out := make([]*Entry, 0, len(inv.entries))
	for _, e := range inv.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bucket != out[j].Bucket {
			return out[i].Bucket < out[j].Bucket
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Buckets returns the bucket names present, sorted.
func (inv *Inventory) Buckets() []string {
	seen := make(map[string]struct{})
	for _, e := range inv.entries {
		seen[e.Bucket] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Malformed returns the artifact files that did not parse into
// (doc-id, page-index) and were excluded from the inventory.
func (inv *Inventory) Malformed() []*MalformedNameError { return inv.malformed }

func (inv *Inventory) entry(id, bucket string) *Entry {
	if e, ok := inv.entries[id]; ok {
		return e
	}
	e := &Entry{ID: id, Bucket: bucket, Pages: make(map[int]PageFile)}
	inv.entries[id] = e
	return e
}
