package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/status"
)

// Driver merges every complete document of an inventory into Root.
// Per-document problems are counted and logged; only an unwritable output
// tree aborts the run.
type Driver struct {
	Merger     *Merger
	Inventory  *corpus.Inventory
	Reconciler *status.Reconciler
	Root       string

	// Force re-merges documents that already have a merged artifact.
	Force bool
	// RequireFrontMatter gates merging on page 1 showing a heading and an
	// abstract, keeping scanned-only or garbled extractions out of the
	// merged set.
	RequireFrontMatter bool
}

// Stats summarizes one driver run.
type Stats struct {
	Merged     int
	Skipped    int
	Incomplete int
	Failed     int
}

// Run walks the reconciled corpus in bucket order and merges what is
// complete. Cancellation is observed between documents.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, doc := range d.Reconciler.Documents() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if doc.Status != status.Complete {
			stats.Incomplete++
			continue
		}
		target := filepath.Join(d.Root, doc.Bucket, corpus.MergedName(doc.DocID))
		if !d.Force {
			if _, err := os.Stat(target); err == nil {
				stats.Skipped++
				continue
			}
		}
		e, ok := d.Inventory.Lookup(doc.DocID)
		if !ok {
			return stats, fmt.Errorf("document %s vanished from inventory", doc.DocID)
		}

		if d.RequireFrontMatter {
			raw, err := os.ReadFile(e.Pages[1].Path)
			if err != nil {
				slog.Error("failed to read first page", "docId", doc.DocID, "error", err)
				stats.Failed++
				continue
			}
			if !HasArticleStructure(string(raw)) {
				slog.Info("skipping document without article front matter", "docId", doc.DocID)
				stats.Skipped++
				continue
			}
		}

		content, err := d.Merger.Merge(e, doc.Expected)
		if err != nil {
			var incomplete *IncompleteInputError
			if errors.As(err, &incomplete) {
				slog.Warn("document no longer complete, skipping merge",
					"docId", doc.DocID, "reason", incomplete.Reason)
				stats.Incomplete++
				continue
			}
			slog.Error("failed to merge document", "docId", doc.DocID, "error", err)
			stats.Failed++
			continue
		}
		if _, err := WriteMerged(d.Root, doc.Bucket, doc.DocID, content); err != nil {
			return stats, err
		}
		stats.Merged++
		slog.Info("merged document", "docId", doc.DocID, "bucket", doc.Bucket, "pages", doc.Expected)
	}
	return stats, nil
}
