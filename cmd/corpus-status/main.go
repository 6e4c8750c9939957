// corpus-status prints the reconciled completion state of the corpus, or of
// one document with -doc. Logs go to stderr, output to stdout.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/arxtract/arxtract/internal/config"
	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/engine"
	"github.com/arxtract/arxtract/internal/status"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg := config.Load()
	sourceRoot := flag.String("source", cfg.SourceRoot, "corpus source root")
	artifactRoot := flag.String("artifacts", cfg.ArtifactRoot, "page artifact root")
	docID := flag.String("doc", "", "report a single document instead of the whole corpus")
	asJSON := flag.Bool("json", false, "print JSON instead of text")
	flag.Parse()

	inv, err := corpus.NewScanner(*sourceRoot, *artifactRoot).Scan()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		os.Exit(1)
	}
	rec := status.NewReconciler(inv, engine.NewPDFInfo())

	if *docID != "" {
		doc, err := rec.Status(*docID)
		if err != nil {
			slog.Error("failed to derive status", "docId", *docID, "error", err)
			os.Exit(1)
		}
		if *asJSON {
			printJSON(doc)
			return
		}
		fmt.Printf("%s (%s): %s", doc.DocID, doc.Bucket, doc.Status)
		if doc.Detail != "" {
			fmt.Printf(" (%s)", doc.Detail)
		}
		fmt.Printf(", %d/%d pages, merged=%v\n", doc.Observed, doc.Expected, doc.Merged)
		return
	}

	snap := rec.Snapshot()
	if *asJSON {
		printJSON(snap)
		return
	}
	fmt.Printf("documents: %d\n", snap.Documents)
	fmt.Printf("complete: %d (%.2f%%)\n", snap.Counts[status.Complete], snap.CompletePercent())
	fmt.Printf("in progress: %d\n", snap.Counts[status.InProgress])
	fmt.Printf("not started: %d\n", snap.Counts[status.NotStarted])
	fmt.Printf("failed: %d\n", snap.Counts[status.Failed])
	fmt.Printf("page artifacts: %d\n", snap.Pages)
	fmt.Printf("malformed artifact names: %d\n", snap.Malformed)
	for _, b := range snap.Buckets {
		fmt.Printf("  %s: %d documents, %d complete\n", b.Bucket, b.Documents, b.Counts[status.Complete])
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to encode output", "error", err)
		os.Exit(1)
	}
}
