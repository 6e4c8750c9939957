// merge-pages combines the page artifacts of every complete document into a
// single cleaned file per document.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arxtract/arxtract/internal/config"
	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/engine"
	"github.com/arxtract/arxtract/internal/merge"
	"github.com/arxtract/arxtract/internal/status"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg := config.Load()
	sourceRoot := flag.String("source", cfg.SourceRoot, "corpus source root")
	artifactRoot := flag.String("artifacts", cfg.ArtifactRoot, "page artifact root")
	mergedRoot := flag.String("merged", cfg.MergedRoot, "merged document root")
	force := flag.Bool("force", false, "re-merge documents that already have a merged file")
	requireFrontMatter := flag.Bool("require-front-matter", false,
		"only merge documents whose first page shows article front matter")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv, err := corpus.NewScanner(*sourceRoot, *artifactRoot).Scan()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		os.Exit(1)
	}

	d := &merge.Driver{
		Merger:             merge.NewMerger(merge.DefaultRules()),
		Inventory:          inv,
		Reconciler:         status.NewReconciler(inv, engine.NewPDFInfo()),
		Root:               *mergedRoot,
		Force:              *force,
		RequireFrontMatter: *requireFrontMatter,
	}
	stats, err := d.Run(ctx)
	slog.Info("merge finished",
		"merged", stats.Merged,
		"skipped", stats.Skipped,
		"incomplete", stats.Incomplete,
		"failed", stats.Failed)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("merge aborted", "error", err)
		os.Exit(1)
	}
}
