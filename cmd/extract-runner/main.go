// extract-runner processes the corpus with the configured extraction engine:
// scan, filter, batch, extract, record outcomes. Interrupting it is safe; the
// in-flight batch finishes and the run halts between batches.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arxtract/arxtract/internal/config"
	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/engine"
	"github.com/arxtract/arxtract/internal/joblog"
	"github.com/arxtract/arxtract/internal/runner"
	"github.com/arxtract/arxtract/internal/status"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg := config.Load()
	sourceRoot := flag.String("source", cfg.SourceRoot, "corpus source root")
	artifactRoot := flag.String("artifacts", cfg.ArtifactRoot, "page artifact root")
	engineName := flag.String("engine", cfg.Engine, "extraction engine: remote, vertex, or textlayer")
	force := flag.Bool("force", false, "reprocess documents that are already complete")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv, err := corpus.NewScanner(*sourceRoot, *artifactRoot).Scan()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("scanned corpus", "documents", inv.Len(), "malformed", len(inv.Malformed()))

	pdf := engine.NewPDFInfo()
	engines, cleanup, err := buildEngines(ctx, cfg, *engineName, pdf)
	if err != nil {
		slog.Error("failed to build engines", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	logPath := filepath.Join(*artifactRoot, joblog.Filename)
	history, err := joblog.LoadFile(logPath)
	if err != nil {
		slog.Error("failed to load outcome log", "path", logPath, "error", err)
		os.Exit(1)
	}
	slog.Info("loaded outcome history", "path", logPath, "outcomes", history.Len())

	r := &runner.Runner{
		Engines:      engines,
		Inventory:    inv,
		Reconciler:   status.NewReconciler(inv, pdf),
		History:      history,
		ArtifactRoot: *artifactRoot,
		Options: runner.Options{
			BatchSize:      cfg.BatchSize,
			BatchTimeout:   cfg.BatchTimeout,
			MaxRetries:     cfg.MaxRetries,
			ForceReprocess: *force,
		},
		Persist: func(outcomes []joblog.Outcome) error {
			return joblog.AppendFile(logPath, outcomes)
		},
	}

	if _, err := r.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("run interrupted, in-flight batches were completed")
			return
		}
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}
}

// buildEngines translates the engine selection into one engine per worker.
// Remote endpoints each get a worker and a distinct device; the vertex and
// textlayer engines are safe for concurrent use, so one instance serves all
// workers.
func buildEngines(ctx context.Context, cfg *config.Config, name string, pdf *engine.PDFInfo) ([]engine.Engine, func(), error) {
	workers := max(cfg.Workers, 1)
	noop := func() {}
	switch name {
	case "remote":
		if len(cfg.Endpoints) == 0 {
			return nil, noop, errors.New("no remote endpoints configured")
		}
		engines := make([]engine.Engine, 0, len(cfg.Endpoints))
		for i, endpoint := range cfg.Endpoints {
			device := fmt.Sprintf("cuda:%d", i)
			engines = append(engines, engine.NewRemoteEngine(endpoint, device, cfg.PageBatchSize, cfg.RequestTimeout))
		}
		return engines, noop, nil
	case "vertex":
		v, err := engine.NewVertexEngine(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexAIModel, cfg.PageBatchSize, pdf)
		if err != nil {
			return nil, noop, err
		}
		engines := make([]engine.Engine, workers)
		for i := range engines {
			engines[i] = v
		}
		return engines, func() { v.Close() }, nil
	case "textlayer":
		t := engine.NewTextLayerEngine(pdf)
		engines := make([]engine.Engine, workers)
		for i := range engines {
			engines[i] = t
		}
		return engines, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown engine %q", name)
	}
}
