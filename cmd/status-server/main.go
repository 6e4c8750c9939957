// status-server serves the corpus progress page and JSON API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arxtract/arxtract/internal/config"
	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/engine"
	"github.com/arxtract/arxtract/internal/status"
	"github.com/arxtract/arxtract/internal/statushttp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg := config.Load()
	addr := flag.String("addr", cfg.StatusAddr, "listen address")
	sourceRoot := flag.String("source", cfg.SourceRoot, "corpus source root")
	artifactRoot := flag.String("artifacts", cfg.ArtifactRoot, "page artifact root")
	flag.Parse()

	// One counter for the process lifetime: sources are immutable, so page
	// counts stay valid across rescans.
	pdf := engine.NewPDFInfo()
	srv := statushttp.NewServer(*addr, func() (*status.Reconciler, error) {
		inv, err := corpus.NewScanner(*sourceRoot, *artifactRoot).Scan()
		if err != nil {
			return nil, err
		}
		return status.NewReconciler(inv, pdf), nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("status server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down cleanly", "error", err)
			os.Exit(1)
		}
	}
}
