// fetch-corpus downloads bulk archives from a mirror and unpacks them into
// the corpus layout. With no -manifest it first downloads the manifest from
// the mirror itself.
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
	"strings"
	"syscall"

	"github.com/arxtract/arxtract/internal/config"
	"github.com/arxtract/arxtract/internal/fetch"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg := config.Load()
	manifestPath := flag.String("manifest", "", "local manifest XML; downloaded from the mirror when empty")
	mirrorName := flag.String("mirror", "gcs", "download mirror: s3 or gcs")
	outputRoot := flag.String("out", cfg.SourceRoot, "corpus root for extracted PDFs")
	archiveDir := flag.String("archive-dir", "archives", "directory for downloaded tar files")
	keep := flag.Bool("keep", cfg.KeepArchives, "keep tar files after extraction")
	buckets := flag.String("buckets", "", "comma-separated bucket filter, e.g. 2310,2311")
	list := flag.Bool("list", false, "list archives available on the mirror and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror, cleanup, err := buildMirror(ctx, cfg, *mirrorName)
	if err != nil {
		slog.Error("failed to build mirror", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if *list {
		lister, ok := mirror.(fetch.Lister)
		if !ok {
			slog.Error("mirror does not support listing", "mirror", mirror.Name())
			os.Exit(1)
		}
		keys, err := lister.List(ctx, "pdf/")
		if err != nil {
			slog.Error("failed to list archives", "error", err)
			os.Exit(1)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}

	if *manifestPath == "" {
		if err := os.MkdirAll(*archiveDir, 0o755); err != nil {
			slog.Error("failed to create archive dir", "error", err)
			os.Exit(1)
		}
		dest := filepath.Join(*archiveDir, filepath.Base(cfg.ManifestPath))
		if _, err := mirror.Fetch(ctx, cfg.ManifestPath, dest); err != nil {
			slog.Error("failed to download manifest", "key", cfg.ManifestPath, "error", err)
			os.Exit(1)
		}
		slog.Info("downloaded manifest", "key", cfg.ManifestPath, "dest", dest)
		*manifestPath = dest
	}

	m, err := fetch.LoadManifest(*manifestPath)
	if err != nil {
		slog.Error("failed to load manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded manifest", "archives", len(m.Files), "items", m.TotalItems(), "bytes", m.TotalSize())

	f := &fetch.Fetcher{
		Mirror:       mirror,
		OutputRoot:   *outputRoot,
		ArchiveDir:   *archiveDir,
		KeepArchives: *keep,
	}
	for _, b := range strings.Split(*buckets, ",") {
		if b = strings.TrimSpace(b); b != "" {
			f.Buckets = append(f.Buckets, b)
		}
	}

	stats, err := f.Run(ctx, m)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("intake interrupted")
			return
		}
		slog.Error("intake aborted", "error", err)
		os.Exit(1)
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func buildMirror(ctx context.Context, cfg *config.Config, name string) (fetch.Mirror, func(), error) {
	noop := func() {}
	switch name {
	case "s3":
		m, err := fetch.NewS3Mirror(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSAccessKey, cfg.AWSSecretKey)
		if err != nil {
			return nil, noop, err
		}
		return m, noop, nil
	case "gcs":
		m, err := fetch.NewGCSMirror(ctx, cfg.GCSBucket, "")
		if err != nil {
			return nil, noop, err
		}
		return m, func() { m.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown mirror %q", name)
	}
}
