package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// Fetcher downloads manifest archives from a mirror and unpacks them into the
// corpus layout. A bad archive is logged and skipped; only resource faults
// and context expiry abort the run.
type Fetcher struct {
	Mirror       Mirror
	OutputRoot   string
	ArchiveDir   string
	KeepArchives bool
	Buckets      []string // when set, only these buckets are fetched
}

// Stats summarizes one intake run.
type Stats struct {
	Archives  int   // archives unpacked
	Reused    int   // archives already on disk with the listed size
	PDFs      int   // pdf members extracted
	Skipped   int   // non-pdf members skipped
	Malformed int   // archives whose name encodes no bucket
	Failed    int   // archives that failed to download, verify, or unpack
	Bytes     int64 // bytes downloaded
}

// Run processes every archive in the manifest.
func (f *Fetcher) Run(ctx context.Context, m *Manifest) (Stats, error) {
	var stats Stats
	if err := os.MkdirAll(f.ArchiveDir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create archive dir: %w", err)
	}
	for _, a := range m.Files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		bucket, err := a.Bucket()
		if err != nil {
			slog.Warn("skipping archive with malformed name", "archive", a.Filename, "reason", err)
			stats.Malformed++
			continue
		}
		if len(f.Buckets) > 0 && !slices.Contains(f.Buckets, bucket) {
			continue
		}
		if err := f.intake(ctx, a, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			slog.Error("archive intake failed", "archive", a.Filename, "error", err)
			stats.Failed++
		}
	}
	slog.Info("intake finished",
		"archives", stats.Archives,
		"reused", stats.Reused,
		"pdfs", stats.PDFs,
		"failed", stats.Failed,
		"bytes", stats.Bytes)
	return stats, nil
}

func (f *Fetcher) intake(ctx context.Context, a Archive, stats *Stats) error {
	dest := filepath.Join(f.ArchiveDir, filepath.Base(a.Filename))
	if st, err := os.Stat(dest); err == nil && a.Size > 0 && st.Size() == a.Size {
		slog.Info("archive already present", "archive", dest)
		stats.Reused++
	} else {
		n, err := f.Mirror.Fetch(ctx, a.Filename, dest)
		if err != nil {
			return err
		}
		slog.Info("downloaded archive", "archive", a.Filename, "bytes", n, "mirror", f.Mirror.Name())
		stats.Bytes += n
	}

	if a.MD5Sum != "" {
		if err := verifyMD5(dest, a.MD5Sum); err != nil {
			os.Remove(dest)
			return err
		}
	}

	es, err := ExtractArchive(dest, f.OutputRoot)
	if err != nil {
		return err
	}
	stats.Archives++
	stats.PDFs += es.PDFs
	stats.Skipped += es.Skipped
	slog.Info("unpacked archive", "archive", dest, "pdfs", es.PDFs, "skipped", es.Skipped)

	if !f.KeepArchives {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove archive: %w", err)
		}
	}
	return nil
}

func verifyMD5(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", path, got, want)
	}
	return nil
}
