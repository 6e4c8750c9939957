package fetch

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arxtract/arxtract/internal/corpus"
)

// ExtractStats counts what one archive yielded.
type ExtractStats struct {
	PDFs    int
	Skipped int
}

// BucketFromArchive maps an archive name to its bucket directory. Both
// published spellings are accepted: arXiv_pdf_2310_1.tar and
// arXiv_pdf_23_10_1.tar name bucket 2310.
func BucketFromArchive(name string) (string, error) {
	stem, ok := strings.CutSuffix(filepath.Base(name), ".tar")
	if !ok {
		return "", fmt.Errorf("archive %q is not a .tar file", name)
	}
	parts := strings.Split(stem, "_")
	switch len(parts) {
	case 4:
		if corpus.ValidBucket(parts[2]) {
			return parts[2], nil
		}
	case 5:
		if bucket := parts[2] + parts[3]; len(parts[2]) == 2 && len(parts[3]) == 2 && corpus.ValidBucket(bucket) {
			return bucket, nil
		}
	}
	return "", fmt.Errorf("archive name %q does not encode a bucket", name)
}

// ExtractArchive unpacks the PDF members of one tar into
// <outputRoot>/<bucket>/. Member paths are flattened to their base name so
// the result matches the corpus layout; non-PDF and non-regular members are
// skipped and counted.
func ExtractArchive(tarPath, outputRoot string) (ExtractStats, error) {
	var stats ExtractStats
	bucket, err := BucketFromArchive(tarPath)
	if err != nil {
		return stats, err
	}
	dir := filepath.Join(outputRoot, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	f, err := os.Open(tarPath)
	if err != nil {
		return stats, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read archive %s: %w", tarPath, err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.EqualFold(filepath.Ext(hdr.Name), corpus.SourceExt) {
			stats.Skipped++
			continue
		}
		if err := writeMember(filepath.Join(dir, filepath.Base(hdr.Name)), tr); err != nil {
			return stats, err
		}
		stats.PDFs++
	}
}

func writeMember(dest string, r io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", dest, err)
	}
	return out.Close()
}
