package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arxtract/arxtract/internal/corpus"
)

// WriteMerged saves content to <root>/<bucket>/<doc-id>.mmd via a temp file
// and rename in the same directory, so a concurrent reader never observes a
// half-written merge. Returns the final path.
func WriteMerged(root, bucket, docID, content string) (string, error) {
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bucket dir %s: %w", dir, err)
	}
	final := filepath.Join(dir, corpus.MergedName(docID))

	tmp, err := os.CreateTemp(dir, "."+docID+".merge-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write merged %s: %w", docID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close merged %s: %w", docID, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod merged %s: %w", docID, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to publish merged %s: %w", docID, err)
	}
	return final, nil
}
