package corpus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownDocument is returned by Refresh for ids absent from the inventory.
var ErrUnknownDocument = errors.New("document not in inventory")

// Scanner walks the corpus roots and builds an Inventory. SourceRoot and
// ArtifactRoot may be the same directory; both are bucketed by YYMM.
type Scanner struct {
	SourceRoot   string
	ArtifactRoot string
}

// NewScanner returns a Scanner over the given roots.
func NewScanner(sourceRoot, artifactRoot string) *Scanner {
	return &Scanner{SourceRoot: sourceRoot, ArtifactRoot: artifactRoot}
}

// Scan reads every bucket directory under both roots and returns the
// combined inventory. Sources are indexed first so merged outputs can be
// told apart from page artifacts; malformed artifact names are excluded and
// reported, never fatal.
func (s *Scanner) Scan() (*Inventory, error) {
	inv := &Inventory{
		sourceRoot:   s.SourceRoot,
		artifactRoot: s.ArtifactRoot,
		entries:      make(map[string]*Entry),
	}
	if err := s.scanSources(inv); err != nil {
		return nil, err
	}
	if err := s.scanArtifacts(inv); err != nil {
		return nil, err
	}
	slog.Info("corpus scan complete",
		"documents", inv.Len(),
		"buckets", len(inv.Buckets()),
		"malformed", len(inv.malformed))
	return inv, nil
}

func (s *Scanner) scanSources(inv *Inventory) error {
	return eachBucketFile(s.SourceRoot, func(bucket, path string, size int64) {
		name := filepath.Base(path)
		stem, ok := strings.CutSuffix(name, SourceExt)
		if !ok || stem == "" {
			return
		}
		e := inv.entry(stem, bucket)
		if e.Doc != nil {
			slog.Warn("duplicate source for document, keeping first",
				"docID", stem, "path", path, "existing", e.Doc.Path)
			return
		}
		e.Bucket = bucket
		e.Doc = &Document{ID: stem, Bucket: bucket, Path: path, Size: size}
	})
}

func (s *Scanner) scanArtifacts(inv *Inventory) error {
	return eachBucketFile(s.ArtifactRoot, func(bucket, path string, size int64) {
		name := filepath.Base(path)
		stem, ok := strings.CutSuffix(name, ArtifactExt)
		if !ok {
			return
		}
		// A file named exactly after a known source is its merged output,
		// not a page artifact.
		if e, ok := inv.entries[stem]; ok && e.Doc != nil {
			e.Merged = &MergedFile{Path: path, Size: size}
			return
		}
		docID, page, err := SplitArtifactName(name)
		if err != nil {
			m := &MalformedNameError{Path: path, Bucket: bucket, Reason: err.Error()}
			inv.malformed = append(inv.malformed, m)
			slog.Warn("excluding artifact with malformed name", "path", path, "reason", err.Error())
			return
		}
		e := inv.entry(docID, bucket)
		e.Pages[page] = PageFile{Index: page, Path: path, Size: size}
	})
}

// eachBucketFile calls fn for every regular file inside every well-formed
// bucket directory under root. Entries that vanish between listing and stat
// are skipped.
func eachBucketFile(root string, fn func(bucket, path string, size int64)) error {
	top, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read corpus root %s: %w", root, err)
	}
	for _, d := range top {
		if !d.IsDir() || !ValidBucket(d.Name()) {
			continue
		}
		bucket := d.Name()
		files, err := os.ReadDir(filepath.Join(root, bucket))
		if err != nil {
			return fmt.Errorf("failed to read bucket %s: %w", bucket, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			fn(bucket, filepath.Join(root, bucket, f.Name()), info.Size())
		}
	}
	return nil
}

// Refresh re-reads a single document's source file and bucket artifacts,
// replacing that entry's view in place. Only the document's own bucket
// directory is touched, so callers can poll one document cheaply.
func (inv *Inventory) Refresh(docID string) (*Entry, error) {
	e, ok := inv.entries[docID]
	if !ok {
		return nil, fmt.Errorf("refresh %s: %w", docID, ErrUnknownDocument)
	}

	srcPath := filepath.Join(inv.sourceRoot, e.Bucket, SourceName(docID))
	if info, err := os.Stat(srcPath); err == nil {
		e.Doc = &Document{ID: docID, Bucket: e.Bucket, Path: srcPath, Size: info.Size()}
	} else {
		e.Doc = nil
	}

	e.Pages = make(map[int]PageFile)
	e.Merged = nil
	files, err := os.ReadDir(filepath.Join(inv.artifactRoot, e.Bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, fmt.Errorf("failed to read bucket %s: %w", e.Bucket, err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		stem, trimmed := strings.CutSuffix(name, ArtifactExt)
		if !trimmed {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(inv.artifactRoot, e.Bucket, name)
		if stem == docID {
			if e.Doc != nil {
				e.Merged = &MergedFile{Path: path, Size: info.Size()}
			}
			continue
		}
		id, page, err := SplitArtifactName(name)
		if err != nil || id != docID {
			continue
		}
		e.Pages[page] = PageFile{Index: page, Path: path, Size: info.Size()}
	}
	return e, nil
}
