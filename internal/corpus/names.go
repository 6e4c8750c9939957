package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bucket directories are exactly four digits (YYMM). Anything else at the
// root level is ignored.
var bucketPattern = regexp.MustCompile(`^\d{4}$`)

// ValidBucket reports whether name is a well-formed bucket directory name.
func ValidBucket(name string) bool { return bucketPattern.MatchString(name) }

// MalformedNameError reports an artifact filename that does not follow the
// <doc-id>_<page-index> grammar. Malformed files are excluded from the
// inventory but never abort a scan.
type MalformedNameError struct {
	Path   string
	Bucket string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed artifact name %q: %s", e.Path, e.Reason)
}

// SplitArtifactName parses an artifact filename (without directory) into its
// document id and 1-based page index. The page index is everything after the
// LAST underscore, so document ids may themselves contain underscores.
func SplitArtifactName(name string) (docID string, page int, err error) {
	stem, ok := strings.CutSuffix(name, ArtifactExt)
	if !ok {
		return "", 0, fmt.Errorf("missing %s extension", ArtifactExt)
	}
	i := strings.LastIndex(stem, "_")
	if i < 0 {
		return "", 0, fmt.Errorf("no page suffix in %q", stem)
	}
	docID, suffix := stem[:i], stem[i+1:]
	if docID == "" {
		return "", 0, fmt.Errorf("empty document id in %q", stem)
	}
	page, convErr := strconv.Atoi(suffix)
	if convErr != nil {
		return "", 0, fmt.Errorf("page suffix %q is not an integer", suffix)
	}
	if page < 1 {
		return "", 0, fmt.Errorf("page index %d is not positive", page)
	}
	return docID, page, nil
}

// ArtifactName returns the canonical artifact filename for one page of a
// document.
func ArtifactName(docID string, page int) string {
	return fmt.Sprintf("%s_%d%s", docID, page, ArtifactExt)
}

// MergedName returns the canonical merged-output filename for a document.
func MergedName(docID string) string {
	return docID + ArtifactExt
}

// SourceName returns the canonical source filename for a document.
func SourceName(docID string) string {
	return docID + SourceExt
}
