// Package merge aggregates a document's page artifacts into one cleaned
// per-document artifact. Merging only complete documents and re-verifying
// completeness here keeps a racing runner from producing a truncated merge.
package merge

import (
	"fmt"
	"os"
	"strings"

	"github.com/arxtract/arxtract/internal/corpus"
)

// IncompleteInputError reports a merge attempted on a document whose page
// set is not exactly {1..N} non-empty. Fatal to that merge call only.
type IncompleteInputError struct {
	DocID  string
	Reason string
}

func (e *IncompleteInputError) Error() string {
	return fmt.Sprintf("incomplete input for %s: %s", e.DocID, e.Reason)
}

// Merger applies cleanup rules and concatenates pages.
type Merger struct {
	rules Rules
}

// NewMerger returns a merger with the given rules.
func NewMerger(rules Rules) *Merger {
	return &Merger{rules: rules}
}

// Merge reads the document's pages in order, re-verifies completeness, and
// returns the cleaned, concatenated text. Same inputs, same bytes.
func (m *Merger) Merge(e *corpus.Entry, expected int) (string, error) {
	pages, err := readPages(e, expected)
	if err != nil {
		return "", err
	}
	return m.Combine(pages), nil
}

func readPages(e *corpus.Entry, expected int) ([]string, error) {
	if expected < 1 {
		return nil, &IncompleteInputError{DocID: e.ID, Reason: "expected page count unknown"}
	}
	if len(e.Pages) != expected {
		return nil, &IncompleteInputError{
			DocID:  e.ID,
			Reason: fmt.Sprintf("have %d page artifacts, want %d", len(e.Pages), expected),
		}
	}
	pages := make([]string, expected)
	for i := 1; i <= expected; i++ {
		pf, ok := e.Pages[i]
		if !ok {
			return nil, &IncompleteInputError{DocID: e.ID, Reason: fmt.Sprintf("missing page %d", i)}
		}
		data, err := os.ReadFile(pf.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, e.ID, err)
		}
		if len(data) == 0 {
			return nil, &IncompleteInputError{DocID: e.ID, Reason: fmt.Sprintf("page %d is empty", i)}
		}
		pages[i-1] = string(data)
	}
	return pages, nil
}

// Combine cleans each page in position and joins the survivors with a
// single newline. pages[0] is page 1; the final element is the document's
// last page and the only one eligible for reference stripping.
func (m *Merger) Combine(pages []string) string {
	cleaned := make([]string, 0, len(pages))
	for i, page := range pages {
		text := stripHeaders(page, m.rules.HeaderPatterns)
		if i == 0 && m.rules.StripFrontMatter {
			text = stripFrontMatter(text)
		}
		if i == len(pages)-1 && m.rules.StripReferences {
			var dropped bool
			text, dropped = stripReferences(text)
			if dropped {
				continue
			}
		}
		if m.rules.CollapseBlanks {
			text = collapseBlankLines(text)
		}
		text = strings.TrimRight(text, " \t\n")
		if text == "" {
			continue
		}
		cleaned = append(cleaned, text)
	}
	return strings.Join(cleaned, "\n")
}
