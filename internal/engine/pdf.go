package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFInfo counts source pages with pdfcpu. Counts are memoized per path:
// source PDFs are immutable once fetched, and the same count is consulted by
// the runner, the reconciler, and the engines.
type PDFInfo struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewPDFInfo returns an empty, ready-to-use counter.
func NewPDFInfo() *PDFInfo {
	return &PDFInfo{counts: make(map[string]int)}
}

// PageCount returns the number of pages in the PDF at path. Failures are
// UnreadableSourceError: a PDF pdfcpu cannot open stays failed until an
// operator replaces the file.
func (p *PDFInfo) PageCount(path string) (int, error) {
	p.mu.Lock()
	n, ok := p.counts[path]
	p.mu.Unlock()
	if ok {
		return n, nil
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, &UnreadableSourceError{Path: path, Err: err}
	}
	if n < 1 {
		return 0, &UnreadableSourceError{Path: path, Err: errors.New("zero pages")}
	}
	p.mu.Lock()
	p.counts[path] = n
	p.mu.Unlock()
	return n, nil
}

// splitToPages optimizes a PDF and splits it into single-page files under
// workdir, returning the page paths in order. pdfcpu names split output
// <stem>_<n>.pdf.
func splitToPages(path, workdir string, pageCount int) ([]string, error) {
	optimized := filepath.Join(workdir, "optimized.pdf")
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, optimized, cfg); err != nil {
		return nil, &UnreadableSourceError{Path: path, Err: err}
	}
	if err := api.SplitFile(optimized, workdir, 1, nil); err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", path, err)
	}
	pages := make([]string, pageCount)
	for i := 1; i <= pageCount; i++ {
		p := filepath.Join(workdir, fmt.Sprintf("optimized_%d.pdf", i))
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("split page %d of %s missing: %w", i, path, err)
		}
		pages[i-1] = p
	}
	return pages, nil
}
