package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
)

// TextLayerEngine reads the embedded text layer of born-digital PDFs. No
// GPU, no network; used for smoke runs and for corpora that never needed
// OCR in the first place.
type TextLayerEngine struct {
	pdf *PDFInfo
}

// NewTextLayerEngine returns a local extraction engine.
func NewTextLayerEngine(pdf *PDFInfo) *TextLayerEngine {
	return &TextLayerEngine{pdf: pdf}
}

func (t *TextLayerEngine) Name() string { return "textlayer" }

// Extract splits each document into single-page PDFs and converts them one
// at a time. Pages with no text layer are emitted empty; the reconciler
// keeps such documents out of complete.
func (t *TextLayerEngine) Extract(ctx context.Context, batch []Source, emit PageSink) ([]Result, error) {
	return runBatch(ctx, batch, emit, t.extractOne)
}

func (t *TextLayerEngine) extractOne(ctx context.Context, src Source, emit PageSink) (int, error) {
	pageCount, err := t.pdf.PageCount(src.Path)
	if err != nil {
		return 0, err
	}
	workdir, err := os.MkdirTemp("", "textlayer-split-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(workdir)

	pagePaths, err := splitToPages(src.Path, workdir, pageCount)
	if err != nil {
		return 0, err
	}
	for i, pagePath := range pagePaths {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		f, err := os.Open(pagePath)
		if err != nil {
			return i, err
		}
		res, err := docconv.Convert(f, "application/pdf", true)
		f.Close()
		if err != nil {
			return i, fmt.Errorf("page %d: %w", i+1, err)
		}
		if err := emit(src, Page{Index: i + 1, Text: strings.TrimSpace(res.Body)}); err != nil {
			return i, &sinkFault{err: err}
		}
	}
	return len(pagePaths), nil
}
