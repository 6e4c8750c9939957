// Package engine defines the boundary to the external OCR engine and the
// adapters that implement it: a remote GPU inference service, Vertex AI
// document parsing, and a local text-layer extractor.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Source is one corpus PDF handed to an engine.
type Source struct {
	DocID  string
	Bucket string
	Path   string
}

// Page is one extracted page, 1-based.
type Page struct {
	Index int
	Text  string
}

// PageSink persists one page the moment an engine produces it, so an
// interrupted batch leaves partial but valid artifacts. Engines that fan
// pages out call it concurrently; implementations must tolerate that.
type PageSink func(src Source, page Page) error

// Result is the tagged per-document outcome of one engine call. Err carries
// the document's fault as data; it never aborts the batch.
type Result struct {
	DocID string
	Pages int // pages emitted through the sink
	Err   error
}

// Engine converts PDFs to per-page text. Extract returns exactly one Result
// per Source, in batch order. Only resource-level faults (a sink that cannot
// persist) surface as the second return value; per-document faults stay in
// the Results. Engines hold no cross-call state, so retrying a document on a
// later run is always safe.
type Engine interface {
	Name() string
	Extract(ctx context.Context, batch []Source, emit PageSink) ([]Result, error)
}

// ErrFailure marks a transient engine fault on one document, eligible for
// retry on a later run.
var ErrFailure = errors.New("engine failure")

// ErrTimeout is an ErrFailure cut off by a deadline. errors.Is with
// ErrFailure holds for timeouts too; the separate sentinel keeps the detail.
var ErrTimeout = fmt.Errorf("%w: timed out", ErrFailure)

// UnreadableSourceError marks a source PDF that cannot be opened. Permanent:
// the document is pinned failed and never retried automatically.
type UnreadableSourceError struct {
	Path string
	Err  error
}

func (e *UnreadableSourceError) Error() string {
	return fmt.Sprintf("unreadable source %s: %v", e.Path, e.Err)
}

func (e *UnreadableSourceError) Unwrap() error { return e.Err }

// sinkFault wraps a PageSink error so runBatch can tell resource faults
// apart from document faults.
type sinkFault struct{ err error }

func (e *sinkFault) Error() string { return fmt.Sprintf("page sink: %v", e.err) }
func (e *sinkFault) Unwrap() error { return e.err }

// Classify normalizes an arbitrary error into the engine taxonomy: nil and
// already-tagged errors pass through, deadline errors become ErrTimeout,
// everything else becomes ErrFailure.
func Classify(err error) error {
	var unreadable *UnreadableSourceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unreadable) || errors.Is(err, ErrFailure):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrFailure, err)
	}
}

// runBatch drives one document at a time through fn and tags the outcomes.
// When the batch context expires mid-batch, every unfinished document gets a
// timeout Result instead of the batch aborting.
func runBatch(ctx context.Context, batch []Source, emit PageSink, fn func(context.Context, Source, PageSink) (int, error)) ([]Result, error) {
	results := make([]Result, 0, len(batch))
	for i, src := range batch {
		if ctx.Err() != nil {
			for _, rest := range batch[i:] {
				results = append(results, Result{DocID: rest.DocID, Err: Classify(ctx.Err())})
			}
			return results, nil
		}
		pages, err := fn(ctx, src, emit)
		var sink *sinkFault
		if errors.As(err, &sink) {
			results = append(results, Result{DocID: src.DocID, Pages: pages, Err: err})
			return results, fmt.Errorf("failed to persist pages for %s: %w", src.DocID, sink.err)
		}
		results = append(results, Result{DocID: src.DocID, Pages: pages, Err: Classify(err)})
	}
	return results, nil
}
