// Package runner drives batch extraction over the corpus: it filters and
// batches eligible documents, feeds one worker per engine, enforces a
// per-batch deadline, and records a tagged outcome for every document it
// touched. One document's failure never aborts its batch or the run; only
// resource faults (an unwritable artifact tree, a failing outcome log) do.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/engine"
	"github.com/arxtract/arxtract/internal/joblog"
	"github.com/arxtract/arxtract/internal/status"
)

// Options configure one run.
type Options struct {
	BatchSize      int
	BatchTimeout   time.Duration
	MaxRetries     int
	ForceReprocess bool
}

// Runner holds the moving parts of one extraction run. Build a fresh Runner
// per invocation; Run is not reentrant.
type Runner struct {
	Engines      []engine.Engine
	Inventory    *corpus.Inventory
	Reconciler   *status.Reconciler
	History      *joblog.Log
	ArtifactRoot string
	Options      Options

	// Persist, when set, is called with each chunk of outcomes as soon as
	// they are recorded, so an interrupted run still leaves a usable log.
	Persist func([]joblog.Outcome) error

	runID string

	mu       sync.Mutex
	outcomes []joblog.Outcome
}

type workItem struct {
	src      engine.Source
	expected int
}

// Run processes every eligible document and returns this run's outcomes in
// recording order. Outcomes are also appended to History and flushed through
// Persist as the run progresses. Cancelling ctx stops the run between
// batches: in-flight batches finish and their outcomes are kept.
func (r *Runner) Run(ctx context.Context) ([]joblog.Outcome, error) {
	if len(r.Engines) == 0 {
		return nil, errors.New("no engines configured")
	}
	opts := r.Options
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	r.runID = uuid.NewString()

	work, err := r.preflight()
	if err != nil {
		return r.collected(), err
	}
	batches := partition(work, opts.BatchSize)

	slog.Info("starting extraction run",
		"runId", r.runID,
		"eligible", len(work),
		"batches", len(batches),
		"workers", len(r.Engines),
		"batchSize", opts.BatchSize)

	eg, gctx := errgroup.WithContext(ctx)
	feed := make(chan []workItem)
	eg.Go(func() error {
		defer close(feed)
		for _, b := range batches {
			select {
			case feed <- b:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for _, eng := range r.Engines {
		eg.Go(func() error {
			return r.worker(gctx, eng, feed)
		})
	}
	runErr := eg.Wait()
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	outcomes := r.collected()
	counts := make(map[joblog.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	slog.Info("extraction run finished",
		"runId", r.runID,
		"documents", len(outcomes),
		"success", counts[joblog.StatusSuccess],
		"partial", counts[joblog.StatusPartial],
		"failed", counts[joblog.StatusFailed],
		"skipped", counts[joblog.StatusSkipped])
	return outcomes, runErr
}

// preflight classifies every inventory entry before any engine call:
// unreadable sources fail outright, complete documents and documents over
// their retry budget are skipped, the rest become work.
func (r *Runner) preflight() ([]workItem, error) {
	now := time.Now().UTC()
	var work []workItem
	var immediate []joblog.Outcome

	for _, e := range r.Inventory.Entries() {
		if e.SourceMissing() {
			continue
		}
		doc, err := r.Reconciler.Status(e.ID)
		if err != nil {
			return nil, err
		}
		base := joblog.Outcome{
			RunID:         r.runID,
			DocID:         e.ID,
			Bucket:        e.Bucket,
			AttemptedAt:   now,
			ExpectedPages: doc.Expected,
		}
		switch {
		case doc.Status == status.Complete && !r.Options.ForceReprocess:
			base.Status = joblog.StatusSkipped
			base.Error = "already complete"
			immediate = append(immediate, base)
		case !r.Options.ForceReprocess && r.History.FailureStreak(e.ID) > r.Options.MaxRetries:
			base.Status = joblog.StatusSkipped
			base.Error = "retry budget exhausted"
			immediate = append(immediate, base)
		case doc.Status == status.Failed:
			base.Status = joblog.StatusFailed
			base.Error = doc.Detail
			immediate = append(immediate, base)
		default:
			work = append(work, workItem{
				src:      engine.Source{DocID: e.ID, Bucket: e.Bucket, Path: e.Doc.Path},
				expected: doc.Expected,
			})
		}
	}
	if err := r.record(immediate); err != nil {
		return nil, err
	}
	return work, nil
}

func partition(work []workItem, size int) [][]workItem {
	var out [][]workItem
	for len(work) > 0 {
		n := min(size, len(work))
		out = append(out, work[:n])
		work = work[n:]
	}
	return out
}

func (r *Runner) worker(ctx context.Context, eng engine.Engine, feed <-chan []workItem) error {
	log := slog.With("runId", r.runID, "engine", eng.Name())
	for {
		if ctx.Err() != nil {
			log.Info("worker stopping between batches", "reason", ctx.Err())
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info("worker stopping between batches", "reason", ctx.Err())
			return nil
		case batch, ok := <-feed:
			if !ok {
				return nil
			}
			if err := r.runBatch(ctx, eng, log, batch); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) runBatch(ctx context.Context, eng engine.Engine, log *slog.Logger, batch []workItem) error {
	srcs := make([]engine.Source, len(batch))
	for i, w := range batch {
		srcs[i] = w.src
		if err := r.clearArtifacts(w.src); err != nil {
			return err
		}
	}

	// The batch deadline applies, but a graceful stop does not cut the
	// in-flight batch short; the worker observes cancellation afterwards.
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.Options.BatchTimeout)
	defer cancel()

	started := time.Now().UTC()
	log.Info("processing batch", "documents", len(batch))
	results, engErr := eng.Extract(bctx, srcs, r.sink)

	outcomes := r.tagOutcomes(batch, results, started)
	if err := r.record(outcomes); err != nil {
		return err
	}
	if engErr != nil {
		return fmt.Errorf("engine %s: %w", eng.Name(), engErr)
	}
	return nil
}

// clearArtifacts removes a document's page artifacts before a fresh attempt,
// so a successful retry leaves exactly {1..N} with no orphans from the
// failed attempt.
func (r *Runner) clearArtifacts(src engine.Source) error {
	e, ok := r.Inventory.Lookup(src.DocID)
	if !ok {
		return nil
	}
	for idx, pf := range e.Pages {
		if err := os.Remove(pf.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear stale artifact %s: %w", pf.Path, err)
		}
		delete(e.Pages, idx)
	}
	return nil
}

// sink persists one page the moment the engine produces it.
func (r *Runner) sink(src engine.Source, pg engine.Page) error {
	dir := filepath.Join(r.ArtifactRoot, src.Bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, corpus.ArtifactName(src.DocID, pg.Index)), []byte(pg.Text), 0o644)
}

func (r *Runner) tagOutcomes(batch []workItem, results []engine.Result, started time.Time) []joblog.Outcome {
	byID := make(map[string]engine.Result, len(results))
	for _, res := range results {
		byID[res.DocID] = res
	}
	outcomes := make([]joblog.Outcome, 0, len(batch))
	for _, w := range batch {
		res, ok := byID[w.src.DocID]
		if !ok {
			res = engine.Result{
				DocID: w.src.DocID,
				Err:   fmt.Errorf("%w: engine returned no result", engine.ErrFailure),
			}
		}
		o := joblog.Outcome{
			RunID:         r.runID,
			DocID:         w.src.DocID,
			Bucket:        w.src.Bucket,
			AttemptedAt:   started,
			PagesProduced: res.Pages,
			ExpectedPages: w.expected,
		}
		var unreadable *engine.UnreadableSourceError
		switch {
		case res.Err != nil && errors.As(res.Err, &unreadable):
			o.Status = joblog.StatusFailed
			o.Error = res.Err.Error()
		case res.Err != nil && res.Pages > 0:
			o.Status = joblog.StatusPartial
			o.Error = res.Err.Error()
		case res.Err != nil:
			o.Status = joblog.StatusFailed
			o.Error = res.Err.Error()
		case res.Pages == w.expected:
			o.Status = joblog.StatusSuccess
		default:
			o.Status = joblog.StatusPartial
			o.Error = fmt.Sprintf("produced %d of %d pages", res.Pages, w.expected)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// record appends outcomes to the in-memory history, the run's result list,
// and the persistent log. A persistence failure is a resource fault.
func (r *Runner) record(outcomes []joblog.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		r.History.Append(o)
	}
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcomes...)
	r.mu.Unlock()
	if r.Persist != nil {
		if err := r.Persist(outcomes); err != nil {
			return fmt.Errorf("failed to persist outcomes: %w", err)
		}
	}
	return nil
}

func (r *Runner) collected() []joblog.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]joblog.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}
