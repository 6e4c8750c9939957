package status

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxtract/arxtract/internal/corpus"
)

type fakeCounter struct {
	counts map[string]int
	errs   map[string]error
}

func (f *fakeCounter) PageCount(path string) (int, error) {
	if err, ok := f.errs[path]; ok {
		return 0, err
	}
	if n, ok := f.counts[path]; ok {
		return n, nil
	}
	return 0, errors.New("unexpected path " + path)
}

type fixture struct {
	root    string
	counter *fakeCounter
	t       *testing.T
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		root:    t.TempDir(),
		counter: &fakeCounter{counts: map[string]int{}, errs: map[string]error{}},
		t:       t,
	}
}

func (f *fixture) addSource(bucket, docID string, pages int) {
	f.write(filepath.Join(bucket, docID+".pdf"), "%PDF-"+docID)
	f.counter.counts[filepath.Join(f.root, bucket, docID+".pdf")] = pages
}

func (f *fixture) addUnreadable(bucket, docID string) {
	f.write(filepath.Join(bucket, docID+".pdf"), "garbage")
	f.counter.errs[filepath.Join(f.root, bucket, docID+".pdf")] = errors.New("unreadable source")
}

func (f *fixture) addPage(bucket, docID string, page int, text string) {
	f.write(filepath.Join(bucket, corpus.ArtifactName(docID, page)), text)
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) reconciler() *Reconciler {
	inv, err := corpus.NewScanner(f.root, f.root).Scan()
	require.NoError(f.t, err)
	return NewReconciler(inv, f.counter)
}

func TestStatusDerivation(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "A1", 3)
	f.addPage("2310", "A1", 1, "one")
	f.addPage("2310", "A1", 2, "two")

	f.addSource("2310", "A2", 3)
	f.addPage("2310", "A2", 1, "one")
	f.addPage("2310", "A2", 2, "two")
	f.addPage("2310", "A2", 3, "three")

	f.addSource("2310", "A3", 3)
	f.addPage("2310", "A3", 1, "one")
	f.addPage("2310", "A3", 3, "three")

	f.addSource("2310", "A4", 2)

	r := f.reconciler()

	tests := []struct {
		docID  string
		want   Completion
		detail string
	}{
		{"A1", InProgress, "2/3 pages"},
		{"A2", Complete, ""},
		{"A3", InProgress, "2/3 pages"},
		{"A4", NotStarted, ""},
	}
	for _, tc := range tests {
		t.Run(tc.docID, func(t *testing.T) {
			got, err := r.Status(tc.docID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status, "expected %s", tc.want)
			assert.Equal(t, tc.detail, got.Detail)
		})
	}
}

func TestEmptyPageBlocksCompletion(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "A1", 2)
	f.addPage("2310", "A1", 1, "one")
	f.addPage("2310", "A1", 2, "")

	got, err := f.reconciler().Status("A1")
	require.NoError(t, err)
	assert.Equal(t, InProgress, got.Status)
	assert.Equal(t, "1/2 pages", got.Detail)
}

func TestExtraPageBlocksCompletion(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "A1", 2)
	f.addPage("2310", "A1", 1, "one")
	f.addPage("2310", "A1", 2, "two")
	f.addPage("2310", "A1", 3, "stale leftover")

	got, err := f.reconciler().Status("A1")
	require.NoError(t, err)
	assert.Equal(t, InProgress, got.Status, "a superset of {1..N} is never complete")
}

func TestUnreadableSourceIsFailed(t *testing.T) {
	f := newFixture(t)
	f.addUnreadable("2310", "bad")

	got, err := f.reconciler().Status("bad")
	require.NoError(t, err)
	assert.Equal(t, Failed, got.Status)
	assert.Contains(t, got.Detail, "unreadable")
	assert.Zero(t, got.Expected)
}

func TestOrphanArtifactsAreFailed(t *testing.T) {
	f := newFixture(t)
	f.addPage("2310", "ghost", 1, "page without a source")

	got, err := f.reconciler().Status("ghost")
	require.NoError(t, err)
	assert.Equal(t, Failed, got.Status)
	assert.Equal(t, "source missing", got.Detail)
}

func TestStatusUnknownDocument(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "A1", 1)

	_, err := f.reconciler().Status("nope")
	require.ErrorIs(t, err, corpus.ErrUnknownDocument)
}

func TestStatusRefreshedSeesNewPages(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "A1", 2)
	f.addPage("2310", "A1", 1, "one")

	r := f.reconciler()
	got, err := r.Status("A1")
	require.NoError(t, err)
	require.Equal(t, InProgress, got.Status)

	// A runner finishes page 2 after the scan.
	f.addPage("2310", "A1", 2, "two")

	got, err = r.StatusRefreshed("A1")
	require.NoError(t, err)
	assert.Equal(t, Complete, got.Status)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addSource("2310", "a", 1)
	f.addPage("2310", "a", 1, "done")
	f.addSource("2310", "b", 2)
	f.addPage("2310", "b", 1, "half")
	f.addSource("2311", "c", 1)
	f.addUnreadable("2311", "d")
	f.write(filepath.Join("2311", "junk_x.mmd"), "malformed")

	snap := f.reconciler().Snapshot()

	assert.Equal(t, 4, snap.Documents)
	assert.Equal(t, 2, snap.Pages)
	assert.Equal(t, 1, snap.Counts[Complete])
	assert.Equal(t, 1, snap.Counts[InProgress])
	assert.Equal(t, 1, snap.Counts[NotStarted])
	assert.Equal(t, 1, snap.Counts[Failed])
	assert.Equal(t, 1, snap.Malformed)
	assert.InDelta(t, 25.0, snap.CompletePercent(), 0.001)
	assert.False(t, snap.GeneratedAt.IsZero())

	require.Len(t, snap.Buckets, 2)
	assert.Equal(t, "2310", snap.Buckets[0].Bucket)
	assert.Equal(t, 2, snap.Buckets[0].Documents)
	assert.Equal(t, "2311", snap.Buckets[1].Bucket)
	assert.Equal(t, 1, snap.Buckets[1].Counts[Failed])
}

func TestCompletionStrings(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "failed", Failed.String())

	b, err := Complete.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "complete", string(b))
}
