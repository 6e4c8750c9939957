package merge

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxtract/arxtract/internal/corpus"
)

func scanFixture(t *testing.T, root string) *corpus.Inventory {
	t.Helper()
	inv, err := corpus.NewScanner(root, root).Scan()
	require.NoError(t, err)
	return inv
}

func writePage(t *testing.T, root, bucket, docID string, page int, text string) {
	t.Helper()
	dir := filepath.Join(root, bucket)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, corpus.ArtifactName(docID, page)), []byte(text), 0o644))
}

func writeSource(t *testing.T, root, bucket, docID string) {
	t.Helper()
	dir := filepath.Join(root, bucket)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, corpus.SourceName(docID)), []byte("%PDF-"+docID), 0o644))
}

func TestCombineHeaderAndReferenceExample(t *testing.T) {
	m := NewMerger(Rules{
		HeaderPatterns:  []*regexp.Regexp{regexp.MustCompile(`^Header$`)},
		StripReferences: true,
		CollapseBlanks:  true,
	})
	pages := []string{"Header\nBody A", "Body B\nReferences\n[1] ..."}
	assert.Equal(t, "Body A\nBody B", m.Combine(pages))
}

func TestCombineReferencesOnlyOnLastPage(t *testing.T) {
	m := NewMerger(DefaultRules())
	pages := []string{
		"Intro.\nReferences\nto prior work appear throughout.",
		"Closing body.\n## References\n[1] Someone",
	}
	got := m.Combine(pages)
	assert.Contains(t, got, "to prior work appear throughout.",
		"an interior page must never be truncated")
	assert.NotContains(t, got, "[1] Someone")
}

func TestCombineDropsAllReferencesLastPage(t *testing.T) {
	m := NewMerger(DefaultRules())
	pages := []string{"# Title\nBody.", "# References\n[1] A\n[2] B"}
	assert.Equal(t, "# Title\nBody.", m.Combine(pages))
}

func TestMergeCompleteDocument(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "2310", "a")
	writePage(t, root, "2310", "a", 1, "arXiv:2310.1v1 [cs.CL] 1 Oct 2023\n# Title\nFirst page body.")
	writePage(t, root, "2310", "a", 2, "Second page body.\n## References\n[1] Prior work")

	inv := scanFixture(t, root)
	e, ok := inv.Lookup("a")
	require.True(t, ok)

	m := NewMerger(DefaultRules())
	got, err := m.Merge(e, 2)
	require.NoError(t, err)
	assert.Equal(t, "# Title\nFirst page body.\nSecond page body.", got)

	again, err := m.Merge(e, 2)
	require.NoError(t, err)
	assert.Equal(t, got, again, "regeneration is byte-identical")
}

func TestMergeIncompleteInput(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "2310", "a")
	writePage(t, root, "2310", "a", 1, "one")
	writePage(t, root, "2310", "a", 3, "three")

	inv := scanFixture(t, root)
	e, _ := inv.Lookup("a")
	m := NewMerger(DefaultRules())

	t.Run("gap inside the range", func(t *testing.T) {
		_, err := m.Merge(e, 2)
		var incomplete *IncompleteInputError
		require.ErrorAs(t, err, &incomplete)
		assert.Contains(t, incomplete.Reason, "missing page 2")
	})

	t.Run("count mismatch", func(t *testing.T) {
		_, err := m.Merge(e, 3)
		var incomplete *IncompleteInputError
		require.ErrorAs(t, err, &incomplete)
		assert.Contains(t, incomplete.Reason, "want 3")
	})

	t.Run("unknown expected count", func(t *testing.T) {
		_, err := m.Merge(e, 0)
		var incomplete *IncompleteInputError
		require.ErrorAs(t, err, &incomplete)
	})
}

func TestMergeEmptyPage(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "2310", "a")
	writePage(t, root, "2310", "a", 1, "one")
	writePage(t, root, "2310", "a", 2, "")

	inv := scanFixture(t, root)
	e, _ := inv.Lookup("a")

	_, err := NewMerger(DefaultRules()).Merge(e, 2)
	var incomplete *IncompleteInputError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Reason, "page 2 is empty")
}

func TestWriteMerged(t *testing.T) {
	root := t.TempDir()

	path, err := WriteMerged(root, "2310", "a", "merged body")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2310", "a.mmd"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "merged body", string(data))

	_, err = WriteMerged(root, "2310", "a", "merged body")
	require.NoError(t, err, "rewrites are safe")

	entries, err := os.ReadDir(filepath.Join(root, "2310"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}
