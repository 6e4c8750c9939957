package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxtract/arxtract/internal/status"
)

type stubCounter map[string]int

func (s stubCounter) PageCount(path string) (int, error) {
	if n, ok := s[filepath.Base(path)]; ok {
		return n, nil
	}
	return 0, errors.New("unreadable source")
}

func newDriver(t *testing.T, root string, counter stubCounter) *Driver {
	t.Helper()
	inv := scanFixture(t, root)
	return &Driver{
		Merger:     NewMerger(DefaultRules()),
		Inventory:  inv,
		Reconciler: status.NewReconciler(inv, counter),
		Root:       root,
	}
}

func TestDriverMergesCompleteDocuments(t *testing.T) {
	root := t.TempDir()
	counter := stubCounter{"done.pdf": 2, "half.pdf": 2}

	writeSource(t, root, "2310", "done")
	writePage(t, root, "2310", "done", 1, "# T\npage one")
	writePage(t, root, "2310", "done", 2, "page two")

	writeSource(t, root, "2310", "half")
	writePage(t, root, "2310", "half", 1, "only page")

	stats, err := newDriver(t, root, counter).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 1, stats.Incomplete)
	assert.Zero(t, stats.Skipped)

	data, err := os.ReadFile(filepath.Join(root, "2310", "done.mmd"))
	require.NoError(t, err)
	assert.Equal(t, "# T\npage one\npage two", string(data))
}

func TestDriverSkipsAlreadyMerged(t *testing.T) {
	root := t.TempDir()
	counter := stubCounter{"a.pdf": 1}

	writeSource(t, root, "2310", "a")
	writePage(t, root, "2310", "a", 1, "body")

	d := newDriver(t, root, counter)
	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Merged)

	d = newDriver(t, root, counter)
	stats, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Merged)
	assert.Equal(t, 1, stats.Skipped)

	d = newDriver(t, root, counter)
	d.Force = true
	stats, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged, "force re-merges")
}

func TestDriverFrontMatterGate(t *testing.T) {
	root := t.TempDir()
	counter := stubCounter{"article.pdf": 1, "scan.pdf": 1}

	writeSource(t, root, "2310", "article")
	writePage(t, root, "2310", "article", 1, "# Title\n###### Abstract\nWe study.")

	writeSource(t, root, "2310", "scan")
	writePage(t, root, "2310", "scan", 1, "garbled text with no structure")

	d := newDriver(t, root, counter)
	d.RequireFrontMatter = true
	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 1, stats.Skipped)

	_, err = os.Stat(filepath.Join(root, "2310", "scan.mmd"))
	assert.True(t, os.IsNotExist(err))
}

func TestDriverHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	counter := stubCounter{"a.pdf": 1}
	writeSource(t, root, "2310", "a")
	writePage(t, root, "2310", "a", 1, "body")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDriver(t, root, counter).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDriverSeparateMergedRoot(t *testing.T) {
	srcRoot := t.TempDir()
	outRoot := t.TempDir()
	counter := stubCounter{"a.pdf": 1}

	writeSource(t, srcRoot, "2310", "a")
	writePage(t, srcRoot, "2310", "a", 1, "body")

	d := newDriver(t, srcRoot, counter)
	d.Root = outRoot
	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Merged)

	data, err := os.ReadFile(filepath.Join(outRoot, "2310", "a.mmd"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}
