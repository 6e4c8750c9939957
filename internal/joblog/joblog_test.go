package joblog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(docID string, status Status) Outcome {
	return Outcome{
		RunID:       "run-1",
		DocID:       docID,
		Bucket:      "2310",
		AttemptedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:      status,
	}
}

func TestLatest(t *testing.T) {
	l := New()
	l.Append(outcome("a", StatusFailed))
	l.Append(outcome("b", StatusSuccess))
	l.Append(outcome("a", StatusSuccess))

	got, ok := l.Latest("a")
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, got.Status)

	_, ok = l.Latest("missing")
	assert.False(t, ok)
}

func TestFailureStreak(t *testing.T) {
	tests := []struct {
		name    string
		history []Status
		want    int
	}{
		{"empty", nil, 0},
		{"single failure", []Status{StatusFailed}, 1},
		{"run of failures", []Status{StatusFailed, StatusFailed, StatusFailed}, 3},
		{"success resets", []Status{StatusFailed, StatusFailed, StatusSuccess}, 0},
		{"partial resets", []Status{StatusFailed, StatusPartial}, 0},
		{"failures after success", []Status{StatusSuccess, StatusFailed, StatusFailed}, 2},
		{"skips are transparent", []Status{StatusFailed, StatusSkipped, StatusSkipped}, 1},
		{"skip between failures", []Status{StatusFailed, StatusSkipped, StatusFailed}, 2},
		{"only skips", []Status{StatusSkipped}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := New()
			for _, s := range tc.history {
				l.Append(outcome("a", s))
			}
			assert.Equal(t, tc.want, l.FailureStreak("a"))
		})
	}
}

func TestCountByStatus(t *testing.T) {
	l := New()
	l.Append(outcome("a", StatusSuccess))
	l.Append(outcome("b", StatusSuccess))
	l.Append(outcome("c", StatusFailed))

	counts := l.CountByStatus()
	assert.Equal(t, 2, counts[StatusSuccess])
	assert.Equal(t, 1, counts[StatusFailed])
	assert.Zero(t, counts[StatusSkipped])
}

func TestAppendAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)

	first := []Outcome{outcome("a", StatusFailed), outcome("b", StatusSuccess)}
	require.NoError(t, AppendFile(path, first))

	second := []Outcome{outcome("a", StatusSuccess)}
	require.NoError(t, AppendFile(path, second))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	latest, ok := loaded.Latest("a")
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, latest.Status)
	assert.Equal(t, "2310", latest.Bucket)
	assert.True(t, latest.AttemptedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestLoadFileMissing(t *testing.T) {
	l, err := LoadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, l.Len())
}

func TestLoadFileSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, AppendFile(path, []Outcome{outcome("a", StatusFailed)}))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{torn write\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, AppendFile(path, []Outcome{outcome("a", StatusSuccess)}))

	l, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.FailureStreak("a"))
}

func TestAppendFileNoOutcomes(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, AppendFile(path, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty append must not create the file")
}
