package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record("VR_MODE", "VR", "begin", 0))
	require.NoError(t, j.Record("LAUNCH", "LAUNCH", "begin_for", 2500*time.Millisecond))
	require.NoError(t, j.Record("VR_MODE", "VR", "end", 0))

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "end", entries[0].Action)
	assert.Equal(t, "begin_for", entries[1].Action)
	assert.Equal(t, "begin", entries[2].Action)

	assert.Equal(t, "LAUNCH", entries[1].Event)
	assert.Equal(t, 2500*time.Millisecond, entries[1].Duration)
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, time.Minute)
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record("INTERACTION", "INTERACTION", "begin_for", time.Second))
	}

	entries, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecentEmpty(t *testing.T) {
	j := openTestJournal(t)

	entries, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal

	assert.NoError(t, j.Record("VR_MODE", "VR", "begin", 0))
	entries, err := j.Recent(10)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, j.Close())
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenReadOnlyReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record("VR_MODE", "VR", "begin", 0))
	require.NoError(t, j.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	entries, err := ro.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "VR_MODE", entries[0].Event)
	assert.Equal(t, "begin", entries[0].Action)
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}
