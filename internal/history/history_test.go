package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordSubmission("job-a", "first", "mps", 2))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.RecordSubmission("job-b", "second", "statevector", 1))

	entries, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "job-b", entries[0].JobID)
	assert.Equal(t, "second", entries[0].Label)
	assert.Equal(t, "statevector", entries[0].Algorithm)
	assert.Equal(t, 1, entries[0].Circuits)
	assert.Equal(t, "NEW", entries[0].Status)
	assert.Nil(t, entries[0].FinishedAt)

	assert.Equal(t, "job-a", entries[1].JobID)
}

func TestRecordOutcome(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordSubmission("job-a", "", "auto", 1))
	require.NoError(t, store.RecordOutcome("job-a", "ERROR", "simulator crashed"))

	entries, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "ERROR", entries[0].Status)
	assert.Equal(t, "simulator crashed", entries[0].Message)
	require.NotNil(t, entries[0].FinishedAt)
	assert.WithinDuration(t, time.Now().UTC(), *entries[0].FinishedAt, time.Minute)
}

func TestRecordSubmission_Idempotent(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordSubmission("job-a", "one", "mps", 1))
	require.NoError(t, store.RecordSubmission("job-a", "two", "mps", 1))

	entries, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "two", entries[0].Label)
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordSubmission("job-"+id, "", "mps", 1))
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := store.Recent(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecentEmpty(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
