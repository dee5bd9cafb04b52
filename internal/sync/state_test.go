package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreFreshAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")

	s, err := LoadStateStore(path)
	require.NoError(t, err)
	assert.False(t, s.Linked())
	assert.True(t, s.LastPullAt().IsZero())
	assert.Equal(t, 0, s.QueueLen())

	require.NoError(t, s.SetLinked("col-1"))
	require.NoError(t, s.Enqueue("doc-1", "a.json"))
	require.NoError(t, s.SetLastPullAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	reloaded, err := LoadStateStore(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Linked())
	assert.Equal(t, "col-1", reloaded.CollectionID())
	assert.Equal(t, 1, reloaded.QueueLen())
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), reloaded.LastPullAt())
}

func TestStateStoreEnqueueCollapses(t *testing.T) {
	s, err := LoadStateStore(filepath.Join(t.TempDir(), "sync.json"))
	require.NoError(t, err)

	require.NoError(t, s.Enqueue("doc-1", "a.json"))
	entry, ok := s.QueuedEntry("doc-1")
	require.True(t, ok)
	first := entry.QueuedAt

	require.NoError(t, s.Enqueue("doc-1", "moved/a.json"))
	require.NoError(t, s.EnqueueTombstone("doc-1", "moved/a.json"))

	assert.Equal(t, 1, s.QueueLen(), "re-enqueueing the same document keeps one entry")
	entry, ok = s.QueuedEntry("doc-1")
	require.True(t, ok)
	assert.Equal(t, "moved/a.json", entry.RelPath)
	assert.True(t, entry.Tombstone, "the latest intent wins")
	assert.Equal(t, first, entry.QueuedAt, "queue position survives re-enqueues")
}

func TestStateStoreQueueSnapshotOrder(t *testing.T) {
	s, err := LoadStateStore(filepath.Join(t.TempDir(), "sync.json"))
	require.NoError(t, err)

	require.NoError(t, s.Enqueue("a", "a.json"))
	require.NoError(t, s.Enqueue("b", "b.json"))
	require.NoError(t, s.Enqueue("c", "c.json"))

	entries := s.Queue()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].DocumentID)
	assert.Equal(t, "b", entries[1].DocumentID)
	assert.Equal(t, "c", entries[2].DocumentID)

	// mutating the snapshot must not touch the store
	entries[0].RelPath = "elsewhere.json"
	fresh, ok := s.QueuedEntry("a")
	require.True(t, ok)
	assert.Equal(t, "a.json", fresh.RelPath)
}

func TestStateStoreDequeue(t *testing.T) {
	s, err := LoadStateStore(filepath.Join(t.TempDir(), "sync.json"))
	require.NoError(t, err)

	require.NoError(t, s.Enqueue("doc-1", "a.json"))
	require.NoError(t, s.Dequeue("doc-1"))
	require.NoError(t, s.Dequeue("doc-1"), "dequeueing twice is a no-op")
	assert.Equal(t, 0, s.QueueLen())
}

func TestStateStoreCorruptFileResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := LoadStateStore(path)
	require.NoError(t, err, "a corrupt state file must not take the pile down")
	assert.False(t, s.Linked())
	assert.Equal(t, 0, s.QueueLen())

	backups, err := filepath.Glob(path + ".*.bak")
	require.NoError(t, err)
	assert.Len(t, backups, 1, "the corrupt file is moved aside, not destroyed")
}

func TestStateStoreLastError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	s, err := LoadStateStore(path)
	require.NoError(t, err)

	require.NoError(t, s.SetLastError(assert.AnError))
	assert.Equal(t, assert.AnError.Error(), s.LastError())

	reloaded, err := LoadStateStore(path)
	require.NoError(t, err)
	assert.Equal(t, assert.AnError.Error(), reloaded.LastError())

	require.NoError(t, s.SetLastError(nil))
	assert.Empty(t, s.LastError())
}

func TestStateStoreUnlinkKeepsProgress(t *testing.T) {
	s, err := LoadStateStore(filepath.Join(t.TempDir(), "sync.json"))
	require.NoError(t, err)

	require.NoError(t, s.SetLinked("col-1"))
	require.NoError(t, s.Enqueue("doc-1", "a.json"))
	mark := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastPullAt(mark))

	require.NoError(t, s.SetUnlinked())
	assert.False(t, s.Linked())
	assert.Equal(t, "col-1", s.CollectionID(), "collection id survives for relink")
	assert.Equal(t, 1, s.QueueLen(), "queue survives unlink")
	assert.Equal(t, mark, s.LastPullAt(), "watermark survives unlink")
}
