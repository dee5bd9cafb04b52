package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload(t *testing.T) {
	pf := &PostFile{
		ID:        "doc-1",
		Title:     "Hello",
		Content:   "# Markdown content",
		ContentMD: "# Markdown content",
		Tags:      []string{"a"},
	}

	t.Run("base schema gets base columns only", func(t *testing.T) {
		payload := buildPayload(&PostFile{ID: "doc-1", Title: "Hello", Content: "# Markdown content"},
			pilesdk.NewSchemaCapabilities(), "user-1")
		assert.Equal(t, map[string]any{
			"title":   "Hello",
			"content": "# Markdown content",
		}, payload, "absent columns are omitted, never null-padded")
	})

	t.Run("optional columns appear when the schema has them", func(t *testing.T) {
		caps := pilesdk.NewSchemaCapabilities(pilesdk.ColumnContentMD, pilesdk.ColumnUserID, pilesdk.ColumnEtag)
		payload := buildPayload(pf, caps, "user-1")
		assert.Equal(t, "# Markdown content", payload["content_md"])
		assert.Equal(t, "user-1", payload["user_id"])
		assert.Equal(t, pf.ContentHash(), payload["etag"])
		assert.Equal(t, []string{"a"}, payload["tags"])
	})

	t.Run("present column with nothing to say stays absent", func(t *testing.T) {
		caps := pilesdk.NewSchemaCapabilities(pilesdk.ColumnContentMD, pilesdk.ColumnUserID)
		payload := buildPayload(&PostFile{ID: "doc-1", Title: "t", Content: "c"}, caps, "")
		assert.NotContains(t, payload, "content_md", "empty contentMD is not sent")
		assert.NotContains(t, payload, "user_id", "anonymous pushes carry no user id")
	})
}

func TestPushAdaptsToRemoteSchema(t *testing.T) {
	t.Run("minimal deployment", func(t *testing.T) {
		f := newFakeRemote(t)
		se := newTestEngine(t, newTestSDK(t, f))
		writeDoc(t, se, "a.json", &PostFile{
			ID: "doc-1", Title: "Hello", Content: "body", ContentMD: "# body",
			UpdatedAt: time.Now().UTC().Add(-time.Hour),
		})
		_, err := se.Link(context.Background(), "")
		require.NoError(t, err)

		_, err = se.RunSync(context.Background(), SyncModeBoth)
		require.NoError(t, err)

		payload := f.lastUpsertPayload()
		assert.Equal(t, map[string]any{
			"id":      "doc-1",
			"title":   "Hello",
			"content": "body",
		}, payload, "columns the deployment lacks never reach the wire")
	})

	t.Run("full deployment", func(t *testing.T) {
		f := newFakeRemote(t)
		f.contentMD = true
		f.userID = true
		f.etag = true
		se := newTestEngine(t, newTestSDK(t, f))
		pf := &PostFile{
			ID: "doc-1", Title: "Hello", Content: "body", ContentMD: "# body",
			UpdatedAt: time.Now().UTC().Add(-time.Hour),
		}
		writeDoc(t, se, "a.json", pf)
		_, err := se.Link(context.Background(), "")
		require.NoError(t, err)

		_, err = se.RunSync(context.Background(), SyncModeBoth)
		require.NoError(t, err)

		row := f.row(se.state.CollectionID(), "doc-1")
		require.NotNil(t, row)
		assert.Equal(t, "# body", row.ContentMD)
		assert.Equal(t, "user-1", row.UserID)
		assert.Equal(t, pf.ContentHash(), row.Etag)
	})
}

func TestPushEmptyQueueMakesNoRemoteCalls(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	require.NoError(t, se.state.SetLinked(f.seedCollection("journal")))

	f.srv.Close() // any remote call would now fail loudly

	res, err := se.push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Pushed)
	assert.Zero(t, res.Unchanged)
}

func TestPushUnchangedContentSkipsUpsert(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	settleDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "alpha",
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	upsertsBefore := f.upsertCount()

	// a watcher echo: the file changed on disk but not in content
	require.NoError(t, se.state.Enqueue("doc-1", "a.json"))

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Unchanged)
	assert.Equal(t, 0, se.state.QueueLen())
	assert.Equal(t, upsertsBefore, f.upsertCount())
}

func TestPushRenameUpdatesJournalWithoutUpsert(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	settleDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "alpha",
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	upsertsBefore := f.upsertCount()

	require.NoError(t, os.Rename(se.pile.AbsPath("a.json"), se.pile.AbsPath("moved.json")))
	require.NoError(t, se.state.Enqueue("doc-1", "moved.json"))

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Unchanged, "the remote has no notion of paths")
	assert.Equal(t, upsertsBefore, f.upsertCount())

	rec, err := se.journal.Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "moved.json", rec.RelPath)
}

func TestPushTombstonePropagates(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	settleDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "alpha",
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	colID := se.state.CollectionID()

	require.NoError(t, os.Remove(se.pile.AbsPath("a.json")))
	require.NoError(t, se.state.EnqueueTombstone("doc-1", "a.json"))

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Deleted)

	row := f.row(colID, "doc-1")
	require.NotNil(t, row, "deletes are soft; the row remains as a tombstone")
	assert.True(t, row.Deleted)

	rec, err := se.journal.Get("doc-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, se.state.QueueLen())
}

func TestPushTombstoneForUnknownDocIsLocalOnly(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	require.NoError(t, se.state.SetLinked(f.seedCollection("journal")))

	require.NoError(t, se.state.EnqueueTombstone("ghost", "ghost.json"))

	res, err := se.push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Deleted, "a document that never pushed needs no remote delete")
	assert.Equal(t, 0, se.state.QueueLen())
}

func TestPushRecreatedFileBeatsStaleTombstone(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	settleDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "alpha",
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	colID := se.state.CollectionID()

	// deleted then restored before the queue drained
	require.NoError(t, se.state.EnqueueTombstone("doc-1", "a.json"))
	writeDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "restored",
		UpdatedAt: time.Now().UTC().Add(time.Hour),
	})

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Pushed)
	assert.Zero(t, res.Push.Deleted)
	assert.Equal(t, "restored", f.row(colID, "doc-1").Content)
	assert.False(t, f.row(colID, "doc-1").Deleted)
}

func TestPushAttachmentsUploadOnce(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))

	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg-bytes"), 0o644))
	hash, size, err := se.attachments.Put(src)
	require.NoError(t, err)

	ref := pilesdk.AttachmentRef{ContentHash: hash, Filename: "photo.jpg", SizeBytes: size}
	past := time.Now().UTC().Add(-time.Hour)
	writeDoc(t, se, "a.json", &PostFile{ID: "doc-1", Title: "A", Content: "one", Attachments: []pilesdk.AttachmentRef{ref}, UpdatedAt: past})
	writeDoc(t, se, "b.json", &PostFile{ID: "doc-2", Title: "B", Content: "two", Attachments: []pilesdk.AttachmentRef{ref}, UpdatedAt: past})
	_, err = se.Link(context.Background(), "")
	require.NoError(t, err)

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Push.Pushed)
	assert.Equal(t, 1, f.blobPutCount(), "a blob shared by two documents uploads once")
}

func TestPushMissingAttachmentKeepsEntryQueued(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	require.NoError(t, se.state.SetLinked(f.seedCollection("journal")))

	writeDoc(t, se, "a.json", &PostFile{
		ID: "doc-1", Title: "A", Content: "one",
		Attachments: []pilesdk.AttachmentRef{{ContentHash: "0000dead", Filename: "gone.png"}},
		UpdatedAt:   time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, se.state.Enqueue("doc-1", "a.json"))

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err, "a document-scoped failure does not fail the pass")
	require.Len(t, res.Push.Errors, 1)
	assert.Equal(t, "doc-1", res.Push.Errors[0].DocumentID)
	assert.Equal(t, 1, se.state.QueueLen(), "the entry stays queued for retry")
	assert.Contains(t, se.state.LastError(), "1 document(s) failed to sync")
}

func TestPushPartialBatchIsolation(t *testing.T) {
	f := newFakeRemote(t)
	se := newTestEngine(t, newTestSDK(t, f))
	require.NoError(t, se.state.SetLinked(f.seedCollection("journal")))

	past := time.Now().UTC().Add(-time.Hour)
	writeDoc(t, se, "bad.json", &PostFile{
		ID: "doc-bad", Title: "Bad", Content: "x",
		Attachments: []pilesdk.AttachmentRef{{ContentHash: "0000dead"}},
		UpdatedAt:   past,
	})
	writeDoc(t, se, "good.json", &PostFile{ID: "doc-good", Title: "Good", Content: "y", UpdatedAt: past})
	require.NoError(t, se.state.Enqueue("doc-bad", "bad.json"))
	require.NoError(t, se.state.Enqueue("doc-good", "good.json"))

	res, err := se.RunSync(context.Background(), SyncModeBoth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Pushed, "healthy documents sync despite a sick neighbor")
	require.Len(t, res.Push.Errors, 1)
	assert.Equal(t, "doc-bad", res.Push.Errors[0].DocumentID)
	assert.Equal(t, 1, se.state.QueueLen())
}
