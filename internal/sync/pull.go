package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pilehq/pilebox/internal/pilesdk"
	"golang.org/x/sync/errgroup"
)

// PullResult summarizes one pull pass.
type PullResult struct {
	Applied   int         `json:"applied"`
	Deleted   int         `json:"deleted"`
	Conflicts int         `json:"conflicts"`
	Unchanged int         `json:"unchanged"`
	Errors    []*DocError `json:"errors,omitempty"`
	AsOf      time.Time   `json:"asOf"`
}

// pull lists remote changes since the watermark and applies them locally.
// The watermark only advances when every listed document landed cleanly,
// so failed documents are listed again on the next pass.
func (se *SyncEngine) pull(ctx context.Context) (*PullResult, error) {
	result := &PullResult{}
	lastPull := se.state.LastPullAt()

	resp, err := se.sdk.Posts.List(ctx, &pilesdk.ListPostsParams{
		CollectionID: se.state.CollectionID(),
		UpdatedAfter: lastPull,
	})
	if err != nil {
		return result, classifyRemoteError(err)
	}

	result.AsOf = resp.AsOf
	if len(resp.Posts) > 0 {
		slog.Info("pull start", "pile", se.pile.Root, "changed", len(resp.Posts), "since", lastPull)
	}

	for _, remote := range resp.Posts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := se.pullPost(ctx, remote, lastPull, result); err != nil {
			if isAbortError(err) || errors.Is(err, context.Canceled) {
				return result, err
			}
			result.Errors = append(result.Errors, &DocError{
				DocumentID: remote.ID,
				Error:      err.Error(),
			})
		}
	}

	// a dirty pass keeps the old watermark so the failed documents come
	// back next time; this is also what makes an interrupted first pull
	// resumable
	if len(result.Errors) == 0 {
		asOf := resp.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		if err := se.state.SetLastPullAt(asOf); err != nil {
			return result, err
		}
	}

	if len(resp.Posts) > 0 {
		slog.Info("pull done", "pile", se.pile.Root,
			"applied", result.Applied, "deleted", result.Deleted,
			"conflicts", result.Conflicts, "unchanged", result.Unchanged,
			"errors", len(result.Errors))
	}
	return result, nil
}

// pullPost reconciles one remote change against the local pile.
func (se *SyncEngine) pullPost(ctx context.Context, remote *pilesdk.RemotePost, lastPull time.Time, result *PullResult) error {
	record, err := se.journal.Get(remote.ID)
	if err != nil {
		return err
	}

	if record == nil {
		return se.pullNewPost(ctx, remote, result)
	}

	// a stalled watermark can re-list rows the journal already
	// reconciled; an unchanged remote row means any local divergence is
	// a pending push, never a conflict
	if !remote.Deleted && remote.UpdatedAt.Equal(record.RemoteUpdatedAt) {
		result.Unchanged++
		return nil
	}

	// a queued rename means the file moved since the journal entry
	relPath := record.RelPath
	if entry, ok := se.state.QueuedEntry(remote.ID); ok && entry.RelPath != "" {
		relPath = entry.RelPath
	}
	absPath := se.pile.AbsPath(relPath)

	pf, info, loadErr := LoadPostFile(absPath)
	localExists := loadErr == nil
	if loadErr != nil && !os.IsNotExist(loadErr) {
		// unreadable counts as locally modified: never overwrite what we
		// cannot compare
		return se.recordConflict(remote, relPath, time.Now().UTC(), result)
	}

	if !localExists {
		return se.pullAgainstMissingLocal(ctx, remote, relPath, result)
	}

	localUpdatedAt := pf.LocalUpdatedAt(info)
	localChanged := localUpdatedAt.After(lastPull)

	// both sides may have arrived at the same content independently,
	// most commonly after this client pushed and the watcher saw its
	// own write
	if localChanged && !remote.Deleted && pf.ContentHash() == remoteContentHash(remote) {
		if err := se.journal.Set(&DocRecord{
			DocumentID:      remote.ID,
			RelPath:         relPath,
			ContentHash:     pf.ContentHash(),
			Size:            info.Size(),
			LocalUpdatedAt:  localUpdatedAt,
			RemoteUpdatedAt: remote.UpdatedAt,
		}); err != nil {
			return err
		}
		result.Unchanged++
		return nil
	}

	if localChanged {
		return se.recordConflict(remote, relPath, localUpdatedAt, result)
	}

	if remote.Deleted {
		se.watcher.IgnoreOnce(absPath)
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", relPath, err)
		}
		if err := se.journal.Delete(remote.ID); err != nil {
			return err
		}
		if err := se.state.Dequeue(remote.ID); err != nil {
			return err
		}
		result.Deleted++
		return nil
	}

	return se.applyRemote(ctx, remote, relPath, result)
}

// pullNewPost handles a remote document the journal has never seen.
func (se *SyncEngine) pullNewPost(ctx context.Context, remote *pilesdk.RemotePost, result *PullResult) error {
	if remote.Deleted {
		// tombstone for a document we never had
		return nil
	}

	relPath := remote.ID + ".json"
	if entry, ok := se.state.QueuedEntry(remote.ID); ok {
		// the same document exists locally and has not pushed yet
		relPath = entry.RelPath
	}
	absPath := se.pile.AbsPath(relPath)

	if pf, info, err := LoadPostFile(absPath); err == nil {
		if pf.ContentHash() == remoteContentHash(remote) {
			if err := se.journal.Set(&DocRecord{
				DocumentID:      remote.ID,
				RelPath:         relPath,
				ContentHash:     pf.ContentHash(),
				Size:            info.Size(),
				LocalUpdatedAt:  pf.LocalUpdatedAt(info),
				RemoteUpdatedAt: remote.UpdatedAt,
			}); err != nil {
				return err
			}
			result.Unchanged++
			return nil
		}
		return se.recordConflict(remote, relPath, pf.LocalUpdatedAt(info), result)
	}

	return se.applyRemote(ctx, remote, relPath, result)
}

// pullAgainstMissingLocal reconciles a remote change when the local file
// is gone. A queued tombstone means the user deleted it here; without one
// the file is simply restored.
func (se *SyncEngine) pullAgainstMissingLocal(ctx context.Context, remote *pilesdk.RemotePost, relPath string, result *PullResult) error {
	entry, queued := se.state.QueuedEntry(remote.ID)
	localDeleted := queued && entry.Tombstone

	switch {
	case localDeleted && remote.Deleted:
		// both sides deleted; nothing left to propagate
		if err := se.journal.Delete(remote.ID); err != nil {
			return err
		}
		if err := se.state.Dequeue(remote.ID); err != nil {
			return err
		}
		result.Deleted++
		return nil

	case localDeleted:
		// deleted here, modified there
		return se.recordConflict(remote, relPath, time.Now().UTC(), result)

	case remote.Deleted:
		if err := se.journal.Delete(remote.ID); err != nil {
			return err
		}
		if err := se.state.Dequeue(remote.ID); err != nil {
			return err
		}
		result.Deleted++
		return nil

	default:
		return se.applyRemote(ctx, remote, relPath, result)
	}
}

// applyRemote writes the remote version into the pile and records it in
// the journal. The write is pre-ignored on the watcher so it does not
// come straight back as a queued change.
func (se *SyncEngine) applyRemote(ctx context.Context, remote *pilesdk.RemotePost, relPath string, result *PullResult) error {
	if err := se.ensureLocalBlobs(ctx, remote.Attachments); err != nil {
		return err
	}

	pf := postFileFromRemote(remote)
	absPath := se.pile.AbsPath(relPath)

	se.watcher.IgnoreOnce(absPath)
	if err := WritePostFile(absPath, pf); err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	if err := se.journal.Set(&DocRecord{
		DocumentID:      remote.ID,
		RelPath:         relPath,
		ContentHash:     pf.ContentHash(),
		Size:            info.Size(),
		LocalUpdatedAt:  pf.LocalUpdatedAt(info),
		RemoteUpdatedAt: remote.UpdatedAt,
	}); err != nil {
		return err
	}

	result.Applied++
	return nil
}

func (se *SyncEngine) recordConflict(remote *pilesdk.RemotePost, relPath string, localUpdatedAt time.Time, result *PullResult) error {
	if _, err := se.conflicts.Upsert(remote.ID, relPath, localUpdatedAt, remote); err != nil {
		return err
	}
	result.Conflicts++
	return nil
}

// ensureLocalBlobs downloads the referenced attachments that are not in
// the local store yet, via short-lived signed URLs.
func (se *SyncEngine) ensureLocalBlobs(ctx context.Context, refs []pilesdk.AttachmentRef) error {
	if len(refs) == 0 {
		return nil
	}

	hashes := make([]string, 0, len(refs))
	for _, ref := range refs {
		hashes = append(hashes, ref.ContentHash)
	}
	missing := se.attachments.Missing(hashes)
	if len(missing) == 0 {
		return nil
	}

	resp, err := se.sdk.Blob.DownloadURLs(ctx, &pilesdk.BlobURLsParams{Hashes: missing})
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("blob %s: %s", resp.Errors[0].Hash, resp.Errors[0].Message)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(se.blobConcurrency)
	for _, blobURL := range resp.URLs {
		g.Go(func() error {
			return se.sdk.Blob.DownloadToFile(ctx, blobURL.URL, blobURL.Hash, se.attachments.Path(blobURL.Hash))
		})
	}
	return g.Wait()
}
