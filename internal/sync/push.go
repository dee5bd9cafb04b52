package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/utils"
	"golang.org/x/sync/errgroup"
)

// PushResult summarizes one push pass.
type PushResult struct {
	Pushed    int         `json:"pushed"`
	Deleted   int         `json:"deleted"`
	Unchanged int         `json:"unchanged"`
	Skipped   int         `json:"skipped"`
	Errors    []*DocError `json:"errors,omitempty"`
}

// push drains a snapshot of the queue. Entries are removed only after
// their remote write landed; failures keep the entry for the next pass.
// An empty queue makes no remote calls at all.
func (se *SyncEngine) push(ctx context.Context) (*PushResult, error) {
	result := &PushResult{}

	entries := se.state.Queue()
	if len(entries) == 0 {
		return result, nil
	}

	principal, err := se.sdk.Identity()
	if err != nil {
		return result, classifyRemoteError(err)
	}

	collectionID := se.state.CollectionID()
	caps, err := se.sdk.Posts.Capabilities(ctx, collectionID)
	if err != nil {
		return result, classifyRemoteError(err)
	}

	slog.Info("push start", "pile", se.pile.Root, "queued", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if se.conflicts.HasForDocument(entry.DocumentID) {
			// conflicted documents stay out of push until resolved
			result.Skipped++
			continue
		}

		if err := se.pushEntry(ctx, entry, caps, principal.Subject, result); err != nil {
			if errors.Is(err, ErrSchemaMismatch) {
				se.sdk.Posts.InvalidateCapabilities(collectionID)
			}
			return result, err
		}
	}

	if err := se.state.SetLastPushAt(time.Now().UTC()); err != nil {
		return result, err
	}

	slog.Info("push done", "pile", se.pile.Root,
		"pushed", result.Pushed, "deleted", result.Deleted,
		"unchanged", result.Unchanged, "skipped", result.Skipped,
		"errors", len(result.Errors))
	return result, nil
}

// pushEntry syncs one queue entry. Document-scoped failures are recorded
// in result and return nil; only errors that doom the whole pass (remote
// down, auth, schema drift) are returned.
func (se *SyncEngine) pushEntry(ctx context.Context, entry *QueueEntry, caps pilesdk.SchemaCapabilities, userID string, result *PushResult) error {
	absPath := se.pile.AbsPath(entry.RelPath)
	exists := utils.FileExists(absPath)

	// the queue is a statement of intent, the filesystem is the truth:
	// re-check at drain time which side won any create/delete races
	tombstone := entry.Tombstone
	if tombstone && exists {
		tombstone = false
	}
	if !tombstone && !exists {
		record, err := se.journal.Get(entry.DocumentID)
		if err != nil {
			return err
		}
		if record == nil {
			// never pushed and already gone; nothing to do remotely
			return se.state.Dequeue(entry.DocumentID)
		}
		tombstone = true
	}

	if tombstone {
		return se.pushTombstone(ctx, entry, result)
	}
	return se.pushUpsert(ctx, entry, absPath, caps, userID, result)
}

func (se *SyncEngine) pushUpsert(ctx context.Context, entry *QueueEntry, absPath string, caps pilesdk.SchemaCapabilities, userID string, result *PushResult) error {
	pf, info, err := LoadPostFile(absPath)
	if err != nil {
		result.Errors = append(result.Errors, &DocError{
			DocumentID: entry.DocumentID,
			RelPath:    entry.RelPath,
			Error:      err.Error(),
		})
		return nil
	}

	if pf.ID != entry.DocumentID {
		// the file holds a different document now; queue that one and
		// drop the stale entry
		slog.Debug("queued document changed identity", "path", entry.RelPath, "was", entry.DocumentID, "now", pf.ID)
		if err := se.state.Enqueue(pf.ID, entry.RelPath); err != nil {
			return err
		}
		return se.state.Dequeue(entry.DocumentID)
	}

	contentHash := pf.ContentHash()
	record, err := se.journal.Get(entry.DocumentID)
	if err != nil {
		return err
	}

	// identical content needs no remote write; this also covers renames,
	// which the remote has no notion of
	if record != nil && record.ContentHash == contentHash {
		if record.RelPath != entry.RelPath {
			record.RelPath = entry.RelPath
			if err := se.journal.Set(record); err != nil {
				return err
			}
		}
		if err := se.state.Dequeue(entry.DocumentID); err != nil {
			return err
		}
		result.Unchanged++
		return nil
	}

	if err := se.ensureRemoteBlobs(ctx, pf.Attachments); err != nil {
		err = classifyRemoteError(err)
		if isAbortError(err) {
			return err
		}
		result.Errors = append(result.Errors, &DocError{
			DocumentID: entry.DocumentID,
			RelPath:    entry.RelPath,
			Error:      err.Error(),
		})
		return nil
	}

	payload := buildPayload(pf, caps, userID)
	payload[pilesdk.ColumnID] = pf.ID
	if !pf.CreatedAt.IsZero() {
		payload[pilesdk.ColumnCreatedAt] = pf.CreatedAt
	}

	resp, err := se.sdk.Posts.Upsert(ctx, &pilesdk.UpsertPostParams{
		CollectionID: se.state.CollectionID(),
		Post:         payload,
	})
	if err != nil {
		err = classifyRemoteError(err)
		if isAbortError(err) {
			return err
		}
		result.Errors = append(result.Errors, &DocError{
			DocumentID: entry.DocumentID,
			RelPath:    entry.RelPath,
			Error:      err.Error(),
		})
		return nil
	}

	if err := se.journal.Set(&DocRecord{
		DocumentID:      pf.ID,
		RelPath:         entry.RelPath,
		ContentHash:     contentHash,
		Size:            info.Size(),
		LocalUpdatedAt:  pf.LocalUpdatedAt(info),
		RemoteUpdatedAt: resp.Post.UpdatedAt,
	}); err != nil {
		return err
	}
	if err := se.state.Dequeue(entry.DocumentID); err != nil {
		return err
	}

	result.Pushed++
	return nil
}

func (se *SyncEngine) pushTombstone(ctx context.Context, entry *QueueEntry, result *PushResult) error {
	record, err := se.journal.Get(entry.DocumentID)
	if err != nil {
		return err
	}
	if record == nil {
		// nothing was ever pushed for this document
		return se.state.Dequeue(entry.DocumentID)
	}

	_, err = se.sdk.Posts.Delete(ctx, &pilesdk.DeletePostParams{
		CollectionID: se.state.CollectionID(),
		ID:           entry.DocumentID,
	})
	if err != nil && !pilesdk.IsAPIErrorCode(err, pilesdk.CodePostNotFound) {
		err = classifyRemoteError(err)
		if isAbortError(err) {
			return err
		}
		result.Errors = append(result.Errors, &DocError{
			DocumentID: entry.DocumentID,
			RelPath:    entry.RelPath,
			Error:      err.Error(),
		})
		return nil
	}

	if err := se.journal.Delete(entry.DocumentID); err != nil {
		return err
	}
	if err := se.state.Dequeue(entry.DocumentID); err != nil {
		return err
	}

	result.Deleted++
	return nil
}

// ensureRemoteBlobs uploads the referenced attachments that the remote
// does not have yet, a few at a time.
func (se *SyncEngine) ensureRemoteBlobs(ctx context.Context, refs []pilesdk.AttachmentRef) error {
	if len(refs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(se.blobConcurrency)

	for _, ref := range refs {
		g.Go(func() error {
			localPath := se.attachments.Path(ref.ContentHash)
			if !utils.FileExists(localPath) {
				return fmt.Errorf("attachment %s not in local store", ref.ContentHash)
			}

			exists, err := se.sdk.Blob.Exists(ctx, ref.ContentHash)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}

			_, err = se.sdk.Blob.Upload(ctx, &pilesdk.BlobUploadParams{
				Hash:     ref.ContentHash,
				FilePath: localPath,
			})
			return err
		})
	}

	return g.Wait()
}

// buildPayload maps a document onto the remote schema: base columns
// always, optional columns only when the collection has them. Absent
// columns are omitted entirely, never null-padded.
func buildPayload(pf *PostFile, caps pilesdk.SchemaCapabilities, userID string) map[string]any {
	payload := map[string]any{
		pilesdk.ColumnTitle:   pf.Title,
		pilesdk.ColumnContent: pf.Content,
	}

	if len(pf.Tags) > 0 {
		payload[pilesdk.ColumnTags] = pf.Tags
	}
	if len(pf.Attachments) > 0 {
		payload["attachments"] = pf.Attachments
	}

	if caps.Has(pilesdk.ColumnContentMD) && pf.ContentMD != "" {
		payload[pilesdk.ColumnContentMD] = pf.ContentMD
	}
	if caps.Has(pilesdk.ColumnUserID) && userID != "" {
		payload[pilesdk.ColumnUserID] = userID
	}
	if caps.Has(pilesdk.ColumnEtag) {
		payload[pilesdk.ColumnEtag] = pf.ContentHash()
	}

	return payload
}

// isAbortError reports whether an error dooms the rest of the pass
// instead of just one document.
func isAbortError(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrSchemaMismatch)
}
