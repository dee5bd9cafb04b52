package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Resolution picks which version of a conflicted document survives.
type Resolution string

const (
	ResolutionLocal  Resolution = "local"
	ResolutionRemote Resolution = "remote"
	ResolutionMerged Resolution = "merged"
)

func (r Resolution) Valid() bool {
	switch r {
	case ResolutionLocal, ResolutionRemote, ResolutionMerged:
		return true
	}
	return false
}

// ArtifactSide selects which rendering of a conflict to produce.
type ArtifactSide string

const (
	SideLocal  ArtifactSide = "local"
	SideRemote ArtifactSide = "remote"
	SideDiff   ArtifactSide = "diff"
)

func (s ArtifactSide) Valid() bool {
	switch s {
	case SideLocal, SideRemote, SideDiff:
		return true
	}
	return false
}

// Resolve settles the conflict on a document. The chosen version is
// applied first and the conflict record removed last, so a failure
// partway leaves the conflict open rather than half-resolved.
func (se *SyncEngine) Resolve(ctx context.Context, documentID string, resolution Resolution, mergedContent string) error {
	if !resolution.Valid() {
		return fmt.Errorf("invalid resolution %q", resolution)
	}

	conflict, ok := se.conflicts.GetByDocument(documentID)
	if !ok {
		return fmt.Errorf("no conflict for document %s: %w", documentID, ErrNotFound)
	}

	var err error
	switch resolution {
	case ResolutionLocal:
		err = se.resolveLocal(conflict)
	case ResolutionRemote:
		err = se.resolveRemote(ctx, conflict)
	case ResolutionMerged:
		err = se.resolveMerged(conflict, mergedContent)
	}
	if err != nil {
		return err
	}

	if err := se.conflicts.Remove(conflict.ID); err != nil {
		return err
	}
	slog.Info("conflict resolved", "doc", documentID, "resolution", resolution)
	return nil
}

// resolveLocal keeps the local version: queue it so the next push
// overwrites the remote. A missing local file becomes a delete.
func (se *SyncEngine) resolveLocal(conflict *Conflict) error {
	absPath := se.pile.AbsPath(conflict.RelPath)
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return se.state.EnqueueTombstone(conflict.DocumentID, conflict.RelPath)
	}
	return se.state.Enqueue(conflict.DocumentID, conflict.RelPath)
}

// resolveRemote discards the local version in favor of the snapshot
// taken when the conflict was detected.
func (se *SyncEngine) resolveRemote(ctx context.Context, conflict *Conflict) error {
	snapshot, err := se.conflicts.Snapshot(conflict.ID)
	if err != nil {
		return err
	}
	absPath := se.pile.AbsPath(conflict.RelPath)

	if snapshot.Deleted {
		se.watcher.IgnoreOnce(absPath)
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", conflict.RelPath, err)
		}
		if err := se.journal.Delete(conflict.DocumentID); err != nil {
			return err
		}
		return se.state.Dequeue(conflict.DocumentID)
	}

	if err := se.ensureLocalBlobs(ctx, snapshot.Attachments); err != nil {
		return err
	}

	pf := postFileFromRemote(snapshot)
	se.watcher.IgnoreOnce(absPath)
	if err := WritePostFile(absPath, pf); err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	if err := se.journal.Set(&DocRecord{
		DocumentID:      conflict.DocumentID,
		RelPath:         conflict.RelPath,
		ContentHash:     pf.ContentHash(),
		Size:            info.Size(),
		LocalUpdatedAt:  pf.LocalUpdatedAt(info),
		RemoteUpdatedAt: snapshot.UpdatedAt,
	}); err != nil {
		return err
	}
	return se.state.Dequeue(conflict.DocumentID)
}

// resolveMerged writes caller-provided content over the local document
// and queues it, so the merge propagates like any local edit.
func (se *SyncEngine) resolveMerged(conflict *Conflict, mergedContent string) error {
	if mergedContent == "" {
		return fmt.Errorf("merged resolution requires content")
	}

	absPath := se.pile.AbsPath(conflict.RelPath)
	pf, _, err := LoadPostFile(absPath)
	if err != nil {
		// local side gone or unreadable; merge onto the snapshot instead
		snapshot, snapErr := se.conflicts.Snapshot(conflict.ID)
		if snapErr != nil {
			return fmt.Errorf("no base for merge: %w", snapErr)
		}
		pf = postFileFromRemote(snapshot)
	}

	pf.Content = mergedContent
	pf.UpdatedAt = time.Now().UTC()

	se.watcher.IgnoreOnce(absPath)
	if err := WritePostFile(absPath, pf); err != nil {
		return err
	}
	return se.state.Enqueue(conflict.DocumentID, conflict.RelPath)
}

// Artifact renders one side of a conflict for inspection: the local
// file, the remote snapshot, or a patch between their contents.
func (se *SyncEngine) Artifact(conflictID string, side ArtifactSide) ([]byte, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("invalid artifact side %q", side)
	}

	conflict, ok := se.conflicts.Get(conflictID)
	if !ok {
		return nil, fmt.Errorf("conflict %s: %w", conflictID, ErrNotFound)
	}

	switch side {
	case SideLocal:
		data, err := os.ReadFile(se.pile.AbsPath(conflict.RelPath))
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local version of %s: %w", conflict.RelPath, ErrNotFound)
		}
		return data, err

	case SideRemote:
		snapshot, err := se.conflicts.Snapshot(conflict.ID)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(snapshot, "", "  ")

	default:
		return se.conflictPatch(conflict)
	}
}

// conflictPatch produces a textual patch from the local content to the
// remote snapshot's content. A missing local side diffs from empty.
func (se *SyncEngine) conflictPatch(conflict *Conflict) ([]byte, error) {
	snapshot, err := se.conflicts.Snapshot(conflict.ID)
	if err != nil {
		return nil, err
	}

	localContent := ""
	if pf, _, err := LoadPostFile(se.pile.AbsPath(conflict.RelPath)); err == nil {
		localContent = pf.Content
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(localContent, snapshot.Content)
	return []byte(dmp.PatchToText(patches)), nil
}
