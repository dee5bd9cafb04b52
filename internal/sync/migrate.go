package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/utils"
)

// Migrate materializes an existing remote collection into a local pile:
// link the destination, then pull everything from a zero watermark. An
// interrupted migration resumes on the next call, because the watermark
// only advances after a clean pull pass. The returned engine holds the
// pile lock; Close releases it.
func Migrate(ctx context.Context, sdk *pilesdk.Client, collectionID, destDir string, opts ...EngineOption) (*SyncEngine, *SyncResult, error) {
	if collectionID == "" {
		return nil, nil, pilesdk.ErrNoCollectionID
	}

	pile, err := NewPile(destDir)
	if err != nil {
		return nil, nil, err
	}
	if err := utils.EnsureDir(pile.Root); err != nil {
		return nil, nil, err
	}

	engine, err := NewSyncEngine(pile, sdk, opts...)
	if err != nil {
		return nil, nil, err
	}

	if err := pile.Lock(); err != nil {
		engine.Close()
		return nil, nil, err
	}

	switch {
	case engine.state.Linked() && engine.state.CollectionID() != collectionID:
		engine.Close()
		return nil, nil, fmt.Errorf("%s is linked to collection %s: %w",
			pile.Root, engine.state.CollectionID(), ErrAlreadyLinked)

	case engine.state.Linked():
		// an interrupted migration of the same collection; resume
		slog.Info("resuming migration", "pile", pile.Root, "collection", collectionID)

	default:
		if err := ensureEmptyDir(pile.Root); err != nil {
			engine.Close()
			return nil, nil, err
		}
		if _, err := sdk.Collections.Get(ctx, collectionID); err != nil {
			engine.Close()
			return nil, nil, classifyRemoteError(err)
		}
		if err := engine.state.SetLinked(collectionID); err != nil {
			engine.Close()
			return nil, nil, err
		}
		slog.Info("migration started", "pile", pile.Root, "collection", collectionID)
	}

	result, err := engine.RunSync(ctx, SyncModePull)
	return engine, result, err
}

// ensureEmptyDir rejects a migration destination that already holds user
// files. The pile's own metadata directory does not count.
func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == internalDir {
			continue
		}
		return fmt.Errorf("%s is not empty: %w", dir, ErrDestinationNotEmpty)
	}
	return nil
}
