package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pilehq/pilebox/internal/pilesdk"
)

const (
	defaultAutosyncInterval = 30 * time.Second
	defaultBlobConcurrency  = 4
)

// SyncMode selects which direction a sync pass runs.
type SyncMode string

const (
	SyncModeBoth SyncMode = "both"
	SyncModePull SyncMode = "pull"
	SyncModePush SyncMode = "push"
)

func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeBoth, SyncModePull, SyncModePush:
		return true
	}
	return false
}

// DocError is a per-document failure inside an otherwise successful pass.
type DocError struct {
	DocumentID string `json:"documentId"`
	RelPath    string `json:"relPath,omitempty"`
	Error      string `json:"error"`
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Pull       *PullResult `json:"pull,omitempty"`
	Push       *PushResult `json:"push,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
}

// CollectionStatus is the observable state of one pile.
type CollectionStatus struct {
	Path               string    `json:"path"`
	Linked             bool      `json:"linked"`
	RemoteCollectionID string    `json:"remoteCollectionId,omitempty"`
	LastPullAt         time.Time `json:"lastPullAt"`
	LastPushAt         time.Time `json:"lastPushAt"`
	LastError          string    `json:"lastError,omitempty"`
	QueueLength        int       `json:"queueLength"`
	ConflictCount      int       `json:"conflictCount"`
	Watching           bool      `json:"watching"`
	Syncing            bool      `json:"syncing"`
}

// SyncEngine drives one pile. At most one sync pass runs per pile at a
// time; concurrent callers get ErrSyncAlreadyRunning instead of queueing.
type SyncEngine struct {
	pile        *Pile
	sdk         *pilesdk.Client
	state       *StateStore
	journal     *DocJournal
	conflicts   *ConflictStore
	attachments *AttachmentStore
	ignore      *IgnoreList
	scanner     *Scanner
	watcher     *FileWatcher

	autosyncInterval time.Duration
	blobConcurrency  int

	watching   atomic.Bool
	syncing    atomic.Bool
	wg         sync.WaitGroup
	muSync     sync.Mutex
	cancelAuto context.CancelFunc
}

type EngineOption func(*SyncEngine)

func WithAutosyncInterval(d time.Duration) EngineOption {
	return func(se *SyncEngine) {
		se.autosyncInterval = d
	}
}

func WithBlobConcurrency(n int) EngineOption {
	return func(se *SyncEngine) {
		se.blobConcurrency = n
	}
}

func NewSyncEngine(pile *Pile, sdk *pilesdk.Client, opts ...EngineOption) (*SyncEngine, error) {
	state, err := LoadStateStore(pile.StatePath())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	conflicts, err := LoadConflictStore(pile.ConflictsPath(), pile.SnapshotsDir())
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}

	journal := NewDocJournal(pile.JournalPath())
	if err := journal.Open(); err != nil {
		return nil, err
	}

	ignore := NewIgnoreList(pile)
	ignore.Load()

	se := &SyncEngine{
		pile:             pile,
		sdk:              sdk,
		state:            state,
		journal:          journal,
		conflicts:        conflicts,
		attachments:      NewAttachmentStore(pile.AttachmentsDir()),
		ignore:           ignore,
		scanner:          NewScanner(pile, ignore),
		watcher:          NewFileWatcher(pile.Root),
		autosyncInterval: defaultAutosyncInterval,
		blobConcurrency:  defaultBlobConcurrency,
	}
	for _, opt := range opts {
		opt(se)
	}

	se.watcher.FilterPaths(se.filterRawEvent)
	return se, nil
}

// Pile returns the engine's pile layout.
func (se *SyncEngine) Pile() *Pile {
	return se.pile
}

// Close releases the engine's journal and the pile lock, if held. Call
// after Stop.
func (se *SyncEngine) Close() error {
	err := se.journal.Close()
	if unlockErr := se.pile.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// Start runs the watcher and the autosync loop until ctx is done or Stop
// is called. The pile must be linked.
func (se *SyncEngine) Start(ctx context.Context) error {
	if !se.state.Linked() {
		return ErrNotLinked
	}

	ctx, cancel := context.WithCancel(ctx)
	se.cancelAuto = cancel

	slog.Info("sync engine start", "pile", se.pile.Root, "collection", se.state.CollectionID())

	// one initial pass before watching, so the queue drains what
	// accumulated while the daemon was down
	if err := se.runAutoSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync", "pile", se.pile.Root, "error", err)
	}

	if err := se.startWatcher(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	se.wg.Add(1)
	go func() {
		defer se.wg.Done()

		// a timer instead of a ticker, so a slow pass never faces a
		// backlog of queued ticks
		timer := time.NewTimer(se.autosyncInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := se.runAutoSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("autosync", "pile", se.pile.Root, "error", err)
				}
				timer.Reset(se.autosyncInterval)
			}
		}
	}()

	return nil
}

// Stop shuts down the autosync loop and the watcher and waits for both
// to exit.
func (se *SyncEngine) Stop() {
	if se.cancelAuto != nil {
		se.cancelAuto()
		se.cancelAuto = nil
	}
	if se.watching.Load() {
		se.watcher.Stop()
		se.watching.Store(false)
	}
	se.wg.Wait()
}

func (se *SyncEngine) startWatcher(ctx context.Context) error {
	if se.watching.Load() {
		return nil
	}
	if err := se.watcher.Start(ctx); err != nil {
		return err
	}
	se.watching.Store(true)

	se.wg.Add(1)
	go func() {
		defer se.wg.Done()
		se.handleWatcherEvents(ctx)
	}()
	return nil
}

func (se *SyncEngine) runAutoSync(ctx context.Context) error {
	_, err := se.RunSync(ctx, SyncModeBoth)
	if errors.Is(err, ErrSyncAlreadyRunning) {
		// a manual sync is in flight; this tick is redundant
		slog.Debug("autosync skipped", "pile", se.pile.Root)
		return nil
	}
	return err
}

// filterRawEvent drops events that can never concern a document before
// they reach the debounce window.
func (se *SyncEngine) filterRawEvent(absPath string) bool {
	if se.pile.IsInternal(absPath) {
		return true
	}
	return !strings.HasSuffix(absPath, ".json")
}

func (se *SyncEngine) handleWatcherEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-se.watcher.Events():
			if !ok {
				return
			}
			se.handleChangedPath(event.Path())
		}
	}
}

// handleChangedPath turns one filesystem event into a queue entry: an
// upsert when the file decodes as a document, a tombstone when a tracked
// document's file is gone.
func (se *SyncEngine) handleChangedPath(absPath string) {
	relPath, err := se.pile.RelPath(absPath)
	if err != nil {
		return
	}
	if se.ignore.ShouldIgnore(relPath) {
		return
	}

	pf, _, err := LoadPostFile(absPath)
	switch {
	case err == nil:
		if err := se.state.Enqueue(pf.ID, relPath); err != nil {
			slog.Error("enqueue", "path", relPath, "error", err)
			return
		}
		slog.Debug("queued upsert", "doc", pf.ID, "path", relPath)

	case os.IsNotExist(err):
		// file gone: only docs the journal knows about get tombstones,
		// deleting something never pushed is a no-op
		record, jerr := se.journal.GetByPath(relPath)
		if jerr != nil || record == nil {
			return
		}
		if err := se.state.EnqueueTombstone(record.DocumentID, relPath); err != nil {
			slog.Error("enqueue tombstone", "path", relPath, "error", err)
			return
		}
		slog.Debug("queued tombstone", "doc", record.DocumentID, "path", relPath)

	default:
		// unreadable or partially written; the next write fires again
		slog.Debug("skipping unreadable document", "path", relPath, "error", err)
	}
}

// RunSync runs one pass in the given mode. Returns ErrSyncAlreadyRunning
// when a pass for this pile is already in flight.
func (se *SyncEngine) RunSync(ctx context.Context, mode SyncMode) (*SyncResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid sync mode %q", mode)
	}

	if !se.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer se.muSync.Unlock()

	se.syncing.Store(true)
	defer se.syncing.Store(false)

	if !se.state.Linked() {
		return nil, ErrNotLinked
	}

	if _, err := se.sdk.Identity(); err != nil {
		err = classifyRemoteError(err)
		se.state.SetLastError(err)
		return nil, err
	}

	result := &SyncResult{StartedAt: time.Now().UTC()}

	var pass error
	if mode == SyncModeBoth || mode == SyncModePull {
		pull, err := se.pull(ctx)
		result.Pull = pull
		if err != nil {
			pass = fmt.Errorf("pull: %w", err)
		}
	}
	if pass == nil && (mode == SyncModeBoth || mode == SyncModePush) {
		push, err := se.push(ctx)
		result.Push = push
		if err != nil {
			pass = fmt.Errorf("push: %w", err)
		}
	}

	result.FinishedAt = time.Now().UTC()

	if pass != nil {
		se.state.SetLastError(pass)
		return result, pass
	}

	if summary := docErrorSummary(result); summary != nil {
		se.state.SetLastError(summary)
	} else {
		se.state.SetLastError(nil)
	}
	return result, nil
}

// docErrorSummary folds per-document failures into one lastError line.
func docErrorSummary(result *SyncResult) error {
	var count int
	if result.Pull != nil {
		count += len(result.Pull.Errors)
	}
	if result.Push != nil {
		count += len(result.Push.Errors)
	}
	if count == 0 {
		return nil
	}
	return fmt.Errorf("%d document(s) failed to sync", count)
}

// Rescan re-enumerates every document, queues them all and revives the
// watcher if it died. The push pass skips entries whose content already
// matches the journal, so a rescan is safe to run at any time.
func (se *SyncEngine) Rescan(ctx context.Context) (int, error) {
	queued, err := se.enqueueAll()
	if err != nil {
		return queued, err
	}

	if !se.watching.Load() {
		if err := se.startWatcher(ctx); err != nil {
			return queued, fmt.Errorf("restart watcher: %w", err)
		}
	}
	return queued, nil
}

// enqueueAll scans the pile and queues every decodable document. Files
// that fail to decode are skipped, not fatal.
func (se *SyncEngine) enqueueAll() (int, error) {
	paths, err := se.scanner.Scan()
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, relPath := range paths {
		pf, _, err := LoadPostFile(se.pile.AbsPath(relPath))
		if err != nil {
			slog.Warn("scan: skipping file", "path", relPath, "error", err)
			continue
		}
		if err := se.state.Enqueue(pf.ID, relPath); err != nil {
			return queued, err
		}
		queued++
	}
	slog.Info("scan queued documents", "pile", se.pile.Root, "count", queued)
	return queued, nil
}

// Link binds the pile to a remote collection and queues every local
// document for the bootstrap push. An empty remoteID creates a fresh
// collection named after the directory.
func (se *SyncEngine) Link(ctx context.Context, remoteID string) (*pilesdk.Collection, error) {
	if se.state.Linked() {
		return nil, ErrAlreadyLinked
	}

	if _, err := se.sdk.Identity(); err != nil {
		return nil, classifyRemoteError(err)
	}

	var collection *pilesdk.Collection
	var err error
	if remoteID == "" {
		collection, err = se.sdk.Collections.Create(ctx, &pilesdk.CreateCollectionParams{
			Name: filepath.Base(se.pile.Root),
		})
	} else {
		collection, err = se.sdk.Collections.Get(ctx, remoteID)
	}
	if err != nil {
		return nil, classifyRemoteError(err)
	}

	if err := se.state.SetLinked(collection.ID); err != nil {
		return nil, err
	}

	if _, err := se.enqueueAll(); err != nil {
		return collection, fmt.Errorf("bootstrap scan: %w", err)
	}

	slog.Info("pile linked", "pile", se.pile.Root, "collection", collection.ID)
	return collection, nil
}

// Unlink detaches the pile from its collection. Journal and queue stay,
// so relinking the same collection resumes instead of restarting.
func (se *SyncEngine) Unlink() error {
	if !se.state.Linked() {
		return ErrNotLinked
	}
	if err := se.state.SetUnlinked(); err != nil {
		return err
	}
	slog.Info("pile unlinked", "pile", se.pile.Root)
	return nil
}

// Status reports the engine's observable state.
func (se *SyncEngine) Status() *CollectionStatus {
	return &CollectionStatus{
		Path:               se.pile.Root,
		Linked:             se.state.Linked(),
		RemoteCollectionID: se.state.CollectionID(),
		LastPullAt:         se.state.LastPullAt(),
		LastPushAt:         se.state.LastPushAt(),
		LastError:          se.state.LastError(),
		QueueLength:        se.state.QueueLen(),
		ConflictCount:      se.conflicts.Count(),
		Watching:           se.watching.Load(),
		Syncing:            se.syncing.Load(),
	}
}

// Conflicts lists the pile's open conflicts.
func (se *SyncEngine) Conflicts() []*Conflict {
	return se.conflicts.List()
}
