// Package pilemgr runs the sync engines for every managed pile. The
// manager owns the pile registry, the shared cloud client, and the
// engine lifecycles; link and migrate register piles here so the daemon
// resumes them after a restart.
package pilemgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"

	"github.com/pilehq/pilebox/internal/client/config"
	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/sync"
)

var (
	ErrPileNotManaged = errors.New("pile not managed")
)

type Option func(*PileManager)

// WithRegistryPath overrides where the pile registry lives.
func WithRegistryPath(path string) Option {
	return func(m *PileManager) {
		m.registryPath = path
	}
}

// WithEngineOptions applies options to every engine the manager opens.
func WithEngineOptions(opts ...sync.EngineOption) Option {
	return func(m *PileManager) {
		m.engineOpts = opts
	}
}

// PileManager opens one sync engine per managed pile and keeps them
// running. Engines hold their pile's lock from open to close.
type PileManager struct {
	cfg          *config.Config
	sdk          *pilesdk.Client
	registry     *Registry
	registryPath string
	engineOpts   []sync.EngineOption

	mu      stdsync.RWMutex
	engines map[string]*sync.SyncEngine
	runCtx  context.Context
}

func New(cfg *config.Config, opts ...Option) (*PileManager, error) {
	sdk, err := pilesdk.New(&pilesdk.Config{
		BaseURL:     cfg.BaseURL,
		AccessToken: cfg.AccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("create sdk: %w", err)
	}

	m := &PileManager{
		cfg:          cfg,
		sdk:          sdk,
		registryPath: config.DefaultRegistryPath,
		engines:      make(map[string]*sync.SyncEngine),
	}
	for _, opt := range opts {
		opt(m)
	}

	registry, err := LoadRegistry(m.registryPath)
	if err != nil {
		return nil, err
	}
	m.registry = registry
	return m, nil
}

// SDK returns the shared cloud client.
func (m *PileManager) SDK() *pilesdk.Client {
	return m.sdk
}

// Start resumes every registered pile: open its engine and run watcher
// plus autosync. A pile that fails to resume is logged and skipped, it
// does not take the daemon down.
func (m *PileManager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	entries := m.registry.List()
	slog.Info("pile manager start", "piles", len(entries))

	for _, entry := range entries {
		if err := m.resume(ctx, entry); err != nil {
			slog.Error("pile resume", "path", entry.Path, "error", err)
		}
	}
	return nil
}

func (m *PileManager) resume(ctx context.Context, entry *RegistryEntry) error {
	m.mu.Lock()
	engine, _, err := m.open(entry.Path)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := engine.Start(ctx); err != nil {
		if errors.Is(err, sync.ErrNotLinked) {
			// unlinked outside the daemon; forget it
			slog.Warn("registered pile is no longer linked, dropping", "path", entry.Path)
			m.drop(engine)
			return m.registry.Remove(entry.Path)
		}
		return err
	}
	return nil
}

// Stop shuts down every engine and releases their pile locks.
func (m *PileManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, engine := range m.engines {
		engine.Stop()
		if err := engine.Close(); err != nil {
			slog.Error("pile close", "path", path, "error", err)
		}
		delete(m.engines, path)
	}
	slog.Info("pile manager stopped")
}

// open returns the engine for a pile, creating and locking it when not
// yet managed. Callers hold m.mu.
func (m *PileManager) open(path string) (*sync.SyncEngine, bool, error) {
	pile, err := sync.NewPile(path)
	if err != nil {
		return nil, false, err
	}

	if engine, ok := m.engines[pile.Root]; ok {
		return engine, false, nil
	}

	if err := pile.Lock(); err != nil {
		return nil, false, err
	}
	engine, err := sync.NewSyncEngine(pile, m.sdk, m.engineOpts...)
	if err != nil {
		pile.Unlock()
		return nil, false, err
	}

	m.engines[pile.Root] = engine
	return engine, true, nil
}

// drop removes an engine from management and releases its resources.
func (m *PileManager) drop(engine *sync.SyncEngine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, engine.Pile().Root)
	engine.Close()
}

// Open brings an on-disk pile under management without linking or
// starting it. One-shot commands use it to reach piles no daemon is
// running.
func (m *PileManager) Open(path string) (*sync.SyncEngine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, _, err := m.open(path)
	return engine, err
}

// Get returns the engine for a managed pile.
func (m *PileManager) Get(path string) (*sync.SyncEngine, error) {
	pile, err := sync.NewPile(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[pile.Root]
	if !ok {
		return nil, fmt.Errorf("%s: %w", pile.Root, ErrPileNotManaged)
	}
	return engine, nil
}

// Link binds a directory to a remote collection and registers it. An
// empty remoteID creates a fresh collection named after the directory.
func (m *PileManager) Link(ctx context.Context, path, remoteID string) (*pilesdk.Collection, error) {
	m.mu.Lock()
	engine, fresh, err := m.open(path)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	collection, err := engine.Link(ctx, remoteID)
	if err != nil {
		if fresh {
			m.drop(engine)
		}
		return nil, err
	}

	if err := m.registry.Add(engine.Pile().Root, collection.ID); err != nil {
		return collection, err
	}
	m.autoStart(engine)
	return collection, nil
}

// Unlink detaches a managed pile and forgets it. Local files, journal
// and queue stay on disk, so relinking resumes.
func (m *PileManager) Unlink(path string) error {
	engine, err := m.Get(path)
	if err != nil {
		return err
	}

	engine.Stop()
	if err := engine.Unlink(); err != nil {
		return err
	}
	if err := m.registry.Remove(engine.Pile().Root); err != nil {
		return err
	}
	m.drop(engine)
	return nil
}

// Rescan re-enumerates a managed pile's documents and revives its
// watcher. The watcher outlives the request, so it is bound to the
// daemon's context rather than the caller's.
func (m *PileManager) Rescan(path string) (int, error) {
	engine, err := m.Get(path)
	if err != nil {
		return 0, err
	}
	ctx := m.daemonCtx()
	if ctx == nil {
		ctx = context.Background()
	}
	return engine.Rescan(ctx)
}

// Migrate materializes a remote collection into a local directory and
// registers the resulting pile. Calling it again with the same managed
// destination resumes the pull instead of reopening the pile.
func (m *PileManager) Migrate(ctx context.Context, remoteID, destDir string) (*sync.SyncResult, error) {
	if remoteID == "" {
		return nil, pilesdk.ErrNoCollectionID
	}
	pile, err := sync.NewPile(destDir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	existing := m.engines[pile.Root]
	if existing != nil && !existing.Status().Linked {
		// opened but never linked; the migration takes the pile over
		delete(m.engines, pile.Root)
	}
	m.mu.Unlock()

	if existing != nil {
		st := existing.Status()
		switch {
		case st.Linked && st.RemoteCollectionID == remoteID:
			return existing.RunSync(ctx, sync.SyncModePull)
		case st.Linked:
			return nil, fmt.Errorf("%s is linked to collection %s: %w", pile.Root, st.RemoteCollectionID, sync.ErrAlreadyLinked)
		default:
			existing.Stop()
			if err := existing.Close(); err != nil {
				return nil, err
			}
		}
	}

	engine, result, err := sync.Migrate(ctx, m.sdk, remoteID, pile.Root, m.engineOpts...)
	if engine == nil {
		return result, err
	}

	m.mu.Lock()
	m.engines[pile.Root] = engine
	m.mu.Unlock()

	if regErr := m.registry.Add(pile.Root, remoteID); regErr != nil && err == nil {
		err = regErr
	}
	m.autoStart(engine)
	return result, err
}

// Statuses reports every managed pile ordered by path.
func (m *PileManager) Statuses() []*sync.CollectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]*sync.CollectionStatus, 0, len(m.engines))
	for _, engine := range m.engines {
		statuses = append(statuses, engine.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
	return statuses
}

// autoStart begins watching a freshly adopted engine when the daemon is
// running. Outside the daemon (one-shot CLI) there is nothing to start.
func (m *PileManager) autoStart(engine *sync.SyncEngine) {
	ctx := m.daemonCtx()
	if ctx == nil {
		return
	}
	if err := engine.Start(ctx); err != nil {
		slog.Error("engine start", "pile", engine.Pile().Root, "error", err)
	}
}

func (m *PileManager) daemonCtx() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runCtx
}
