package pilemgr

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	stdsync "sync"
	"time"

	"github.com/pilehq/pilebox/internal/utils"
)

// RegistryEntry is one pile the daemon knows about.
type RegistryEntry struct {
	Path               string    `json:"path"`
	RemoteCollectionID string    `json:"remoteCollectionId,omitempty"`
	AddedAt            time.Time `json:"addedAt"`
}

type registryDoc struct {
	Piles []*RegistryEntry `json:"piles"`
}

// Registry is the process-wide list of managed piles, persisted so the
// daemon resumes their watchers after a restart. Keyed by resolved pile
// path.
type Registry struct {
	path string

	mu      stdsync.Mutex
	entries map[string]*RegistryEntry
}

// LoadRegistry reads the registry file, starting empty when none exists.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:    path,
		entries: make(map[string]*RegistryEntry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	for _, entry := range doc.Piles {
		r.entries[entry.Path] = entry
	}
	return r, nil
}

func (r *Registry) save() error {
	doc := registryDoc{Piles: make([]*RegistryEntry, 0, len(r.entries))}
	for _, entry := range r.entries {
		doc.Piles = append(doc.Piles, entry)
	}
	sort.Slice(doc.Piles, func(i, j int) bool { return doc.Piles[i].Path < doc.Piles[j].Path })

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	return utils.AtomicWriteFile(r.path, data, 0o644)
}

// Add records a pile. Re-adding the same path refreshes its collection id
// and keeps the original added time.
func (r *Registry) Add(path, collectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[path]; ok {
		entry.RemoteCollectionID = collectionID
		return r.save()
	}

	r.entries[path] = &RegistryEntry{
		Path:               path,
		RemoteCollectionID: collectionID,
		AddedAt:            time.Now().UTC(),
	}
	return r.save()
}

// Remove forgets a pile. Removing an unknown path is a no-op.
func (r *Registry) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[path]; !ok {
		return nil
	}
	delete(r.entries, path)
	return r.save()
}

func (r *Registry) Has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[path]
	return ok
}

// List returns the registered piles ordered by path.
func (r *Registry) List() []*RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*RegistryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		copied := *entry
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list
}
