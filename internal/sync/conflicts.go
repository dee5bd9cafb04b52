package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/utils"
)

// Conflict records one divergence between a local document and its remote
// row. The remote side is snapshotted at detection time so resolution can
// work offline; the local side stays in place untouched.
type Conflict struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"documentId"`
	RelPath         string    `json:"relPath"`
	LocalUpdatedAt  time.Time `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time `json:"remoteUpdatedAt"`
	RemoteDeleted   bool      `json:"remoteDeleted,omitempty"`
	DetectedAt      time.Time `json:"detectedAt"`
}

// ConflictStore keeps open conflicts for one pile: an index file plus one
// remote snapshot per conflict. At most one open conflict exists per
// document; re-detection refreshes the snapshot in place.
type ConflictStore struct {
	path         string
	snapshotsDir string

	mu        sync.Mutex
	conflicts map[string]*Conflict // by conflict id
}

func LoadConflictStore(path, snapshotsDir string) (*ConflictStore, error) {
	s := &ConflictStore{
		path:         path,
		snapshotsDir: snapshotsDir,
		conflicts:    make(map[string]*Conflict),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conflicts %s: %w", path, err)
	}

	var list []*Conflict
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode conflicts %s: %w", path, err)
	}
	for _, c := range list {
		s.conflicts[c.ID] = c
	}
	return s, nil
}

func (s *ConflictStore) save() error {
	list := make([]*Conflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DetectedAt.Before(list[j].DetectedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conflicts: %w", err)
	}
	return utils.AtomicWriteFile(s.path, data, 0o644)
}

func (s *ConflictStore) snapshotPath(conflictID string) string {
	return filepath.Join(s.snapshotsDir, conflictID+".remote.json")
}

// Upsert records a conflict for a document, or refreshes the existing one
// when the remote changed again while it was open. The returned conflict
// keeps its id across refreshes.
func (s *ConflictStore) Upsert(docID, relPath string, localUpdatedAt time.Time, remote *pilesdk.RemotePost) (*Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conflict *Conflict
	for _, c := range s.conflicts {
		if c.DocumentID == docID {
			conflict = c
			break
		}
	}

	if conflict == nil {
		conflict = &Conflict{
			ID:         uuid.NewString(),
			DocumentID: docID,
			DetectedAt: time.Now().UTC(),
		}
		s.conflicts[conflict.ID] = conflict
	}

	conflict.RelPath = relPath
	conflict.LocalUpdatedAt = localUpdatedAt
	conflict.RemoteUpdatedAt = remote.UpdatedAt
	conflict.RemoteDeleted = remote.Deleted

	data, err := json.MarshalIndent(remote, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode remote snapshot: %w", err)
	}
	if err := utils.AtomicWriteFile(s.snapshotPath(conflict.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("write remote snapshot: %w", err)
	}

	if err := s.save(); err != nil {
		return nil, err
	}

	slog.Info("conflict recorded", "conflict", conflict.ID, "doc", docID, "path", relPath, "remoteDeleted", conflict.RemoteDeleted)
	return conflict, nil
}

// Get returns a conflict by id.
func (s *ConflictStore) Get(conflictID string) (*Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[conflictID]
	if !ok {
		return nil, false
	}
	copied := *c
	return &copied, true
}

// GetByDocument returns the open conflict for a document, if any.
func (s *ConflictStore) GetByDocument(docID string) (*Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conflicts {
		if c.DocumentID == docID {
			copied := *c
			return &copied, true
		}
	}
	return nil, false
}

// List returns open conflicts ordered by detection time.
func (s *ConflictStore) List() []*Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*Conflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		copied := *c
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DetectedAt.Before(list[j].DetectedAt) })
	return list
}

func (s *ConflictStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conflicts)
}

// HasForDocument reports whether a document has an open conflict.
func (s *ConflictStore) HasForDocument(docID string) bool {
	_, ok := s.GetByDocument(docID)
	return ok
}

// Snapshot loads the remote post captured when the conflict was recorded
// or last refreshed.
func (s *ConflictStore) Snapshot(conflictID string) (*pilesdk.RemotePost, error) {
	data, err := os.ReadFile(s.snapshotPath(conflictID))
	if err != nil {
		return nil, fmt.Errorf("read remote snapshot for %s: %w", conflictID, err)
	}
	var remote pilesdk.RemotePost
	if err := json.Unmarshal(data, &remote); err != nil {
		return nil, fmt.Errorf("decode remote snapshot for %s: %w", conflictID, err)
	}
	return &remote, nil
}

// Remove deletes a resolved conflict and its snapshot.
func (s *ConflictStore) Remove(conflictID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conflicts[conflictID]; !ok {
		return nil
	}
	delete(s.conflicts, conflictID)
	if err := s.save(); err != nil {
		return err
	}

	if err := os.Remove(s.snapshotPath(conflictID)); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove remote snapshot", "conflict", conflictID, "error", err)
	}
	return nil
}
