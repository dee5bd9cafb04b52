package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pilehq/pilebox/internal/utils"
)

// QueueEntry is one pending outbound change. A tombstone entry propagates
// a local delete; anything else is an upsert.
type QueueEntry struct {
	DocumentID string    `json:"documentId"`
	RelPath    string    `json:"relPath"`
	Tombstone  bool      `json:"tombstone,omitempty"`
	QueuedAt   time.Time `json:"queuedAt"`
}

type stateDoc struct {
	Linked             bool                   `json:"linked"`
	RemoteCollectionID string                 `json:"remoteCollectionId,omitempty"`
	LastPullAt         time.Time              `json:"lastPullAt"`
	LastPushAt         time.Time              `json:"lastPushAt"`
	LastError          string                 `json:"lastError,omitempty"`
	Queue              map[string]*QueueEntry `json:"queue"`
}

// StateStore persists a pile's link state, sync watermarks and outbound
// queue. Every mutation is written through to disk atomically, so a crash
// never loses more than the in-flight call.
type StateStore struct {
	path string

	mu  sync.Mutex
	doc stateDoc
}

// LoadStateStore reads the state file, creating a fresh unlinked state when
// none exists. A corrupt file is moved aside and replaced rather than
// taking the pile down.
func LoadStateStore(path string) (*StateStore, error) {
	s := &StateStore{
		path: path,
		doc:  stateDoc{Queue: make(map[string]*QueueEntry)},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102150405"))
		slog.Error("state file corrupt, resetting", "path", path, "backup", backup, "error", err)
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, fmt.Errorf("move corrupt state aside: %w", renameErr)
		}
		s.doc = stateDoc{Queue: make(map[string]*QueueEntry)}
		return s, nil
	}
	if s.doc.Queue == nil {
		s.doc.Queue = make(map[string]*QueueEntry)
	}
	return s, nil
}

func (s *StateStore) save() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return utils.AtomicWriteFile(s.path, data, 0o644)
}

func (s *StateStore) Linked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Linked
}

func (s *StateStore) CollectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.RemoteCollectionID
}

// SetLinked binds the pile to a remote collection.
func (s *StateStore) SetLinked(collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Linked = true
	s.doc.RemoteCollectionID = collectionID
	return s.save()
}

// SetUnlinked clears the link but keeps watermarks and queue, so a relink
// to the same collection resumes instead of starting over.
func (s *StateStore) SetUnlinked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Linked = false
	return s.save()
}

// Enqueue records a pending upsert for a document. Re-enqueueing the same
// document keeps a single entry: the path follows the latest call, the
// queue time stays at the first, and any tombstone flag is overwritten.
func (s *StateStore) Enqueue(docID, relPath string) error {
	return s.enqueue(docID, relPath, false)
}

// EnqueueTombstone records a pending delete for a document.
func (s *StateStore) EnqueueTombstone(docID, relPath string) error {
	return s.enqueue(docID, relPath, true)
}

func (s *StateStore) enqueue(docID, relPath string, tombstone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.doc.Queue[docID]; ok {
		entry.RelPath = relPath
		entry.Tombstone = tombstone
		return s.save()
	}

	s.doc.Queue[docID] = &QueueEntry{
		DocumentID: docID,
		RelPath:    relPath,
		Tombstone:  tombstone,
		QueuedAt:   time.Now().UTC(),
	}
	return s.save()
}

// QueuedEntry returns a copy of the pending entry for a document, if any.
func (s *StateStore) QueuedEntry(docID string) (*QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.doc.Queue[docID]
	if !ok {
		return nil, false
	}
	copied := *entry
	return &copied, true
}

// Dequeue removes a document's queue entry after it synced.
func (s *StateStore) Dequeue(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Queue[docID]; !ok {
		return nil
	}
	delete(s.doc.Queue, docID)
	return s.save()
}

// Queue returns a snapshot of pending entries ordered by queue time.
// Entries enqueued after the snapshot belong to the next sync pass.
func (s *StateStore) Queue() []*QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*QueueEntry, 0, len(s.doc.Queue))
	for _, entry := range s.doc.Queue {
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].QueuedAt.Equal(entries[j].QueuedAt) {
			return entries[i].DocumentID < entries[j].DocumentID
		}
		return entries[i].QueuedAt.Before(entries[j].QueuedAt)
	})
	return entries
}

func (s *StateStore) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Queue)
}

func (s *StateStore) LastPullAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastPullAt
}

func (s *StateStore) SetLastPullAt(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastPullAt = t.UTC()
	return s.save()
}

func (s *StateStore) LastPushAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastPushAt
}

func (s *StateStore) SetLastPushAt(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastPushAt = t.UTC()
	return s.save()
}

func (s *StateStore) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastError
}

// SetLastError mirrors the outcome of the latest remote operation. A nil
// error clears the field.
func (s *StateStore) SetLastError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if s.doc.LastError == msg {
		return nil
	}
	s.doc.LastError = msg
	return s.save()
}
