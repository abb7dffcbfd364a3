package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type memoryEntry struct {
	rev  string
	body []byte
}

// MemoryStore keeps JSON-encoded documents in a map. It follows the same
// revision rules as CouchDB and backs the "memory" driver and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]memoryEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	entry, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("get %s: %w", id, ErrNotFound)
	}

	if err := json.Unmarshal(entry.body, doc); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	meta := doc.Metadata()
	meta.ID = id
	meta.Rev = entry.rev
	return nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	meta := doc.Metadata()
	if meta.ID == "" {
		return "", fmt.Errorf("put: document id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[meta.ID]
	if exists && current.rev != meta.Rev || !exists && meta.Rev != "" {
		return "", fmt.Errorf("put %s at rev %q: %w", meta.ID, meta.Rev, ErrConflict)
	}

	rev := NextRev(meta.Rev)
	prevRev := meta.Rev
	meta.Rev = ""
	body, err := json.Marshal(doc)
	if err != nil {
		meta.Rev = prevRev
		return "", fmt.Errorf("encode %s: %w", meta.ID, err)
	}

	s.docs[meta.ID] = memoryEntry{rev: rev, body: body}
	meta.Rev = rev
	return rev, nil
}

// Len reports the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
