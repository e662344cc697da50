package vectordb

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snippets in process memory. Snippets are scanned in
// insertion order, so equal scores rank oldest first.
type MemoryStore struct {
	mu       sync.RWMutex
	snippets []Snippet
	byID     map[string]int
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Add stores snippets. A snippet with an existing ID is replaced in place so
// it keeps its insertion rank.
func (m *MemoryStore) Add(ctx context.Context, snippets ...Snippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range snippets {
		if s.ID == "" {
			return fmt.Errorf("snippet ID is required")
		}
		if i, ok := m.byID[s.ID]; ok {
			m.snippets[i] = s
			continue
		}
		m.byID[s.ID] = len(m.snippets)
		m.snippets = append(m.snippets, s)
	}
	return nil
}

// Search scores every snippet against the query embedding and returns the
// topK best matches.
func (m *MemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rank(embedding, m.snippets, topK), nil
}

// Get returns the snippet stored under id.
func (m *MemoryStore) Get(ctx context.Context, id string) (Snippet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return Snippet{}, false, nil
	}
	return m.snippets[i], true, nil
}

// Delete removes the snippet stored under id. Later snippets shift down one
// insertion rank.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byID[id]
	if !ok {
		return nil
	}
	m.snippets = append(m.snippets[:i], m.snippets[i+1:]...)
	delete(m.byID, id)
	for otherID, j := range m.byID {
		if j > i {
			m.byID[otherID] = j - 1
		}
	}
	return nil
}

// Count reports the number of stored snippets.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snippets), nil
}

// Reset drops all snippets.
func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snippets = nil
	m.byID = make(map[string]int)
	return nil
}

// Ping always succeeds for the in-process store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close releases nothing for the in-process store.
func (m *MemoryStore) Close() error { return nil }
