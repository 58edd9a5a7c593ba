package store

import (
	"context"
	"sort"
	"sync"

	"github.com/medflow/medinsight/internal/scan/domain"
)

// MemoryStore is an in-process Store, used by the CLI and tests
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Chunk
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]domain.Chunk)}
}

// Add appends chunks to their sessions
func (m *MemoryStore) Add(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		m.sessions[c.SessionID] = append(m.sessions[c.SessionID], c)
	}
	return nil
}

// Search ranks the chunks of one session against query
func (m *MemoryStore) Search(_ context.Context, sessionID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	m.mu.RLock()
	chunks := append([]domain.Chunk(nil), m.sessions[sessionID]...)
	m.mu.RUnlock()

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return Rank(chunks, query, k), nil
}

// DeleteSession drops all chunks of a session
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Len returns the number of chunks held for a session
func (m *MemoryStore) Len(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID])
}
