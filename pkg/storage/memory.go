package storage

import (
	"context"
	"sync"
	"time"
)

// memoryStoreCap bounds how many records the in-process store retains before
// evicting the oldest.
const memoryStoreCap = 1000

// MemoryStore keeps exchanges in process memory. It backs the
// zero-dependency default configuration; history is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	exchanges []*Exchange // oldest first, listings walk it backwards
	byID      map[string]*Exchange
	max       int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Exchange),
		max:  memoryStoreCap,
	}
}

// Create appends a copy of the exchange, evicting the oldest record once the
// cap is exceeded.
func (m *MemoryStore) Create(ctx context.Context, ex *Exchange) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *ex
	rec.ID = newID()
	rec.CreatedAt = time.Now().UTC()

	m.exchanges = append(m.exchanges, &rec)
	m.byID[rec.ID] = &rec
	if len(m.exchanges) > m.max {
		evicted := m.exchanges[0]
		m.exchanges = m.exchanges[1:]
		delete(m.byID, evicted.ID)
	}

	ex.ID = rec.ID
	ex.CreatedAt = rec.CreatedAt
	return rec.ID, nil
}

// ListRecent returns up to limit exchanges, newest first
func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.exchanges)
	if limit > n {
		limit = n
	}
	out := make([]*Exchange, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.exchanges[i])
	}
	return out, nil
}

// GetByID returns one exchange, or ErrNotFound
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ex, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ex, nil
}

// DeleteByID removes one exchange if present
func (m *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return nil
	}
	delete(m.byID, id)
	for i, ex := range m.exchanges {
		if ex.ID == id {
			m.exchanges = append(m.exchanges[:i], m.exchanges[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAll resets the store
func (m *MemoryStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exchanges = nil
	m.byID = make(map[string]*Exchange)
	return nil
}

// Ping always succeeds for the in-memory store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
