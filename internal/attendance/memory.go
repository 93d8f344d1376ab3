package attendance

import (
	"context"
	"sync"
)

type pairKey struct {
	code      string
	studentID string
}

// MemoryRepository is the in-process Repository used when no database is
// configured, and by tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	byPair map[pairKey]Redemption
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byPair: make(map[pairKey]Redemption)}
}

func (m *MemoryRepository) Record(_ context.Context, r Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{code: r.Code, studentID: r.StudentID}
	if _, exists := m.byPair[key]; exists {
		return ErrDuplicate
	}
	m.byPair[key] = r
	return nil
}

func (m *MemoryRepository) Exists(_ context.Context, code, studentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.byPair[pairKey{code: code, studentID: studentID}]
	return exists, nil
}

func (m *MemoryRepository) ListByCode(_ context.Context, code string) ([]Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Redemption
	for key, r := range m.byPair {
		if key.code == code {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRepository) CountByCode(_ context.Context, code string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for key := range m.byPair {
		if key.code == code {
			count++
		}
	}
	return count, nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }
