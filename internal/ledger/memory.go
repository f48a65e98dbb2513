package ledger

import (
	"sync"
	"time"

	"github.com/balkashynov/hangar/internal/models"
)

// MemoryStore is a process-local Store, used by tests and by the engine when
// no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.SessionEvent
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ev *models.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = uint(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *MemoryStore) Events(findingID string) ([]models.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SessionEvent
	for _, e := range m.events {
		if e.FindingID == findingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) All() ([]models.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SessionEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *MemoryStore) LastID(findingID string) (uint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].FindingID == findingID {
			return m.events[i].ID, nil
		}
	}
	return 0, nil
}

// Len reports how many events have been appended
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
