package dedupe

import (
	"context"
	"sync"
	"time"
)

// Memory is the single-process default when no Redis address is configured.
// Entries carry the same TTL as the Redis cache and expired ones are swept
// lazily, so the map stays bounded by one day of webhook traffic.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		seen: make(map[string]time.Time),
		ttl:  eventKeyTTL,
		now:  time.Now,
	}
}

func (m *Memory) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.seen[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	for id, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, id)
		}
	}
	m.seen[eventID] = now.Add(m.ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, eventID)
	return nil
}
