package repository

import (
	"context"
	"sync"
	"time"

	"github.com/roofline/crmcore/internal/ratelimit/domain"
)

type memoryWindow struct {
	mu        sync.Mutex
	count     int
	start     time.Time
	updatedAt time.Time
}

// MemoryWindowStore keeps windows in process memory. Counters are not shared
// between replicas.
type MemoryWindowStore struct {
	windows sync.Map // map[string]*memoryWindow
}

// NewMemoryWindowStore creates an empty MemoryWindowStore.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{}
}

// Increment counts one call in the current window of key.
func (s *MemoryWindowStore) Increment(
	_ context.Context,
	key domain.Key,
	size time.Duration,
	now time.Time,
) (*domain.Window, error) {
	val, _ := s.windows.LoadOrStore(key.String(), &memoryWindow{start: now})
	entry := val.(*memoryWindow)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.count == 0 || !entry.start.Add(size).After(now) {
		entry.count = 0
		entry.start = now
	}
	entry.count++
	entry.updatedAt = now

	return &domain.Window{
		Key:          key,
		RequestCount: entry.count,
		WindowStart:  entry.start,
		UpdatedAt:    entry.updatedAt,
	}, nil
}

// DeleteStale drops windows untouched since before.
func (s *MemoryWindowStore) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	s.windows.Range(func(key, value any) bool {
		entry := value.(*memoryWindow)
		entry.mu.Lock()
		stale := entry.updatedAt.Before(before)
		entry.mu.Unlock()

		if stale {
			s.windows.Delete(key)
			deleted++
		}
		return true
	})
	return deleted, nil
}
