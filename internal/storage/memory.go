package storage

import (
	"context"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
)

// MemoryStorage keeps counters in a process-local map. Values vanish when the
// process exits, which is the default lifetime of attempt counts.
// It uses a Clock for expiration checks, enabling virtual-time testing.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]memItem
	clock clock.Clock
}

type memItem struct {
	value     int64
	expiresAt time.Time // zero means no expiration
}

// NewMemoryStorage creates an empty in-memory storage using the given clock.
func NewMemoryStorage(c clock.Clock) *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]memItem),
		clock: clock.OrReal(c),
	}
}

func (s *MemoryStorage) live(item memItem, now time.Time) bool {
	return item.expiresAt.IsZero() || now.Before(item.expiresAt)
}

func (s *MemoryStorage) Counter(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || !s.live(item, s.clock.Now()) {
		return 0, nil
	}
	return item.value, nil
}

func (s *MemoryStorage) Increment(_ context.Context, key string, delta int64, exp time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	item, ok := s.items[key]
	if !ok || !s.live(item, now) {
		item = memItem{}
		if exp > 0 {
			item.expiresAt = now.Add(exp)
		}
	}
	item.value += delta
	s.items[key] = item
	return item.value, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

// Cleanup drops expired counters. Only needed when counters are created
// with an expiration.
func (s *MemoryStorage) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, item := range s.items {
		if !s.live(item, now) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *MemoryStorage) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(interval):
			s.Cleanup()
		}
	}
}

// Len returns the number of stored counters, expired ones included until
// the next Cleanup.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
