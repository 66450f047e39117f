package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. It serves two purposes: running the
// service without a database (the cache then only survives the process)
// and standing in for postgres in tests.
type Memory struct {
	mu  sync.RWMutex
	row *CachedFeed

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// SetNow overrides the clock used for StoredAt. Test hook.
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns a copy of the stored row, or (nil, nil) when empty.
func (m *Memory) Get(_ context.Context) (*CachedFeed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.row == nil {
		return nil, nil
	}
	row := *m.row
	return &row, nil
}

// Put overwrites the singleton row.
func (m *Memory) Put(_ context.Context, xml string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row = &CachedFeed{
		Key:      FeedKey,
		XML:      xml,
		StoredAt: m.now().UTC(),
	}
	return nil
}
